package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/kifu"
	"github.com/park285/chaturanga-session/internal/notation"
)

// ImportKifu replaces the game with the moves found in data. Nothing changes
// when no move line is found. Otherwise the session is reset and the moves
// are replayed in order; the first one the engine refuses stops the import
// with an *ImportError and the moves before it stay applied.
func (s *Session) ImportKifu(data []byte) (int, error) {
	moves, err := kifu.Decode(data)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == AiThinking {
		return 0, ErrBusy
	}
	initial, err := s.resetEngine()
	if err != nil {
		return 0, err
	}
	s.hist.Reset(initial)

	for i, rec := range moves {
		mv, err := parseRecorded(rec)
		if err == nil {
			err = s.apply(mv)
		}
		if err == nil {
			var res MoveResult
			res, err = s.record(mv)
			if err == nil && res.Record.Side != rec.Side {
				s.logger.Warn("kifu_side_label_mismatch",
					zap.Int("index", i),
					zap.String("label", rec.Side.String()),
					zap.String("actual", res.Record.Side.String()),
				)
			}
		}
		if err != nil {
			s.logger.Warn("kifu_import_aborted", zap.Int("index", i), zap.String("move", rec.Notation), zap.Error(err))
			return i, &ImportError{Index: i, Text: rec.Notation, Err: err}
		}
	}
	s.logger.Info("kifu_imported", zap.Int("moves", len(moves)))
	return len(moves), nil
}

// ExportKifu renders the full move log, whatever position is on display.
func (s *Session) ExportKifu(now time.Time) (string, error) {
	s.mu.Lock()
	rec := kifu.Record{
		Dialect: s.dialect,
		Date:    now,
		Mode:    string(s.playMode),
		Moves:   s.hist.Records(),
		Outcome: s.outcome,
		Winner:  s.hist.Last().SideToMove.Opponent(),
	}
	for _, side := range []domain.Side{domain.First, domain.Second} {
		if s.playMode.Automated(side) {
			rec.Levels[side] = s.strengths[side].Level()
		}
	}
	s.mu.Unlock()

	return kifu.EncodeString(s.catalog, rec)
}

func parseRecorded(rec domain.MoveRecord) (notation.Move, error) {
	return notation.ParseMove(rec.Notation)
}
