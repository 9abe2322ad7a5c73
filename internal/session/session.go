// Package session keeps the time-travelable game record in step with the
// engine's single live position. It owns the engine handle, the move history
// and the replay cursor, and decides which operations each mode allows.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/engine"
	"github.com/park285/chaturanga-session/internal/history"
	"github.com/park285/chaturanga-session/internal/msgcat"
	"github.com/park285/chaturanga-session/internal/notation"
)

type Config struct {
	PlayMode  PlayMode
	Strengths [2]engine.Strength
	Dialect   notation.Dialect
}

// DefaultConfig is human against human at the default level.
func DefaultConfig() Config {
	s, _ := engine.StrengthForLevel(engine.DefaultLevel)
	return Config{
		PlayMode:  HumanVsHuman,
		Strengths: [2]engine.Strength{s, s},
		Dialect:   notation.DialectJapanese,
	}
}

// Session is safe for concurrent use. While the mode is AiThinking the engine
// belongs to the goroutine holding the current Ticket.
type Session struct {
	id      string
	eng     engine.Engine
	catalog *msgcat.Catalog
	logger  *zap.Logger

	mu        sync.Mutex
	hist      *history.History
	mode      Mode
	cursor    int
	outcome   engine.Outcome
	playMode  PlayMode
	strengths [2]engine.Strength
	dialect   notation.Dialect
	ticket    uint64
	thinking  domain.Side
}

// MoveResult describes one move appended to the log.
type MoveResult struct {
	Record  domain.MoveRecord
	Move    notation.Move
	Outcome engine.Outcome
}

// New resets the engine and starts an empty history from its position.
func New(eng engine.Engine, cfg Config, catalog *msgcat.Catalog, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if catalog == nil {
		catalog = msgcat.MustDefault()
	}
	if cfg.PlayMode == "" {
		cfg.PlayMode = HumanVsHuman
	}
	if _, err := ParsePlayMode(string(cfg.PlayMode)); err != nil {
		return nil, err
	}
	if cfg.Dialect == "" {
		cfg.Dialect = notation.DialectJapanese
	}
	if _, ok := notation.ParseDialect(string(cfg.Dialect)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDialect, cfg.Dialect)
	}
	for side, st := range cfg.Strengths {
		if st.Depth == 0 && st.MoveTimeMillis == 0 {
			cfg.Strengths[side], _ = engine.StrengthForLevel(engine.DefaultLevel)
		}
	}

	s := &Session{
		id:        uuid.NewString(),
		eng:       eng,
		catalog:   catalog,
		playMode:  cfg.PlayMode,
		strengths: cfg.Strengths,
		dialect:   cfg.Dialect,
	}
	s.logger = logger.With(zap.String("session_id", s.id))
	initial, err := s.resetEngine()
	if err != nil {
		return nil, err
	}
	s.hist = history.New(initial)
	return s, nil
}

func (s *Session) ID() string { return s.id }

// PlayMove applies a human move given in move notation.
func (s *Session) PlayMove(text string) (MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLive(); err != nil {
		return MoveResult{}, err
	}
	side := s.hist.Last().SideToMove
	if s.playMode.Automated(side) {
		return MoveResult{}, ErrAutomatedTurn
	}
	mv, err := notation.ParseMove(text)
	if err != nil {
		return MoveResult{}, err
	}
	if err := s.apply(mv); err != nil {
		return MoveResult{}, err
	}
	res, err := s.record(mv)
	if err != nil {
		return MoveResult{}, err
	}
	s.logger.Info("session_move_applied",
		zap.Int("ply", res.Record.Ply),
		zap.String("side", res.Record.Side.String()),
		zap.String("move", res.Record.Notation),
	)
	return res, nil
}

// Undo takes back the last move. When exactly one side is automated it also
// takes back the automated reply, so the human is to move again. It returns
// the number of moves removed.
func (s *Session) Undo() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.mode {
	case AiThinking:
		return 0, ErrBusy
	case Replay:
		return 0, ErrReplayActive
	}
	if s.hist.Len() == 0 {
		return 0, ErrNothingToUndo
	}

	removed := 0
	var err error
	for {
		if err = s.undoOne(); err != nil {
			break
		}
		removed++
		if removed >= 2 || s.hist.Len() == 0 || !s.playMode.SingleAutomated() {
			break
		}
		if !s.playMode.Automated(s.hist.Last().SideToMove) {
			break
		}
	}
	if removed == 0 {
		return 0, err
	}
	// any earlier position was played on from, so it is not terminal
	s.outcome = engine.Outcome{}
	s.mode = Live
	s.cursor = s.hist.Len()
	if err != nil {
		s.logger.Warn("session_undo_partial", zap.Int("removed", removed), zap.Error(err))
		return removed, err
	}
	s.logger.Info("session_undo", zap.Int("removed", removed), zap.Int("moves", s.hist.Len()))
	return removed, nil
}

func (s *Session) undoOne() error {
	ok, err := s.eng.Undo()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: engine has no move to undo", ErrDesync)
	}
	return s.hist.Truncate(s.hist.Len() - 1)
}

// Reset starts a new game.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == AiThinking {
		return ErrBusy
	}
	initial, err := s.resetEngine()
	if err != nil {
		return err
	}
	s.hist.Reset(initial)
	s.logger.Info("session_reset")
	return nil
}

func (s *Session) resetEngine() (domain.BoardSnapshot, error) {
	if err := s.eng.Reset(); err != nil {
		return domain.BoardSnapshot{}, fmt.Errorf("reset engine: %w", err)
	}
	initial, err := engine.Capture(s.eng)
	if err != nil {
		return domain.BoardSnapshot{}, fmt.Errorf("capture start position: %w", err)
	}
	s.mode = Live
	s.cursor = 0
	s.outcome = engine.Outcome{}
	return initial, nil
}

func (s *Session) PlayMode() PlayMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playMode
}

// SetPlayMode changes which sides are automated. An automated move already in
// flight still completes.
func (s *Session) SetPlayMode(pm PlayMode) error {
	if _, err := ParsePlayMode(string(pm)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playMode = pm
	s.logger.Info("session_play_mode_changed", zap.String("play_mode", string(pm)))
	return nil
}

func (s *Session) Strength(side domain.Side) engine.Strength {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strengths[side&1]
}

func (s *Session) SetStrength(side domain.Side, st engine.Strength) error {
	if side > domain.Second {
		return ErrInvalidSide
	}
	if err := engine.ValidateStrength(st); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strengths[side] = st
	return nil
}

func (s *Session) SetDialect(d notation.Dialect) error {
	if _, ok := notation.ParseDialect(string(d)); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDialect, d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialect = d
	return nil
}

func (s *Session) Dialect() notation.Dialect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialect
}

// Mode returns the raw state machine mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Len returns the number of recorded moves.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Len()
}

// Snapshot returns stored position i.
func (s *Session) Snapshot(i int) (domain.BoardSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Snapshot(i)
}

func (s *Session) Records() []domain.MoveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Records()
}

// SideToMoveAutomated reports whether the current position waits on the engine.
func (s *Session) SideToMoveAutomated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode == Live && s.playMode.Automated(s.hist.Last().SideToMove)
}

func (s *Session) ensureLive() error {
	switch s.mode {
	case AiThinking:
		return ErrBusy
	case Replay:
		return ErrReplayActive
	case GameOver:
		return ErrGameOver
	}
	return nil
}

// apply plays mv on the engine. Drops are matched against the legal move
// list by destination and piece type.
func (s *Session) apply(mv notation.Move) error {
	if mv.Kind == notation.Drop {
		moves, err := s.eng.LegalMoves()
		if err != nil {
			return err
		}
		for i, lm := range moves {
			if !lm.Drop || lm.To != mv.To || lm.DropType != mv.Piece {
				continue
			}
			ok, err := s.eng.ApplyLegal(i)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
			break
		}
		return fmt.Errorf("%w: %s", ErrIllegalMove, mv)
	}

	ok, err := s.eng.ApplyFromTo(mv.From, mv.To)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrIllegalMove, mv)
	}
	return nil
}

// record appends the move the engine just played and re-evaluates the
// terminal state. The mover is taken from the position before the move.
func (s *Session) record(mv notation.Move) (MoveResult, error) {
	before := s.hist.Last()
	text, err := notation.FormatMove(mv)
	if err != nil {
		s.rollback()
		return MoveResult{}, err
	}
	after, err := engine.Capture(s.eng)
	if err != nil {
		s.rollback()
		return MoveResult{}, fmt.Errorf("capture position: %w", err)
	}
	outcome, err := s.eng.Outcome()
	if err != nil {
		s.rollback()
		return MoveResult{}, fmt.Errorf("read outcome: %w", err)
	}

	rec := domain.MoveRecord{Ply: s.hist.Len() + 1, Side: before.SideToMove, Notation: text}
	s.hist.Append(rec, after)
	s.cursor = s.hist.Len()
	s.outcome = outcome
	if outcome.Over() {
		s.mode = GameOver
		s.logger.Info("session_game_over",
			zap.Bool("checkmate", outcome.Checkmate),
			zap.Bool("stalemate", outcome.Stalemate),
			zap.Bool("draw", outcome.Draw),
		)
	} else {
		s.mode = Live
	}
	return MoveResult{Record: rec, Move: mv, Outcome: outcome}, nil
}

func (s *Session) rollback() {
	if _, err := s.eng.Undo(); err != nil {
		s.logger.Error("session_rollback_failed", zap.Error(err))
	}
}

func moveFromEngine(lm engine.LegalMove) notation.Move {
	if lm.Drop {
		return notation.DropMove(lm.DropType, lm.To)
	}
	return notation.NormalMove(lm.From, lm.To)
}
