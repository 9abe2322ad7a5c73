package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/engine"
)

// Ticket identifies one automated move between BeginAutomated and its
// completion or abort.
type Ticket struct {
	seq      uint64
	Side     domain.Side
	Strength engine.Strength
}

// BeginAutomated moves the session to AiThinking for the side to move. With
// force set the play mode is ignored, which is how a single "think from here"
// request is served in any play mode.
func (s *Session) BeginAutomated(force bool) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLive(); err != nil {
		return Ticket{}, err
	}
	side := s.hist.Last().SideToMove
	if !force && !s.playMode.Automated(side) {
		return Ticket{}, ErrHumanTurn
	}
	s.ticket++
	s.mode = AiThinking
	s.thinking = side
	t := Ticket{seq: s.ticket, Side: side, Strength: s.strengths[side]}
	s.logger.Debug("session_ai_thinking", zap.String("side", side.String()), zap.Int("level", t.Strength.Level()))
	return t, nil
}

// CompleteAutomated runs the engine search for t and records the chosen
// move. The session lock is released while the engine searches; AiThinking
// keeps every other engine user out. On failure nothing is recorded and the
// session returns to Live.
func (s *Session) CompleteAutomated(ctx context.Context, t Ticket) (MoveResult, error) {
	s.mu.Lock()
	if s.mode != AiThinking || s.ticket != t.seq {
		s.mu.Unlock()
		return MoveResult{}, ErrStaleTicket
	}
	s.mu.Unlock()

	lm, searchErr := s.eng.Search(ctx, t.Strength)

	s.mu.Lock()
	defer s.mu.Unlock()
	if searchErr != nil {
		s.mode = Live
		s.logger.Warn("session_ai_search_failed", zap.String("side", t.Side.String()), zap.Error(searchErr))
		return MoveResult{}, fmt.Errorf("automated move for %s: %w", t.Side, searchErr)
	}
	res, err := s.record(moveFromEngine(lm))
	if err != nil {
		s.mode = Live
		return MoveResult{}, err
	}
	s.logger.Info("session_ai_move_applied",
		zap.Int("ply", res.Record.Ply),
		zap.String("side", res.Record.Side.String()),
		zap.String("move", res.Record.Notation),
	)
	return res, nil
}

// AbortAutomated releases t without searching.
func (s *Session) AbortAutomated(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == AiThinking && s.ticket == t.seq {
		s.mode = Live
	}
}

// HasLegalMoves asks the engine whether the side to move can move at all.
func (s *Session) HasLegalMoves() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == AiThinking {
		return false, ErrBusy
	}
	moves, err := s.eng.LegalMoves()
	if err != nil {
		return false, err
	}
	return len(moves) > 0, nil
}
