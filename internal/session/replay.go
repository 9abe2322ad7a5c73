package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/engine"
	"github.com/park285/chaturanga-session/internal/history"
)

// View is what a client renders. In Replay it is served entirely from the
// stored snapshots.
type View struct {
	SessionID string
	Mode      Mode
	PlayMode  PlayMode
	Position  domain.BoardSnapshot
	// Cursor indexes the displayed snapshot; it equals Len outside Replay.
	Cursor int
	Len    int
	// Highlight is the index of the move that produced Position, or -1.
	Highlight  int
	Moves      []domain.MoveRecord
	CanBack    bool
	CanForward bool
	Outcome    engine.Outcome
	// Thinking is the side being searched for while Mode is AiThinking.
	Thinking  domain.Side
	Strengths [2]engine.Strength
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	cursor := s.hist.Len()
	if s.mode == Replay {
		cursor = s.cursor
	}
	pos, _ := s.hist.Snapshot(cursor)
	outcome := s.outcome
	if s.mode == Replay && cursor < s.hist.Len() {
		outcome = engine.Outcome{}
	}
	return View{
		SessionID:  s.id,
		Mode:       s.mode,
		PlayMode:   s.playMode,
		Position:   pos,
		Cursor:     cursor,
		Len:        s.hist.Len(),
		Highlight:  cursor - 1,
		Moves:      s.hist.Records(),
		CanBack:    cursor > 0,
		CanForward: cursor < s.hist.Len(),
		Outcome:    outcome,
		Thinking:   s.thinking,
		Strengths:  s.strengths,
	}
}

// GoToMove shows stored position i and enters Replay. The engine is not
// touched.
func (s *Session) GoToMove(i int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(i)
}

// Step moves the replay cursor by delta, entering Replay if needed. The
// target is clamped to the recorded range.
func (s *Session) Step(delta int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.hist.Len()
	if s.mode == Replay {
		target = s.cursor
	}
	target = min(max(target+delta, 0), s.hist.Len())
	return s.goToLocked(target)
}

func (s *Session) goToLocked(i int) (View, error) {
	if s.mode == AiThinking {
		return View{}, ErrBusy
	}
	if i < 0 || i > s.hist.Len() {
		return View{}, fmt.Errorf("%w: position %d (moves %d)", history.ErrOutOfRange, i, s.hist.Len())
	}
	s.mode = Replay
	s.cursor = i
	return s.viewLocked(), nil
}

// ExitReplay returns to the live position without changing history.
func (s *Session) ExitReplay() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != Replay {
		return View{}, ErrNotInReplay
	}
	s.leaveReplay()
	return s.viewLocked(), nil
}

func (s *Session) leaveReplay() {
	s.cursor = s.hist.Len()
	if s.outcome.Over() {
		s.mode = GameOver
	} else {
		s.mode = Live
	}
}

// ResumeFromHere discards every move after the replay cursor and continues
// live play from the displayed position.
func (s *Session) ResumeFromHere() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.resumeLocked(); err != nil {
		return View{}, err
	}
	return s.viewLocked(), nil
}

func (s *Session) resumeLocked() error {
	if s.mode != Replay {
		return ErrNotInReplay
	}
	target := s.cursor
	records := s.hist.Records()

	if err := s.replayEngine(records[:target]); err != nil {
		s.restoreEngine(records)
		return err
	}
	want, _ := s.hist.Snapshot(target)
	got, err := engine.Capture(s.eng)
	if err != nil {
		s.restoreEngine(records)
		return fmt.Errorf("capture resumed position: %w", err)
	}
	if got != want {
		s.restoreEngine(records)
		return fmt.Errorf("%w: position %d", ErrDesync, target)
	}
	outcome, err := s.eng.Outcome()
	if err != nil {
		s.restoreEngine(records)
		return fmt.Errorf("read outcome: %w", err)
	}

	if err := s.hist.Truncate(target); err != nil {
		s.restoreEngine(records)
		return err
	}
	s.outcome = outcome
	s.leaveReplay()
	s.logger.Info("session_resumed", zap.Int("moves", target), zap.Int("discarded", len(records)-target))
	return nil
}

// replayEngine resets the engine and plays records from the start.
func (s *Session) replayEngine(records []domain.MoveRecord) error {
	if err := s.eng.Reset(); err != nil {
		return fmt.Errorf("reset engine: %w", err)
	}
	for i, rec := range records {
		mv, err := parseRecorded(rec)
		if err != nil {
			return fmt.Errorf("%w: move %d: %v", ErrDesync, i+1, err)
		}
		if err := s.apply(mv); err != nil {
			return fmt.Errorf("%w: move %d: %v", ErrDesync, i+1, err)
		}
	}
	return nil
}

func (s *Session) restoreEngine(records []domain.MoveRecord) {
	if err := s.replayEngine(records); err != nil {
		s.logger.Error("session_engine_restore_failed", zap.Error(err))
	}
}
