// Package scheduler decides when the engine moves. It runs at most one
// automated move at a time, answers human moves in single-automated play
// modes and drives the self-play loop when both sides are automated.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/park285/chaturanga-session/internal/session"
)

const (
	DefaultThinkDelay    = 10 * time.Millisecond
	DefaultSelfPlayDelay = 500 * time.Millisecond
)

var (
	ErrSelfPlayRunning  = errors.New("self-play is running")
	ErrNotSelfPlayMode  = errors.New("self-play needs both sides automated")
	ErrSchedulerStopped = errors.New("scheduler is closed")
)

type Config struct {
	// ThinkDelay is the pause between entering AiThinking and searching.
	ThinkDelay    time.Duration
	SelfPlayDelay time.Duration
}

// Scheduler owns every engine search issued for a session.
type Scheduler struct {
	sess   *session.Session
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	selfPlay *selfPlayRun
	lastErr  error
}

type selfPlayRun struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (r *selfPlayRun) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func New(sess *session.Session, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.ThinkDelay < 0 {
		cfg.ThinkDelay = 0
	}
	if cfg.SelfPlayDelay <= 0 {
		cfg.SelfPlayDelay = DefaultSelfPlayDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sess:   sess,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("github.com/park285/chaturanga-session/internal/scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Session() *session.Session { return s.sess }

// PlayHuman applies a human move and lets the engine answer if it is to move.
func (s *Scheduler) PlayHuman(text string) (session.MoveResult, error) {
	res, err := s.sess.PlayMove(text)
	if err != nil {
		return res, err
	}
	s.Trigger()
	return res, nil
}

// Step runs one automated move for the side to move and waits for it. With
// force set the play mode is ignored.
func (s *Scheduler) Step(ctx context.Context, force bool) (session.MoveResult, error) {
	ticket, err := s.sess.BeginAutomated(force)
	if err != nil {
		return session.MoveResult{}, err
	}

	timer := time.NewTimer(s.cfg.ThinkDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		s.sess.AbortAutomated(ticket)
		return session.MoveResult{}, ctx.Err()
	case <-s.ctx.Done():
		s.sess.AbortAutomated(ticket)
		return session.MoveResult{}, ErrSchedulerStopped
	case <-timer.C:
	}

	ctx, span := s.tracer.Start(ctx, "automated_move", trace.WithAttributes(
		attribute.String("side", ticket.Side.String()),
		attribute.Int("level", ticket.Strength.Level()),
	))
	defer span.End()

	res, err := s.sess.CompleteAutomated(ctx, ticket)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.setErr(err)
		return res, err
	}
	span.SetAttributes(
		attribute.String("move", res.Record.Notation),
		attribute.Int("ply", res.Record.Ply),
		attribute.Bool("game_over", res.Outcome.Over()),
	)
	return res, nil
}

// Trigger starts an automated move in the background when the play mode
// says the side to move is automated. Self-play mode is left to the loop.
func (s *Scheduler) Trigger() bool {
	if s.sess.PlayMode() == session.AutoBoth || !s.sess.SideToMoveAutomated() {
		return false
	}
	if !s.track() {
		return false
	}
	go func() {
		defer s.wg.Done()
		_, err := s.Step(s.ctx, false)
		switch {
		case err == nil:
			s.Trigger()
		case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrHumanTurn),
			errors.Is(err, session.ErrReplayActive), errors.Is(err, ErrSchedulerStopped):
			s.logger.Debug("scheduler_trigger_skipped", zap.Error(err))
		default:
			s.logger.Error("scheduler_automated_move_failed", zap.Error(err))
		}
	}()
	return true
}

// track registers a background goroutine. It fails once Close has begun.
func (s *Scheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// StartSelfPlay runs automated moves for both sides until the game ends or
// StopSelfPlay is called.
func (s *Scheduler) StartSelfPlay() error {
	if s.sess.PlayMode() != session.AutoBoth {
		return ErrNotSelfPlayMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerStopped
	}
	if s.selfPlay != nil {
		return ErrSelfPlayRunning
	}
	if s.sess.Mode() == session.Replay {
		if _, err := s.sess.ExitReplay(); err != nil && !errors.Is(err, session.ErrNotInReplay) {
			return err
		}
	}
	run := &selfPlayRun{stop: make(chan struct{}), done: make(chan struct{})}
	s.selfPlay = run
	s.wg.Add(1)
	go s.selfPlayLoop(run)
	s.logger.Info("scheduler_self_play_started")
	return nil
}

func (s *Scheduler) selfPlayLoop(run *selfPlayRun) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if s.selfPlay == run {
			s.selfPlay = nil
		}
		s.mu.Unlock()
		close(run.done)
	}()

	for {
		select {
		case <-run.stop:
			s.logger.Info("scheduler_self_play_stopped")
			return
		default:
		}
		if s.sess.Mode() == session.GameOver {
			s.logger.Info("scheduler_self_play_finished")
			return
		}

		res, err := s.Step(s.ctx, false)
		switch {
		case errors.Is(err, session.ErrReplayActive):
			// wait for the viewer to leave replay
		case err != nil:
			s.logger.Warn("scheduler_self_play_halted", zap.Error(err))
			return
		case res.Outcome.Over():
			s.logger.Info("scheduler_self_play_finished", zap.Int("ply", res.Record.Ply))
			return
		}

		timer := time.NewTimer(s.cfg.SelfPlayDelay)
		select {
		case <-run.stop:
			timer.Stop()
			s.logger.Info("scheduler_self_play_stopped")
			return
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// StopSelfPlay asks the loop to stop at its next iteration boundary. A move
// in flight still completes. It reports whether a loop was running.
func (s *Scheduler) StopSelfPlay() bool {
	s.mu.Lock()
	run := s.selfPlay
	s.mu.Unlock()
	if run == nil {
		return false
	}
	run.requestStop()
	return true
}

// stopSelfPlayAndWait stops the loop and waits until it has exited.
func (s *Scheduler) stopSelfPlayAndWait() {
	s.mu.Lock()
	run := s.selfPlay
	s.mu.Unlock()
	if run == nil {
		return
	}
	run.requestStop()
	<-run.done
}

func (s *Scheduler) SelfPlayRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfPlay != nil
}

// ThinkFromHere plays one automated move for the side to move in any play
// mode. From Replay it first resumes at the displayed position.
func (s *Scheduler) ThinkFromHere(ctx context.Context) (session.MoveResult, error) {
	if s.SelfPlayRunning() {
		return session.MoveResult{}, ErrSelfPlayRunning
	}
	switch s.sess.Mode() {
	case session.AiThinking:
		return session.MoveResult{}, session.ErrBusy
	case session.Replay:
		if _, err := s.sess.ResumeFromHere(); err != nil {
			return session.MoveResult{}, err
		}
	}
	ok, err := s.sess.HasLegalMoves()
	if err != nil {
		return session.MoveResult{}, err
	}
	if !ok {
		return session.MoveResult{}, session.ErrNoLegalMoves
	}
	res, err := s.Step(ctx, true)
	if err != nil {
		return res, err
	}
	s.Trigger()
	return res, nil
}

// ExitReplay returns to the live position and lets the engine move if its
// side is to move. A reply skipped while the viewer was in replay is started
// here.
func (s *Scheduler) ExitReplay() (session.View, error) {
	if _, err := s.sess.ExitReplay(); err != nil {
		return session.View{}, err
	}
	s.Trigger()
	return s.sess.View(), nil
}

// Resume continues live play from the replay cursor.
func (s *Scheduler) Resume() (session.View, error) {
	v, err := s.sess.ResumeFromHere()
	if err != nil {
		return v, err
	}
	s.Trigger()
	return s.sess.View(), nil
}

func (s *Scheduler) Undo() (int, error) {
	if s.SelfPlayRunning() {
		return 0, ErrSelfPlayRunning
	}
	n, err := s.sess.Undo()
	if err != nil {
		return n, err
	}
	s.Trigger()
	return n, nil
}

// Reset stops self-play, waits for any automated move, and starts a new game.
func (s *Scheduler) Reset() error {
	s.stopSelfPlayAndWait()
	s.wg.Wait()
	if err := s.sess.Reset(); err != nil {
		return err
	}
	s.Trigger()
	return nil
}

// Import replaces the game with a kifu. Automated moves are not started.
func (s *Scheduler) Import(data []byte) (int, error) {
	s.stopSelfPlayAndWait()
	s.wg.Wait()
	return s.sess.ImportKifu(data)
}

// SetPlayMode switches play mode, stopping self-play when leaving the
// all-automated mode and leaving Replay.
func (s *Scheduler) SetPlayMode(pm session.PlayMode) error {
	if err := s.sess.SetPlayMode(pm); err != nil {
		return err
	}
	if pm != session.AutoBoth {
		s.StopSelfPlay()
	}
	if s.sess.Mode() == session.Replay {
		if _, err := s.sess.ExitReplay(); err != nil && !errors.Is(err, session.ErrNotInReplay) {
			return err
		}
	}
	s.Trigger()
	return nil
}

// Wait blocks until background moves and the self-play loop have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close stops self-play, abandons pending think delays and waits.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.StopSelfPlay()
	s.cancel()
	s.wg.Wait()
}

// LastError returns the most recent automated move failure.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
