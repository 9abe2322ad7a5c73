// Package httpapi exposes one game session over a small JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chaturanga-session/internal/adapter/presenter"
	"github.com/park285/chaturanga-session/internal/archive"
	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/engine"
	"github.com/park285/chaturanga-session/internal/notation"
	"github.com/park285/chaturanga-session/internal/scheduler"
	"github.com/park285/chaturanga-session/internal/session"
	"github.com/park285/chaturanga-session/pkg/sessiondto"
)

const (
	defaultThinkTimeout = 60 * time.Second
	storeTimeout        = 5 * time.Second
)

var errInvalidStrength = errors.New("invalid strength")

type Server struct {
	sched  *scheduler.Scheduler
	sess   *session.Session
	store  *archive.Store
	logger *zap.Logger
	board  *presenter.Formatter

	thinkTimeout time.Duration
	now          func() time.Time
	routes       map[string]route
	srv          *fasthttp.Server
}

type route struct {
	method  string
	handler func(*fasthttp.RequestCtx) error
}

type Option func(*Server)

// WithArchive enables /kifu/share and /kifu/load.
func WithArchive(store *archive.Store) Option {
	return func(s *Server) { s.store = store }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithThinkTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.thinkTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithFormatter(f *presenter.Formatter) Option {
	return func(s *Server) { s.board = f }
}

func New(sched *scheduler.Scheduler, opts ...Option) *Server {
	s := &Server{
		sched:        sched,
		sess:         sched.Session(),
		logger:       zap.NewNop(),
		thinkTimeout: defaultThinkTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes = map[string]route{
		"/healthz":        {fasthttp.MethodGet, s.handleHealth},
		"/state":          {fasthttp.MethodGet, s.handleState},
		"/board.txt":      {fasthttp.MethodGet, s.handleBoardText},
		"/move":           {fasthttp.MethodPost, s.handleMove},
		"/undo":           {fasthttp.MethodPost, s.handleUndo},
		"/reset":          {fasthttp.MethodPost, s.handleReset},
		"/goto":           {fasthttp.MethodPost, s.handleGoTo},
		"/replay/exit":    {fasthttp.MethodPost, s.handleExitReplay},
		"/resume":         {fasthttp.MethodPost, s.handleResume},
		"/think":          {fasthttp.MethodPost, s.handleThink},
		"/mode":           {fasthttp.MethodPost, s.handleMode},
		"/selfplay/start": {fasthttp.MethodPost, s.handleSelfPlayStart},
		"/selfplay/stop":  {fasthttp.MethodPost, s.handleSelfPlayStop},
		"/kifu":           {"", s.handleKifu},
		"/kifu/share":     {fasthttp.MethodPost, s.handleShare},
		"/kifu/load":      {fasthttp.MethodPost, s.handleLoad},
	}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler,
		Name:               "chaturanga-session",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       s.thinkTimeout + 10*time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("http_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

// Handler dispatches on path, then checks the method.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	r, ok := s.routes[path]
	var err error
	switch {
	case !ok:
		err = fmt.Errorf("%w: %s", errUnknownRoute, path)
	case r.method != "" && string(ctx.Method()) != r.method:
		err = fmt.Errorf("%w: %s %s", errMethodMismatch, ctx.Method(), path)
	default:
		err = r.handler(ctx)
	}
	if err != nil {
		s.writeError(ctx, err)
	}
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, err error) {
	status, de := toDomainError(err)
	if status >= fasthttp.StatusInternalServerError {
		s.logger.Error("http_request_failed", zap.ByteString("path", ctx.Path()), zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug("http_request_rejected", zap.ByteString("path", ctx.Path()), zap.String("code", de.Code), zap.Error(err))
	}
	writeJSON(ctx, status, de)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode response", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}

func writeText(ctx *fasthttp.RequestCtx, text string) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString(text)
}

func decodeBody(ctx *fasthttp.RequestCtx, v any) error {
	body := ctx.PostBody()
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) state() *sessiondto.SessionState {
	return presenter.ToDTOState(s.sess.View(), s.sess.Dialect(), s.sched.SelfPlayRunning())
}

func (s *Server) boardFormatter() *presenter.Formatter {
	if s.board != nil {
		return s.board
	}
	return presenter.NewFormatter(nil, s.sess.Dialect())
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) error {
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"ok": true, "session_id": s.sess.ID()})
	return nil
}

func (s *Server) handleState(ctx *fasthttp.RequestCtx) error {
	writeJSON(ctx, fasthttp.StatusOK, s.state())
	return nil
}

func (s *Server) handleBoardText(ctx *fasthttp.RequestCtx) error {
	v := s.sess.View()
	f := s.boardFormatter()
	writeText(ctx, f.View(v)+"\n"+f.Moves(v))
	return nil
}

func (s *Server) handleMove(ctx *fasthttp.RequestCtx) error {
	var req sessiondto.MoveRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	res, err := s.sched.PlayHuman(req.Move)
	if err != nil {
		return err
	}
	writeJSON(ctx, fasthttp.StatusOK, sessiondto.MoveSummary{
		Move:  presenter.ToDTOMove(res.Record, s.sess.Dialect()),
		State: s.state(),
	})
	return nil
}

func (s *Server) handleUndo(ctx *fasthttp.RequestCtx) error {
	n, err := s.sched.Undo()
	if err != nil {
		return err
	}
	writeJSON(ctx, fasthttp.StatusOK, sessiondto.UndoResponse{Removed: n, State: s.state()})
	return nil
}

func (s *Server) handleReset(ctx *fasthttp.RequestCtx) error {
	if err := s.sched.Reset(); err != nil {
		return err
	}
	writeJSON(ctx, fasthttp.StatusOK, s.state())
	return nil
}

func (s *Server) handleGoTo(ctx *fasthttp.RequestCtx) error {
	var req sessiondto.GoToRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	var err error
	if req.Delta != nil {
		_, err = s.sess.Step(*req.Delta)
	} else {
		_, err = s.sess.GoToMove(req.Index)
	}
	if err != nil {
		return err
	}
	writeJSON(ctx, fasthttp.StatusOK, s.state())
	return nil
}

func (s *Server) handleExitReplay(ctx *fasthttp.RequestCtx) error {
	if _, err := s.sched.ExitReplay(); err != nil {
		return err
	}
	writeJSON(ctx, fasthttp.StatusOK, s.state())
	return nil
}

func (s *Server) handleResume(ctx *fasthttp.RequestCtx) error {
	if _, err := s.sched.Resume(); err != nil {
		return err
	}
	writeJSON(ctx, fasthttp.StatusOK, s.state())
	return nil
}

func (s *Server) handleThink(ctx *fasthttp.RequestCtx) error {
	tctx, cancel := context.WithTimeout(context.Background(), s.thinkTimeout)
	defer cancel()
	res, err := s.sched.ThinkFromHere(tctx)
	if err != nil {
		return err
	}
	writeJSON(ctx, fasthttp.StatusOK, sessiondto.MoveSummary{
		Move:  presenter.ToDTOMove(res.Record, s.sess.Dialect()),
		State: s.state(),
	})
	return nil
}

func (s *Server) handleMode(ctx *fasthttp.RequestCtx) error {
	var req sessiondto.ModeRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	levels := [2]int{req.StrengthFirst, req.StrengthSecond}
	for i, lv := range levels {
		if lv == 0 {
			continue
		}
		st, err := engine.StrengthForLevel(lv)
		if err != nil {
			return fmt.Errorf("%w: %v", errInvalidStrength, err)
		}
		if err := s.sess.SetStrength(domain.Side(i), st); err != nil {
			return err
		}
	}
	if req.Dialect != "" {
		if err := s.sess.SetDialect(notation.Dialect(strings.ToLower(strings.TrimSpace(req.Dialect)))); err != nil {
			return err
		}
	}
	if req.PlayMode != "" {
		pm, err := session.ParsePlayMode(req.PlayMode)
		if err != nil {
			return err
		}
		if err := s.sched.SetPlayMode(pm); err != nil {
			return err
		}
	}
	writeJSON(ctx, fasthttp.StatusOK, s.state())
	return nil
}

func (s *Server) handleSelfPlayStart(ctx *fasthttp.RequestCtx) error {
	if err := s.sched.StartSelfPlay(); err != nil {
		return err
	}
	writeJSON(ctx, fasthttp.StatusOK, s.state())
	return nil
}

func (s *Server) handleSelfPlayStop(ctx *fasthttp.RequestCtx) error {
	s.sched.StopSelfPlay()
	writeJSON(ctx, fasthttp.StatusOK, s.state())
	return nil
}

// handleKifu exports on GET and imports the raw request body on POST.
func (s *Server) handleKifu(ctx *fasthttp.RequestCtx) error {
	switch string(ctx.Method()) {
	case fasthttp.MethodGet:
		text, err := s.sess.ExportKifu(s.now())
		if err != nil {
			return err
		}
		ctx.Response.Header.Set("Content-Disposition", `attachment; filename="kifu.txt"`)
		writeText(ctx, text)
		return nil
	case fasthttp.MethodPost:
		return s.importKifu(ctx, ctx.PostBody())
	default:
		return fmt.Errorf("%w: %s /kifu", errMethodMismatch, ctx.Method())
	}
}

func (s *Server) importKifu(ctx *fasthttp.RequestCtx, data []byte) error {
	n, err := s.sched.Import(data)
	if err != nil {
		return err
	}
	writeJSON(ctx, fasthttp.StatusOK, sessiondto.ImportResponse{Applied: n, State: s.state()})
	return nil
}

func (s *Server) handleShare(ctx *fasthttp.RequestCtx) error {
	if s.store == nil {
		return errSharingOff
	}
	text, err := s.sess.ExportKifu(s.now())
	if err != nil {
		return err
	}
	sctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	e, err := s.store.Save(sctx, s.sess.ID(), s.sess.Len(), text)
	if err != nil {
		return err
	}
	s.logger.Info("kifu_shared", zap.String("code", e.Code), zap.Int("moves", e.Moves))
	writeJSON(ctx, fasthttp.StatusOK, sessiondto.ShareResponse{
		Code:      e.Code,
		Moves:     e.Moves,
		ExpiresIn: int(s.store.TTL().Seconds()),
	})
	return nil
}

func (s *Server) handleLoad(ctx *fasthttp.RequestCtx) error {
	if s.store == nil {
		return errSharingOff
	}
	var req sessiondto.LoadRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	sctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	e, err := s.store.Load(sctx, req.Code)
	if err != nil {
		return err
	}
	return s.importKifu(ctx, []byte(e.Text))
}
