package sessionbuilder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chaturanga-session/internal/archive"
	"github.com/park285/chaturanga-session/internal/config"
	"github.com/park285/chaturanga-session/internal/engine"
	"github.com/park285/chaturanga-session/internal/engine/bridge"
	"github.com/park285/chaturanga-session/internal/engine/memengine"
	"github.com/park285/chaturanga-session/internal/msgcat"
	"github.com/park285/chaturanga-session/internal/notation"
	"github.com/park285/chaturanga-session/internal/scheduler"
	"github.com/park285/chaturanga-session/internal/session"
)

type Deps struct {
	Engine    engine.Engine
	Catalog   *msgcat.Catalog
	Session   *session.Session
	Scheduler *scheduler.Scheduler
	// Archive is nil when REDIS_URL is unset.
	Archive *archive.Store

	closers []io.Closer
}

// New wires the engine, session, scheduler and optional kifu archive from cfg.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}
	ok := false
	defer func() {
		if !ok {
			_ = d.Close()
		}
	}()

	// Engine: external process when configured, in-process otherwise
	if cfg.EnginePath != "" {
		b, err := bridge.Start(ctx, cfg.EnginePath, cfg.EngineArgs,
			bridge.WithCallTimeout(cfg.EngineCallTimeout),
			bridge.WithLogger(logger.Named("engine")),
		)
		if err != nil {
			return nil, fmt.Errorf("init engine: %w", err)
		}
		d.Engine = b
		d.closers = append(d.closers, b)
	} else {
		logger.Info("engine_builtin", zap.String("reason", "ENGINE_PATH not set"))
		d.Engine = memengine.New()
	}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("init messages: %w", err)
	}
	d.Catalog = catalog

	strengths, err := cfg.Strengths()
	if err != nil {
		return nil, err
	}
	pm, err := session.ParsePlayMode(cfg.PlayMode)
	if err != nil {
		return nil, err
	}
	dialect, _ := notation.ParseDialect(cfg.KifuDialect)
	sess, err := session.New(d.Engine, session.Config{
		PlayMode:  pm,
		Strengths: strengths,
		Dialect:   dialect,
	}, catalog, logger.Named("session"))
	if err != nil {
		return nil, fmt.Errorf("init session: %w", err)
	}
	d.Session = sess

	d.Scheduler = scheduler.New(sess, scheduler.Config{
		ThinkDelay:    cfg.ThinkDelay,
		SelfPlayDelay: cfg.SelfPlayDelay,
	}, logger.Named("scheduler"))

	// Archive (Redis optional)
	if cfg.RedisURL != "" {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err := archive.Dial(pctx, cfg.RedisURL)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("init kifu archive: %w", err)
		}
		d.closers = append(d.closers, redisCloser{rdb})
		d.Archive = archive.NewStore(rdb, cfg.KifuShareTTL)
	}

	ok = true
	return d, nil
}

// Close stops the scheduler and releases the engine and redis connections.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	if d.Scheduler != nil {
		d.Scheduler.Close()
	}
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	d.closers = nil
	return first
}

type redisCloser struct{ rdb *redis.Client }

func (c redisCloser) Close() error { return c.rdb.Close() }
