package sessionbuilder

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/chaturanga-session/internal/config"
	"github.com/park285/chaturanga-session/internal/engine/memengine"
	"github.com/park285/chaturanga-session/internal/notation"
	"github.com/park285/chaturanga-session/internal/session"
)

func TestNewBuiltinEngine(t *testing.T) {
	cfg := config.Default()
	cfg.PlayMode = "ai-black"
	cfg.StrengthSecond = 1
	cfg.KifuDialect = "en"

	d, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	if _, ok := d.Engine.(*memengine.Engine); !ok {
		t.Fatalf("engine = %T, want builtin", d.Engine)
	}
	if d.Archive != nil {
		t.Fatalf("archive should be off without REDIS_URL")
	}
	if d.Session.PlayMode() != session.AutoSecond || d.Session.Dialect() != notation.DialectEnglish {
		t.Fatalf("session config not applied")
	}
	if lv := d.Session.Strength(1).Level(); lv != 1 {
		t.Fatalf("second strength = %d", lv)
	}

	if _, err := d.Scheduler.PlayHuman("f2f3"); err != nil {
		t.Fatalf("PlayHuman: %v", err)
	}
	d.Scheduler.Wait()
	if n := d.Session.Len(); n != 2 {
		t.Fatalf("moves = %d", n)
	}
}

func TestNewWithArchive(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := config.Default()
	cfg.RedisURL = fmt.Sprintf("redis://%s/0", mr.Addr())
	cfg.KifuShareTTL = time.Minute

	d, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()
	if d.Archive == nil || d.Archive.TTL() != time.Minute {
		t.Fatalf("archive not wired: %+v", d.Archive)
	}
}

func TestNewFailsOnMissingEngineBinary(t *testing.T) {
	cfg := config.Default()
	cfg.EnginePath = "/nonexistent/chaturanga-engine"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for missing engine binary")
	}
}
