package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"line-relay/internal/config"
	"line-relay/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.toml"))
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Store.URL = "sqlite://" + filepath.Join(t.TempDir(), "chat.db")
	cfg.Redis.Addr = ""
	cfg.RabbitMQ.URL = ""
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuild_SQLiteOnly(t *testing.T) {
	cfg := testConfig(t)

	a, err := Build(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer a.Close()

	if a.Redis != nil || a.MQConn != nil {
		t.Error("expected optional dependencies disabled")
	}
	if a.Dispatcher == nil || a.Greetings == nil || a.Store == nil {
		t.Fatal("expected services wired")
	}

	ctx := context.Background()
	if err := a.Store.Append(ctx, "U1", model.RoleUser, "hello"); err != nil {
		t.Fatal(err)
	}
	turns, err := a.Store.Recent(ctx, "U1", 5)
	if err != nil || len(turns) != 1 {
		t.Errorf("expected stored turn, got %v, %v", turns, err)
	}
}

func TestBuild_WithRedisCache(t *testing.T) {
	cfg := testConfig(t)
	mr := miniredis.RunT(t)
	cfg.Redis.Addr = mr.Addr()

	a, err := Build(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	a.Store.Append(ctx, "U1", model.RoleUser, "hello")
	mr.FastForward(time.Duration(cfg.Redis.HistoryDirtyTTLSeconds+1) * time.Second)
	a.Store.Recent(ctx, "U1", 5)

	if !mr.Exists("line:history:U1") {
		t.Error("expected history window cached in redis")
	}
}

func TestBuild_BadStoreURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.URL = "mongodb://nope"

	if _, err := Build(context.Background(), cfg, quietLogger()); err == nil {
		t.Error("expected error for unsupported store url")
	}
}

func TestTurnEventRecorder_WritesInline(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	rec := turnEventRecorder{repo: a.TurnEvents}
	ctx := context.Background()
	if err := rec.Publish(ctx, model.TurnEvent{ID: "e1", UserID: "U1", Path: model.TurnPathCommand, OccurredAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	events, _ := a.TurnEvents.ListRecent(ctx, "", 10)
	if len(events) != 1 {
		t.Errorf("expected one event, got %d", len(events))
	}
}
