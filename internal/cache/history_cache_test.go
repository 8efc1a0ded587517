package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"

	"line-relay/internal/model"
)

func newTestCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewHistoryCache(client, time.Minute, 5*time.Second, 3), mr
}

func turns(texts ...string) []model.ChatTurn {
	out := make([]model.ChatTurn, 0, len(texts))
	for i, text := range texts {
		out = append(out, model.ChatTurn{Seq: uint64(i + 1), UserID: "U1", Role: model.RoleUser, Text: text})
	}
	return out
}

func TestWindowTail(t *testing.T) {
	partial := Window{Turns: turns("a", "b", "c")}
	if got, ok := partial.Tail(2); !ok || len(got) != 2 || got[0].Text != "b" {
		t.Errorf("Tail(2) = %+v, %v", got, ok)
	}
	if _, ok := partial.Tail(5); ok {
		t.Error("partial window must not answer for more turns than it holds")
	}

	complete := Window{Turns: turns("a"), Complete: true}
	if got, ok := complete.Tail(5); !ok || len(got) != 1 {
		t.Errorf("complete Tail(5) = %+v, %v", got, ok)
	}
}

func TestHistoryCache_RoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if _, hit, err := c.GetWindow(ctx, "U1"); err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}

	if err := c.SetWindow(ctx, "U1", Window{Turns: turns("a", "b"), Complete: true}); err != nil {
		t.Fatal(err)
	}
	w, hit, err := c.GetWindow(ctx, "U1")
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if len(w.Turns) != 2 || !w.Complete || w.Turns[1].Text != "b" {
		t.Errorf("unexpected window %+v", w)
	}
	if ttl := mr.TTL("line:history:U1"); ttl != time.Minute {
		t.Errorf("expected 1m ttl, got %v", ttl)
	}

	if err := c.DeleteWindow(ctx, "U1"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.GetWindow(ctx, "U1"); hit {
		t.Error("expected miss after delete")
	}
}

func TestHistoryCache_DirtyMarkerExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.MarkDirty(ctx, "U1"); err != nil {
		t.Fatal(err)
	}
	if dirty, err := c.IsDirty(ctx, "U1"); err != nil || !dirty {
		t.Fatalf("expected dirty, got %v %v", dirty, err)
	}
	if dirty, _ := c.IsDirty(ctx, "U2"); dirty {
		t.Error("dirty marker leaked to another user")
	}

	mr.FastForward(6 * time.Second)
	if dirty, _ := c.IsDirty(ctx, "U1"); dirty {
		t.Error("expected dirty marker to expire")
	}
}

func TestHistoryCache_CorruptPayload(t *testing.T) {
	c, mr := newTestCache(t)
	if err := mr.Set("line:history:U1", "not-json"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.GetWindow(context.Background(), "U1"); err == nil {
		t.Error("expected decode error for corrupt payload")
	}
}

func TestHistoryCache_SetWindowIfUnchanged(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	v, err := c.Version(ctx, "U1")
	if err != nil || v != 0 {
		t.Fatalf("expected version 0, got %d %v", v, err)
	}
	stored, err := c.SetWindowIfUnchanged(ctx, "U1", Window{Turns: turns("a")}, v)
	if err != nil || !stored {
		t.Fatalf("expected window stored, got %v %v", stored, err)
	}

	v, _ = c.Version(ctx, "U1")
	if err := c.MarkDirty(ctx, "U1"); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(6 * time.Second)

	// The dirty marker is gone but the version moved on.
	stored, err = c.SetWindowIfUnchanged(ctx, "U1", Window{Turns: turns("stale")}, v)
	if err != nil || stored {
		t.Fatalf("expected stale window rejected, got %v %v", stored, err)
	}

	v, _ = c.Version(ctx, "U1")
	if err := c.DeleteWindow(ctx, "U1"); err != nil {
		t.Fatal(err)
	}
	if after, _ := c.Version(ctx, "U1"); after != v+1 {
		t.Errorf("expected DeleteWindow to bump version to %d, got %d", v+1, after)
	}
	if stored, _ := c.SetWindowIfUnchanged(ctx, "U1", Window{Turns: turns("stale")}, v); stored {
		t.Error("expected window rejected after delete")
	}
	if _, hit, _ := c.GetWindow(ctx, "U1"); hit {
		t.Error("expected no window cached")
	}
}

func TestHistoryCache_SetWindowIfUnchangedWhileDirty(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.MarkDirty(ctx, "U1"); err != nil {
		t.Fatal(err)
	}
	v, _ := c.Version(ctx, "U1")
	if stored, err := c.SetWindowIfUnchanged(ctx, "U1", Window{Turns: turns("a")}, v); err != nil || stored {
		t.Errorf("expected no refill while dirty, got %v %v", stored, err)
	}
}
