package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"line-relay/internal/config"
)

func TestNew_DisabledWithoutAddr(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{})
	if err != nil || client != nil {
		t.Errorf("expected nil client and nil error, got %v, %v", client, err)
	}
}

func TestNew_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()
}

func TestNew_UnreachableFails(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := New(context.Background(), config.RedisConfig{Addr: addr}); err == nil {
		t.Error("expected error for unreachable redis")
	}
}
