package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"line-relay/internal/model"
	"line-relay/internal/platform/database"
	"line-relay/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&model.ChatTurn{}, &model.TurnEvent{}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func testStore(t *testing.T) *HistoryStore {
	t.Helper()
	return NewHistoryStore(repository.NewTurnRepository(testDB(t)), nil, testLogger())
}

func texts(turns []model.ChatTurn) []string {
	out := make([]string, len(turns))
	for i, turn := range turns {
		out[i] = turn.Role + ":" + turn.Text
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
