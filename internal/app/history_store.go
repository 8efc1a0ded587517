package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"line-relay/internal/cache"
	"line-relay/internal/model"
	"line-relay/internal/repository"
)

// HistoryCache is the optional read-through window in front of the turn
// table. Implementations must tolerate concurrent use.
type HistoryCache interface {
	WindowSize() int
	GetWindow(ctx context.Context, userID string) (cache.Window, bool, error)
	Version(ctx context.Context, userID string) (int64, error)
	SetWindowIfUnchanged(ctx context.Context, userID string, w cache.Window, version int64) (bool, error)
	DeleteWindow(ctx context.Context, userID string) error
	MarkDirty(ctx context.Context, userID string) error
	IsDirty(ctx context.Context, userID string) (bool, error)
}

// HistoryStore keeps each user's conversation as an append-only sequence of
// turns. The database is the source of truth; the cache only answers reads
// while no write for the user is in flight.
type HistoryStore struct {
	repo   *repository.TurnRepository
	cache  HistoryCache
	logger *slog.Logger
	now    func() time.Time
}

func NewHistoryStore(repo *repository.TurnRepository, historyCache HistoryCache, logger *slog.Logger) *HistoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStore{
		repo:   repo,
		cache:  historyCache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Append stores one turn. Empty text after trimming is dropped without error.
func (s *HistoryStore) Append(ctx context.Context, userID, role, text string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if !model.IsValidRole(role) {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.invalidate(ctx, userID)
	turn := &model.ChatTurn{
		UserID:    userID,
		Role:      role,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, turn); err != nil {
		return err
	}
	s.dropWindow(ctx, userID)
	return nil
}

// Recent returns at most n of the user's latest turns, oldest first.
func (s *HistoryStore) Recent(ctx context.Context, userID string, n int) ([]model.ChatTurn, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || n <= 0 {
		return []model.ChatTurn{}, nil
	}

	if turns, ok := s.cachedTail(ctx, userID, n); ok {
		return turns, nil
	}

	limit := n
	if s.cache != nil && s.cache.WindowSize() > limit {
		limit = s.cache.WindowSize()
	}
	version, versionOK := s.cacheVersion(ctx, userID)
	turns, err := s.repo.ListRecentByUserID(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if versionOK {
		s.refill(ctx, userID, turns, limit, version)
	}

	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	if turns == nil {
		turns = []model.ChatTurn{}
	}
	return turns, nil
}

// Clear deletes every turn of the user. Unknown or empty users are a no-op.
func (s *HistoryStore) Clear(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}

	s.invalidate(ctx, userID)
	deleted, err := s.repo.DeleteByUserID(ctx, userID)
	if err != nil {
		return err
	}
	s.dropWindow(ctx, userID)
	s.logger.Info("history cleared", "user_id", userID, "turns", deleted)
	return nil
}

func (s *HistoryStore) cachedTail(ctx context.Context, userID string, n int) ([]model.ChatTurn, bool) {
	if s.cache == nil {
		return nil, false
	}
	dirty, err := s.cache.IsDirty(ctx, userID)
	if err != nil {
		s.logger.Warn("history cache dirty check failed", "user_id", userID, "error", err)
		return nil, false
	}
	if dirty {
		return nil, false
	}
	w, hit, err := s.cache.GetWindow(ctx, userID)
	if err != nil {
		s.logger.Warn("history cache read failed", "user_id", userID, "error", err)
		return nil, false
	}
	if !hit {
		return nil, false
	}
	tail, ok := w.Tail(n)
	if !ok {
		return nil, false
	}
	out := make([]model.ChatTurn, len(tail))
	copy(out, tail)
	return out, true
}

// cacheVersion reads the user's write counter before a database read so
// the refill can detect writes that happen in between.
func (s *HistoryStore) cacheVersion(ctx context.Context, userID string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	version, err := s.cache.Version(ctx, userID)
	if err != nil {
		s.logger.Warn("history cache version read failed", "user_id", userID, "error", err)
		return 0, false
	}
	return version, true
}

func (s *HistoryStore) refill(ctx context.Context, userID string, turns []model.ChatTurn, limit int, version int64) {
	size := s.cache.WindowSize()
	w := cache.Window{
		Turns:    turns,
		Complete: len(turns) < limit && len(turns) <= size,
	}
	if len(w.Turns) > size {
		w.Turns = w.Turns[len(w.Turns)-size:]
	}
	stored, err := s.cache.SetWindowIfUnchanged(ctx, userID, w, version)
	if err != nil {
		s.logger.Warn("history cache refill failed", "user_id", userID, "error", err)
		return
	}
	if !stored {
		s.logger.Debug("history cache refill skipped after concurrent write", "user_id", userID)
	}
}

func (s *HistoryStore) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.MarkDirty(ctx, userID); err != nil {
		s.logger.Warn("history cache mark dirty failed", "user_id", userID, "error", err)
	}
	s.dropWindow(ctx, userID)
}

func (s *HistoryStore) dropWindow(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteWindow(ctx, userID); err != nil {
		s.logger.Warn("history cache delete failed", "user_id", userID, "error", err)
	}
}
