package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"line-relay/internal/model"
)

// versionTTL outlives any window so a counter never resets while a window
// built from it could still be cached.
const versionTTL = 24 * time.Hour

var errWindowStale = errors.New("history window is stale")

// Window is the cached tail of one user's history. Complete is true when the
// tail holds the user's entire history.
type Window struct {
	Turns    []model.ChatTurn `json:"turns"`
	Complete bool             `json:"complete"`
}

// Tail returns the last n turns if the window can answer for n.
func (w Window) Tail(n int) ([]model.ChatTurn, bool) {
	if n <= len(w.Turns) {
		return w.Turns[len(w.Turns)-n:], true
	}
	if w.Complete {
		return w.Turns, true
	}
	return nil, false
}

type HistoryCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
	windowSize     int
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration, windowSize int) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	if windowSize <= 0 {
		windowSize = 50
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
		windowSize:     windowSize,
	}
}

// WindowSize is how many turns a refill should load.
func (c *HistoryCache) WindowSize() int {
	return c.windowSize
}

func (c *HistoryCache) GetWindow(ctx context.Context, userID string) (Window, bool, error) {
	raw, err := c.client.Get(ctx, c.windowKey(userID)).Result()
	if err == redisv9.Nil {
		return Window{}, false, nil
	}
	if err != nil {
		return Window{}, false, fmt.Errorf("redis get history window failed: %w", err)
	}

	var w Window
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Window{}, false, fmt.Errorf("unmarshal cached history window failed: %w", err)
	}
	return w, true, nil
}

func (c *HistoryCache) SetWindow(ctx context.Context, userID string, w Window) error {
	payload, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal history window failed: %w", err)
	}
	if err := c.client.Set(ctx, c.windowKey(userID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history window failed: %w", err)
	}
	return nil
}

// DeleteWindow drops the cached window and bumps the user's version so a
// refill that read the database earlier cannot store its result.
func (c *HistoryCache) DeleteWindow(ctx context.Context, userID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Del(ctx, c.windowKey(userID))
		c.bumpVersion(ctx, pipe, userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete history window failed: %w", err)
	}
	return nil
}

// MarkDirty sets the dirty marker and bumps the user's version.
func (c *HistoryCache) MarkDirty(ctx context.Context, userID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Set(ctx, c.dirtyKey(userID), "1", c.dirtyMarkerTTL)
		c.bumpVersion(ctx, pipe, userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

// Version returns the user's write counter. Zero means no write has been
// recorded within versionTTL.
func (c *HistoryCache) Version(ctx context.Context, userID string) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(userID)).Int64()
	if err == redisv9.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get history version failed: %w", err)
	}
	return v, nil
}

// SetWindowIfUnchanged stores w only if the user's version still equals
// version and no dirty marker is alive. It reports whether w was stored.
func (c *HistoryCache) SetWindowIfUnchanged(ctx context.Context, userID string, w Window, version int64) (bool, error) {
	payload, err := json.Marshal(w)
	if err != nil {
		return false, fmt.Errorf("marshal history window failed: %w", err)
	}

	versionKey := c.versionKey(userID)
	dirtyKey := c.dirtyKey(userID)
	err = c.client.Watch(ctx, func(tx *redisv9.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && err != redisv9.Nil {
			return err
		}
		if current != version {
			return errWindowStale
		}
		dirty, err := tx.Exists(ctx, dirtyKey).Result()
		if err != nil {
			return err
		}
		if dirty > 0 {
			return errWindowStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
			pipe.Set(ctx, c.windowKey(userID), payload, c.historyTTL)
			return nil
		})
		return err
	}, versionKey, dirtyKey)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errWindowStale), errors.Is(err, redisv9.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("redis set history window failed: %w", err)
	}
}

func (c *HistoryCache) IsDirty(ctx context.Context, userID string) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *HistoryCache) windowKey(userID string) string {
	return "line:history:" + userID
}

func (c *HistoryCache) dirtyKey(userID string) string {
	return "line:history:dirty:" + userID
}

func (c *HistoryCache) versionKey(userID string) string {
	return "line:history:version:" + userID
}

func (c *HistoryCache) bumpVersion(ctx context.Context, pipe redisv9.Pipeliner, userID string) {
	pipe.Incr(ctx, c.versionKey(userID))
	pipe.Expire(ctx, c.versionKey(userID), versionTTL)
}
