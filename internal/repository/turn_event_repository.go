package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"line-relay/internal/model"
)

type TurnEventRepository struct {
	db *gorm.DB
}

func NewTurnEventRepository(db *gorm.DB) *TurnEventRepository {
	return &TurnEventRepository{db: db}
}

// Create ignores an event whose ID is already stored, so redelivered queue
// messages are harmless.
func (r *TurnEventRepository) Create(ctx context.Context, event *model.TurnEvent) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event).Error; err != nil {
		return fmt.Errorf("create turn event failed: %w", err)
	}
	return nil
}

// ListRecent returns newest first, at most 200. An empty userID lists all
// users.
func (r *TurnEventRepository) ListRecent(ctx context.Context, userID string, limit int) ([]model.TurnEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := r.db.WithContext(ctx).Order("occurred_at DESC").Limit(limit)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var events []model.TurnEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list turn events failed: %w", err)
	}
	return events, nil
}
