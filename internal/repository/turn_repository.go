package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"line-relay/internal/model"
)

// TurnRepository persists chat turns. Every query orders by Seq, the
// insertion sequence assigned by the database.
type TurnRepository struct {
	db *gorm.DB
}

func NewTurnRepository(db *gorm.DB) *TurnRepository {
	return &TurnRepository{db: db}
}

func (r *TurnRepository) Create(ctx context.Context, turn *model.ChatTurn) error {
	if err := r.db.WithContext(ctx).Create(turn).Error; err != nil {
		return fmt.Errorf("create chat turn failed: %w", err)
	}
	return nil
}

// ListRecentByUserID returns at most limit turns, oldest first.
func (r *TurnRepository) ListRecentByUserID(ctx context.Context, userID string, limit int) ([]model.ChatTurn, error) {
	if limit <= 0 {
		return nil, nil
	}

	var turns []model.ChatTurn
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("seq DESC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("list recent chat turns failed: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (r *TurnRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.ChatTurn{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete chat turns failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
