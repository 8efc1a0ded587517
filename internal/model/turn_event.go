package model

import "time"

const (
	TurnPathCommand = "command"
	TurnPathMessage = "message"
)

// TurnEvent is the audit record of one dispatched webhook event.
type TurnEvent struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	UserID        string    `gorm:"size:128;not null;index" json:"user_id"`
	Path          string    `gorm:"size:16;not null" json:"path"`
	FallbackUsed  bool      `gorm:"not null" json:"fallback_used"`
	Delivered     bool      `gorm:"not null" json:"delivered"`
	DeliveryError string    `gorm:"type:text" json:"delivery_error,omitempty"`
	OccurredAt    time.Time `gorm:"not null;index" json:"occurred_at"`
}
