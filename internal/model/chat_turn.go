package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one immutable message in a user's conversation. Seq is the
// insertion sequence; reads order by it and nothing else.
type ChatTurn struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement;index:idx_chat_turns_user_seq,priority:2" json:"seq"`
	UserID    string    `gorm:"size:128;not null;index:idx_chat_turns_user_seq,priority:1" json:"user_id"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}
