package line

import "strings"

// WebhookPayload is the body LINE posts to the webhook endpoint.
type WebhookPayload struct {
	Destination string  `json:"destination,omitempty"`
	Events      []Event `json:"events"`
}

type Event struct {
	Type       string        `json:"type"`
	Message    *EventMessage `json:"message,omitempty"`
	ReplyToken string        `json:"replyToken"`
	Source     EventSource   `json:"source"`
	Timestamp  int64         `json:"timestamp,omitempty"`
}

type EventMessage struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type EventSource struct {
	Type   string `json:"type,omitempty"`
	UserID string `json:"userId"`
}

// TextMessage reports whether the event is a text message and returns its
// trimmed text.
func (e Event) TextMessage() (string, bool) {
	if e.Type != "message" || e.Message == nil || e.Message.Type != "text" {
		return "", false
	}
	return strings.TrimSpace(e.Message.Text), true
}
