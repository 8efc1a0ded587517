package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"line-relay/internal/line"
	"line-relay/internal/model"
	"line-relay/internal/observability"
)

const (
	ResetReply       = "✅ Cleared our chat history."
	FallbackMessage  = "I got your message! (Temporary fallback)"
	ReplyHistorySize = 20
)

var resetCommands = map[string]struct{}{
	"/reset": {},
	"reset":  {},
}

type TurnStore interface {
	Append(ctx context.Context, userID, role, text string) error
	Recent(ctx context.Context, userID string, n int) ([]model.ChatTurn, error)
	Clear(ctx context.Context, userID string) error
}

type ReplyWriter interface {
	GenerateReply(ctx context.Context, userText string, history []model.ChatTurn) (string, error)
}

type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

type TurnEventPublisher interface {
	Publish(ctx context.Context, event model.TurnEvent) error
}

// Dispatcher turns inbound webhook events into stored turns and replies.
// Turns for the same user run one at a time; different users run in
// parallel.
type Dispatcher struct {
	store     TurnStore
	writer    ReplyWriter
	replier   Replier
	publisher TurnEventPublisher
	metrics   *observability.Metrics
	logger    *slog.Logger
	locks     *userLocks
	now       func() time.Time
}

// NewDispatcher wires the dispatcher. publisher and metrics may be nil.
func NewDispatcher(
	store TurnStore,
	writer ReplyWriter,
	replier Replier,
	publisher TurnEventPublisher,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:     store,
		writer:    writer,
		replier:   replier,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		locks:     newUserLocks(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// IsResetCommand reports whether text asks to clear the history.
func IsResetCommand(text string) bool {
	_, ok := resetCommands[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// HandleBatch processes events in order. A failing event is logged and the
// rest of the batch still runs.
func (d *Dispatcher) HandleBatch(ctx context.Context, events []line.Event) {
	for i, event := range events {
		if err := d.HandleEvent(ctx, event); err != nil {
			d.logger.Error("webhook event aborted",
				"index", i,
				"user_id", event.Source.UserID,
				"error", err,
			)
		}
	}
}

// HandleEvent runs one event to completion. Events that are not text
// messages, or that lack a reply token or user id, are skipped without side
// effects. Only store failures are returned; generation and delivery
// failures are absorbed.
func (d *Dispatcher) HandleEvent(ctx context.Context, event line.Event) error {
	text, ok := event.TextMessage()
	if !ok {
		return nil
	}
	replyToken := strings.TrimSpace(event.ReplyToken)
	userID := strings.TrimSpace(event.Source.UserID)
	if replyToken == "" || userID == "" {
		return nil
	}

	unlock := d.locks.Lock(userID)
	defer unlock()

	var (
		path     string
		reply    string
		fallback bool
		err      error
	)
	if IsResetCommand(text) {
		path = model.TurnPathCommand
		reply, err = d.reset(ctx, userID)
	} else {
		path = model.TurnPathMessage
		reply, fallback, err = d.converse(ctx, userID, text)
	}
	if err != nil {
		return err
	}
	d.metrics.IncTurn(path)

	deliveryErr := d.replier.Reply(ctx, replyToken, reply)
	d.metrics.ObserveDelivery("reply", deliveryErr)
	if deliveryErr != nil {
		d.logger.Warn("reply delivery failed", "user_id", userID, "error", deliveryErr)
	}

	d.publish(ctx, userID, path, fallback, deliveryErr)
	return nil
}

func (d *Dispatcher) reset(ctx context.Context, userID string) (string, error) {
	if err := d.store.Clear(ctx, userID); err != nil {
		return "", err
	}
	if err := d.store.Append(ctx, userID, model.RoleAssistant, ResetReply); err != nil {
		return "", err
	}
	return ResetReply, nil
}

func (d *Dispatcher) converse(ctx context.Context, userID, text string) (string, bool, error) {
	if err := d.store.Append(ctx, userID, model.RoleUser, text); err != nil {
		return "", false, err
	}
	history, err := d.store.Recent(ctx, userID, ReplyHistorySize)
	if err != nil {
		return "", false, err
	}

	fallback := false
	reply, err := d.writer.GenerateReply(ctx, text, history)
	if err != nil {
		d.logger.Error("reply generation failed", "user_id", userID, "error", err)
		d.metrics.IncFallback()
		reply = FallbackMessage
		fallback = true
	}

	if err := d.store.Append(ctx, userID, model.RoleAssistant, reply); err != nil {
		return "", false, err
	}
	return reply, fallback, nil
}

func (d *Dispatcher) publish(ctx context.Context, userID, path string, fallback bool, deliveryErr error) {
	if d.publisher == nil {
		return
	}
	event := model.TurnEvent{
		ID:           uuid.NewString(),
		UserID:       userID,
		Path:         path,
		FallbackUsed: fallback,
		Delivered:    deliveryErr == nil,
		OccurredAt:   d.now(),
	}
	if deliveryErr != nil {
		event.DeliveryError = deliveryErr.Error()
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Warn("turn event publish failed", "user_id", userID, "error", err)
	}
}
