package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"

	"line-relay/internal/model"
	"line-relay/internal/platform/rabbitmq"
	"line-relay/internal/repository"
)

// TurnEventWorker drains the turn event queue into the turn_events table.
type TurnEventWorker struct {
	conn      *amqp.Connection
	repo      *repository.TurnEventRepository
	queueName string
	logger    *slog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

func NewTurnEventWorker(conn *amqp.Connection, repo *repository.TurnEventRepository, queueName string, logger *slog.Logger) *TurnEventWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnEventWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
		logger:    logger,
	}
}

func (w *TurnEventWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	w.running.Store(true)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()
		w.consume(workerCtx, deliveries, closed)
	}()

	w.logger.Info("turn event worker started", "queue", w.queueName)
	return nil
}

// consume acks persisted events until ctx ends or the broker closes the
// channel. A broker-side close is logged and leaves Running false.
func (w *TurnEventWorker) consume(ctx context.Context, deliveries <-chan amqp.Delivery, closed <-chan *amqp.Error) {
	w.running.Store(true)
	defer w.running.Store(false)

	var reason *amqp.Error
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-closed:
			if ok && err != nil {
				reason = err
				w.logger.Warn("turn event channel closed by broker", "queue", w.queueName, "error", err)
			}
			closed = nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() == nil {
					w.logger.Warn("turn event worker stopped, events are no longer persisted",
						"queue", w.queueName,
						"reason", reason,
					)
				}
				return
			}
			if err := w.handle(ctx, d.Body); err != nil {
				w.logger.Error("turn event not persisted", "message_id", d.MessageId, "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Running reports whether the worker is still consuming.
func (w *TurnEventWorker) Running() bool {
	return w.running.Load()
}

func (w *TurnEventWorker) handle(ctx context.Context, body []byte) error {
	var event model.TurnEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode turn event failed: %w", err)
	}
	if event.ID == "" || event.UserID == "" {
		return fmt.Errorf("turn event is missing id or user id")
	}
	return w.repo.Create(ctx, &event)
}

func (w *TurnEventWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
