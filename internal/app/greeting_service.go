package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"line-relay/internal/config"
	"line-relay/internal/observability"
)

type GreetingWriter interface {
	GenerateGreeting(ctx context.Context, style, userContext string) (string, error)
}

type Pusher interface {
	Push(ctx context.Context, userID, text string) error
}

type GreetingInput struct {
	Style   string
	Context string
}

type GreetingResult struct {
	Recipient string `json:"recipient,omitempty"`
	Message   string `json:"message"`
}

// GreetingService generates greetings on demand and pushes them to the
// configured default recipient.
type GreetingService struct {
	cfg     *config.Config
	writer  GreetingWriter
	pusher  Pusher
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewGreetingService(cfg *config.Config, writer GreetingWriter, pusher Pusher, metrics *observability.Metrics, logger *slog.Logger) *GreetingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GreetingService{
		cfg:     cfg,
		writer:  writer,
		pusher:  pusher,
		metrics: metrics,
		logger:  logger,
	}
}

// Preview generates a greeting without sending it. An empty style falls back
// to the configured one.
func (s *GreetingService) Preview(ctx context.Context, input GreetingInput) (*GreetingResult, error) {
	msg, err := s.writer.GenerateGreeting(ctx, s.style(input.Style), input.Context)
	if err != nil {
		return nil, err
	}
	return &GreetingResult{Message: msg}, nil
}

// Send validates the full configuration first, so nothing is generated or
// sent when any required setting is missing.
func (s *GreetingService) Send(ctx context.Context, input GreetingInput) (*GreetingResult, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	msg, err := s.writer.GenerateGreeting(ctx, s.style(input.Style), input.Context)
	if err != nil {
		return nil, err
	}

	recipient := s.cfg.Line.DefaultUserID
	err = s.pusher.Push(ctx, recipient, msg)
	s.metrics.ObserveDelivery("push", err)
	if err != nil {
		return nil, fmt.Errorf("push greeting failed: %w", err)
	}

	s.logger.Info("greeting sent", "user_id", recipient)
	return &GreetingResult{Recipient: recipient, Message: msg}, nil
}

func (s *GreetingService) style(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	return s.cfg.Greeting.Style
}
