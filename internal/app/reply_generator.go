package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"line-relay/internal/ai"
	"line-relay/internal/model"
	"line-relay/internal/observability"
)

const (
	DefaultGreetingStyle = "warm"
	FallbackGreeting     = "Hello! Hope you have a great day today."
	FallbackReply        = "Got it!"

	// transcriptLineCap bounds how much history reaches the backend.
	transcriptLineCap = 30
)

const greetingInstructions = "You write short, friendly greeting messages for LINE chat.\n" +
	"Rules:\n" +
	"- Keep it under 2 short sentences.\n" +
	"- No emojis unless user explicitly asks.\n" +
	"- Sound natural and warm.\n"

const replyInstructions = "You are a helpful LINE chat assistant.\n" +
	"Rules:\n" +
	"- Reply in 1-3 short sentences.\n" +
	"- Be natural and friendly.\n" +
	"- Use the conversation history to stay consistent.\n" +
	"- If the user asks you to remember something, you may acknowledge it.\n" +
	"- Do NOT invent personal facts.\n"

// TextGenerator is one stateless call to a language model backend.
type TextGenerator interface {
	Generate(ctx context.Context, req ai.Request) (string, error)
}

type ReplyGenerator struct {
	backend TextGenerator
	model   string
	metrics *observability.Metrics
}

func NewReplyGenerator(backend TextGenerator, modelName string, metrics *observability.Metrics) *ReplyGenerator {
	return &ReplyGenerator{
		backend: backend,
		model:   modelName,
		metrics: metrics,
	}
}

// GenerateGreeting writes a short standalone greeting in the given style.
func (g *ReplyGenerator) GenerateGreeting(ctx context.Context, style, userContext string) (string, error) {
	style = strings.TrimSpace(style)
	if style == "" {
		style = DefaultGreetingStyle
	}
	userContext = strings.TrimSpace(userContext)

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Style: %s\n", style)
	if userContext != "" {
		fmt.Fprintf(&prompt, "Context: %s\n", userContext)
	}
	prompt.WriteString("Write today's greeting.")

	text, err := g.generate(ctx, greetingInstructions, prompt.String())
	if err != nil {
		return "", err
	}
	if text == "" {
		return FallbackGreeting, nil
	}
	return text, nil
}

// GenerateReply answers userText given the conversation so far. history is
// oldest first; nil and empty behave the same.
func (g *ReplyGenerator) GenerateReply(ctx context.Context, userText string, history []model.ChatTurn) (string, error) {
	userText = strings.TrimSpace(userText)

	text, err := g.generate(ctx, replyInstructions, BuildReplyPrompt(userText, history))
	if err != nil {
		return "", err
	}
	if text == "" {
		return FallbackReply, nil
	}
	return text, nil
}

// BuildReplyPrompt renders history as a plain transcript capped to its last
// 30 lines, followed by the new user line and an open assistant line.
func BuildReplyPrompt(userText string, history []model.ChatTurn) string {
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		prefix := "Assistant"
		if turn.Role == model.RoleUser {
			prefix = "User"
		}
		lines = append(lines, prefix+": "+turn.Text)
	}
	if len(lines) > transcriptLineCap {
		lines = lines[len(lines)-transcriptLineCap:]
	}

	return "Conversation so far:\n" +
		strings.Join(lines, "\n") + "\n\n" +
		"User: " + userText + "\n" +
		"Assistant:"
}

func (g *ReplyGenerator) generate(ctx context.Context, instructions, input string) (string, error) {
	start := time.Now()
	text, err := g.backend.Generate(ctx, ai.Request{
		Model:        g.model,
		Instructions: instructions,
		Input:        input,
	})
	g.metrics.ObserveGeneration(time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return strings.TrimSpace(text), nil
}
