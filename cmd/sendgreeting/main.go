// Command sendgreeting generates one greeting and pushes it to LINE_USER_ID.
// It is meant for cron-style schedulers and exits non-zero on any failure.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"line-relay/internal/ai"
	"line-relay/internal/app"
	"line-relay/internal/bootstrap"
	"line-relay/internal/config"
	"line-relay/internal/line"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "send greeting failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Sent greeting to LINE user.")
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := bootstrap.SetupLogging(cfg.App.LogLevel)

	if err := cfg.Validate(); err != nil {
		return err
	}

	llm := ai.NewOpenAICompatibleClient(ai.ClientConfig{
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		APIStyle: cfg.LLM.APIStyle,
		Timeout:  cfg.LLMTimeout(),
	})
	greetings := app.NewGreetingService(
		cfg,
		app.NewReplyGenerator(llm, cfg.LLM.Model, nil),
		line.NewClient(cfg.Line),
		nil,
		logger,
	)

	_, err = greetings.Send(ctx, app.GreetingInput{
		Style:   cfg.Greeting.Style,
		Context: strings.TrimSpace(os.Getenv("USER_CONTEXT")),
	})
	return err
}
