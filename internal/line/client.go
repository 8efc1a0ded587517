package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"line-relay/internal/config"
)

const (
	DefaultReplyURL = "https://api.line.me/v2/bot/message/reply"
	DefaultPushURL  = "https://api.line.me/v2/bot/message/push"

	// MaxTextLength is the LINE limit for one text message, in characters.
	MaxTextLength = 5000
)

// ErrDelivery marks a send the platform rejected or never received.
var ErrDelivery = errors.New("delivery failed")

// DeliveryError carries the platform status for a rejected send.
type DeliveryError struct {
	Kind       string
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %s failed: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("line %s failed (%d): %s", e.Kind, e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDelivery, e.Err}
	}
	return []error{ErrDelivery}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// Client sends text through the LINE Messaging API.
type Client struct {
	token       string
	replyURL    string
	pushURL     string
	replyClient *http.Client
	pushClient  *http.Client
}

func NewClient(cfg config.LineConfig) *Client {
	c := &Client{
		token:       cfg.ChannelAccessToken,
		replyURL:    cfg.ReplyURL,
		pushURL:     cfg.PushURL,
		replyClient: &http.Client{Timeout: 10 * time.Second},
		pushClient:  &http.Client{Timeout: 30 * time.Second},
	}
	if c.replyURL == "" {
		c.replyURL = DefaultReplyURL
	}
	if c.pushURL == "" {
		c.pushURL = DefaultPushURL
	}
	return c
}

// Reply answers one inbound event through its reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if replyToken == "" {
		return &DeliveryError{Kind: "reply", Err: errors.New("reply token is empty")}
	}
	return c.send(ctx, c.replyClient, "reply", c.replyURL, replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: truncate(text, MaxTextLength)}},
	})
}

// Push sends text to a user without a reply token.
func (c *Client) Push(ctx context.Context, userID, text string) error {
	if strings.TrimSpace(userID) == "" {
		return &DeliveryError{Kind: "push", Err: errors.New("recipient is empty")}
	}
	return c.send(ctx, c.pushClient, "push", c.pushURL, pushRequest{
		To:       userID,
		Messages: []textMessage{{Type: "text", Text: truncate(text, MaxTextLength)}},
	})
}

func (c *Client) send(ctx context.Context, httpClient *http.Client, kind, url string, payload interface{}) error {
	if c.token == "" {
		return fmt.Errorf("line %s: %w: LINE_CHANNEL_ACCESS_TOKEN is empty", kind, config.ErrConfiguration)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal line %s payload failed: %w", kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build line %s request failed: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{Kind: kind, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
