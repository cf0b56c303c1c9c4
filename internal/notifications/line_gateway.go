package notifications

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
)

const defaultLinePushURL = "https://api.line.me/v2/bot/message/push"

// LineLogger defines the logging contract for LINE gateway operations.
type LineLogger func(ctx context.Context, event string, fields map[string]any)

// LineGatewayConfig configures the LineGateway.
type LineGatewayConfig struct {
	ChannelToken string
	PushURL      string
	HTTPClient   *http.Client
	Logger       LineLogger
}

// LineGateway delivers messages through the LINE Messaging API push endpoint.
type LineGateway struct {
	channelToken string
	pushURL      string
	client       *http.Client
	logger       LineLogger
}

// NewLineGateway constructs a LINE gateway using the given configuration.
func NewLineGateway(cfg LineGatewayConfig) (*LineGateway, error) {
	token := strings.TrimSpace(cfg.ChannelToken)
	if token == "" {
		return nil, errors.New("line: channel token is required")
	}

	pushURL := strings.TrimSpace(cfg.PushURL)
	if pushURL == "" {
		pushURL = defaultLinePushURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &LineGateway{
		channelToken: token,
		pushURL:      pushURL,
		client:       client,
		logger:       logger,
	}, nil
}

type linePushPayload struct {
	To       string            `json:"to"`
	Messages []linePushMessage `json:"messages"`
}

type linePushMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Send pushes a single text message to the recipient's LINE user ID.
func (g *LineGateway) Send(ctx context.Context, msg Message) error {
	if g == nil {
		return errors.New("line: gateway is nil")
	}
	recipient := strings.TrimSpace(msg.Recipient)
	if recipient == "" {
		return errors.New("line: recipient is required")
	}

	text := msg.Body
	if title := strings.TrimSpace(msg.Title); title != "" {
		text = title + "\n" + msg.Body
	}

	body, err := json.Marshal(linePushPayload{
		To:       recipient,
		Messages: []linePushMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("line: encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.pushURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("line: build push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.channelToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("line: push request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("line: push returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	g.logger(ctx, "notifications.line.sent", map[string]any{
		"recipient": recipient,
	})
	return nil
}
