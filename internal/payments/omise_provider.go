package payments

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

const defaultOmiseBaseURL = "https://api.omise.co"

// OmiseLogger defines the logging contract for Omise provider operations.
type OmiseLogger func(ctx context.Context, event string, fields map[string]any)

// OmiseProviderConfig configures the OmiseProvider.
type OmiseProviderConfig struct {
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
	Logger     OmiseLogger
}

// OmiseProvider implements the Provider interface against the Omise charges API.
type OmiseProvider struct {
	secretKey string
	baseURL   string
	client    *http.Client
	logger    OmiseLogger
}

// NewOmiseProvider constructs an Omise Provider using the given configuration.
func NewOmiseProvider(cfg OmiseProviderConfig) (*OmiseProvider, error) {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errors.New("omise: secret key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOmiseBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &OmiseProvider{
		secretKey: secretKey,
		baseURL:   baseURL,
		client:    client,
		logger:    logger,
	}, nil
}

type omiseChargePayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Card     string `json:"card"`
}

type omiseChargeResponse struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	FailureMessage string `json:"failure_message"`
}

// Charge creates an Omise charge against the supplied card token.
func (p *OmiseProvider) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if p == nil {
		return ChargeResult{}, errors.New("omise: provider is nil")
	}
	if strings.TrimSpace(req.Token) == "" {
		return ChargeResult{}, errors.New("omise: card token is required")
	}

	payload := omiseChargePayload{
		Amount:   req.Amount,
		Currency: strings.ToLower(strings.TrimSpace(req.Currency)),
		Card:     req.Token,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("omise: encode charge: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return ChargeResult{}, fmt.Errorf("omise: build charge request: %w", err)
	}
	httpReq.SetBasicAuth(p.secretKey, "")
	httpReq.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		httpReq.Header.Set("Idempotency-Key", key)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("omise: charge request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ChargeResult{}, fmt.Errorf("omise: read charge response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ChargeResult{}, fmt.Errorf("omise: charge returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var charge omiseChargeResponse
	if err := json.Unmarshal(data, &charge); err != nil {
		return ChargeResult{}, fmt.Errorf("omise: decode charge response: %w", err)
	}

	p.logger(ctx, "payments.omise.charge.created", map[string]any{
		"chargeId": charge.ID,
		"status":   charge.Status,
		"amount":   charge.Amount,
	})

	return ChargeResult{
		TransactionID:  charge.ID,
		Provider:       "omise",
		Amount:         charge.Amount,
		Currency:       strings.ToUpper(charge.Currency),
		Status:         omiseStatus(charge.Status),
		FailureMessage: charge.FailureMessage,
	}, nil
}

func omiseStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "successful":
		return StatusSucceeded
	case "failed", "expired", "reversed":
		return StatusFailed
	default:
		return StatusPending
	}
}
