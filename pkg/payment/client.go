package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/atcms-project/atcms-api/pkg/config"
)

// Provider identifies a supported mobile-money operator.
type Provider string

const (
	ProviderMTN    Provider = "MTN"
	ProviderOrange Provider = "Orange"
	ProviderYooMee Provider = "YooMee"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// ChargeRequest describes a single mobile-money collection.
type ChargeRequest struct {
	Amount      int      `json:"amount"`
	Provider    Provider `json:"provider"`
	PhoneNumber string   `json:"phoneNumber"`
	Description string   `json:"description"`
}

// ChargeResult is the gateway's commit decision for a charge.
type ChargeResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// Client performs synchronous charges against the configured operators.
type Client struct {
	httpClient *http.Client
	cfg        config.PaymentConfig
	logger     *zap.Logger
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.PaymentConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// NormalizeProvider maps loose provider labels ("MTN Mobile Money", "Orange
// Money") onto the canonical operator names.
func NormalizeProvider(raw string) (Provider, error) {
	lowered := strings.ToLower(raw)
	switch {
	case strings.Contains(lowered, "mtn"):
		return ProviderMTN, nil
	case strings.Contains(lowered, "orange"):
		return ProviderOrange, nil
	case strings.Contains(lowered, "yoomee"):
		return ProviderYooMee, nil
	default:
		return "", fmt.Errorf("unsupported payment provider: %s", raw)
	}
}

// Charge runs a single collection against the operator's API. A declined
// charge, malformed phone number, or transport failure all surface as errors;
// the caller treats the call as a commit/reject decision.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if !phonePattern.MatchString(req.PhoneNumber) {
		return nil, fmt.Errorf("invalid phone number for provider %s", req.Provider)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("charge amount must be positive")
	}

	baseURL, apiKey, err := c.endpoint(req.Provider)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/collections", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s charge failed: %w", req.Provider, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var result ChargeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode %s charge response: %w", req.Provider, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !result.Success {
		msg := result.Message
		if msg == "" {
			msg = fmt.Sprintf("charge declined with status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%s payment failed: %s", req.Provider, msg)
	}

	c.logger.Info("payment collected",
		zap.String("provider", string(req.Provider)),
		zap.String("transaction_id", result.TransactionID),
		zap.Int("amount", req.Amount))

	return &result, nil
}

func (c *Client) endpoint(p Provider) (string, string, error) {
	switch p {
	case ProviderMTN:
		return c.cfg.MTNBaseURL, c.cfg.MTNAPIKey, nil
	case ProviderOrange:
		return c.cfg.OrangeBaseURL, c.cfg.OrangeAPIKey, nil
	case ProviderYooMee:
		return c.cfg.YooMeeBaseURL, c.cfg.YooMeeAPIKey, nil
	default:
		return "", "", fmt.Errorf("unsupported payment provider: %s", p)
	}
}
