package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tutoring-payments/internal/config"
	"tutoring-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*CardGateway)(nil)

// CardGateway implements adapter.PaymentGateway against a Stripe-compatible
// payment intents REST API (form-encoded requests, bearer secret key).
type CardGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCardGateway(cfg config.GatewayConfig) (*CardGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gateway api key empty")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CardGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (g *CardGateway) Name() string { return "card" }

type intentResponse struct {
	ID               string `json:"id"`
	ClientSecret     string `json:"client_secret"`
	Status           string `json:"status"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateChargeIntent calls POST /v1/payment_intents. The payment id doubles
// as the idempotency key so a retried checkout never opens a second intent.
func (g *CardGateway) CreateChargeIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (adapter.ChargeIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return adapter.ChargeIntent{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if id := metadata["payment_id"]; id != "" {
		req.Header.Set("Idempotency-Key", id)
	}

	var out intentResponse
	if err := g.do(req, &out); err != nil {
		return adapter.ChargeIntent{}, err
	}
	if out.ID == "" || out.ClientSecret == "" {
		return adapter.ChargeIntent{}, errors.New("gateway returned an incomplete intent")
	}
	return adapter.ChargeIntent{ID: out.ID, ClientSecret: out.ClientSecret}, nil
}

// RetrieveIntent calls GET /v1/payment_intents/{id} and folds the provider
// status into the four states the ledger cares about.
func (g *CardGateway) RetrieveIntent(ctx context.Context, intentID string) (adapter.IntentStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/payment_intents/"+url.PathEscape(intentID), nil)
	if err != nil {
		return "", err
	}
	var out intentResponse
	if err := g.do(req, &out); err != nil {
		return "", err
	}
	switch out.Status {
	case "succeeded":
		return adapter.IntentStatusSucceeded, nil
	case "canceled":
		return adapter.IntentStatusCancelled, nil
	case "requires_payment_method":
		// a declined attempt drops the intent back here with the error attached
		if out.LastPaymentError != nil {
			return adapter.IntentStatusFailed, nil
		}
		return adapter.IntentStatusPending, nil
	default:
		return adapter.IntentStatusPending, nil
	}
}

func (g *CardGateway) do(req *http.Request, into any) error {
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gateway http %d: %s: %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return fmt.Errorf("gateway http %d", resp.StatusCode)
	}
	return json.Unmarshal(body, into)
}
