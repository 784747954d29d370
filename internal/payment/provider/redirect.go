package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/jeseias/djezyas/internal/apperr"
)

// RedirectProvider integrates the external redirect-based gateway. A checkout
// session is a short-lived frame token requested from the gateway; the
// shopper is sent to the hosted payment page and the gateway reports the
// outcome through the webhook callback.
type RedirectProvider struct {
	client    *http.Client
	baseURL   string
	frameID   string
	terminal  string
	returnURL string
	breaker   *gobreaker.CircuitBreaker[*Session]
}

type RedirectConfig struct {
	BaseURL   string
	FrameID   string
	Terminal  string
	ReturnURL string
	Timeout   time.Duration
}

func NewRedirectProvider(cfg RedirectConfig) *RedirectProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "redirect-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &RedirectProvider{
		client:    &http.Client{Timeout: timeout},
		baseURL:   cfg.BaseURL,
		frameID:   cfg.FrameID,
		terminal:  cfg.Terminal,
		returnURL: cfg.ReturnURL,
		breaker:   gobreaker.NewCircuitBreaker[*Session](settings),
	}
}

type frameTokenRequest struct {
	Reference   string `json:"reference"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Terminal    string `json:"terminal"`
	CallbackURL string `json:"callbackUrl"`
}

type frameTokenResponse struct {
	ID         string `json:"id"`
	TimeToLive int    `json:"timeToLive"` // seconds
}

func (p *RedirectProvider) CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
	session, err := p.breaker.Execute(func() (*Session, error) {
		return p.requestFrameToken(ctx, params)
	})
	if err != nil {
		return nil, apperr.External("provider_unavailable", "payment gateway request failed", err)
	}
	return session, nil
}

func (p *RedirectProvider) requestFrameToken(ctx context.Context, params CreateSessionParams) (*Session, error) {
	body, err := json.Marshal(frameTokenRequest{
		Reference:   params.Reference,
		Amount:      params.Amount,
		Currency:    params.Currency,
		Terminal:    p.terminal,
		CallbackURL: p.returnURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal frame token request: %w", err)
	}

	url := fmt.Sprintf("%s/frameToken", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build frame token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("frame token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("frame token request returned %d", resp.StatusCode)
	}

	var tokenResp frameTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("decode frame token response: %w", err)
	}
	if tokenResp.ID == "" {
		return nil, fmt.Errorf("frame token response missing id")
	}

	session := &Session{
		TransactionID: tokenResp.ID,
		PaymentURL:    fmt.Sprintf("%s/frame/%s/%s", p.baseURL, p.frameID, tokenResp.ID),
	}
	if tokenResp.TimeToLive > 0 {
		expires := time.Now().Add(time.Duration(tokenResp.TimeToLive) * time.Second)
		session.ExpiresAt = &expires
	}

	return session, nil
}
