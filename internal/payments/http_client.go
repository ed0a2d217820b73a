package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPProvider talks to a hosted-checkout API over JSON. Requests carry the
// secret key as a bearer credential, mirroring how the checkout providers the
// platform integrates with authenticate server-side calls.
type HTTPProvider struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewHTTPProvider(baseURL, secretKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL:   baseURL,
		secretKey: secretKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createSessionPayload struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata"`
	SuccessURL  string            `json:"successUrl"`
	CancelURL   string            `json:"cancelUrl"`
}

func (p *HTTPProvider) CreateSession(ctx context.Context, req CreateSessionRequest) (CheckoutSession, error) {
	payload := createSessionPayload{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Metadata: map[string]string{
			"contestId": req.ContestID,
			"userEmail": req.UserEmail,
		},
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}

	var session CheckoutSession

	err := p.do(ctx, http.MethodPost, "/v1/checkout/sessions", payload, &session)

	if err != nil {
		return CheckoutSession{}, err
	}

	return session, nil
}

func (p *HTTPProvider) GetSession(ctx context.Context, id string) (CheckoutSession, error) {
	var session CheckoutSession

	err := p.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(id), nil, &session)

	if err != nil {
		return CheckoutSession{}, err
	}

	return session, nil
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)

		if err != nil {
			return err
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)

	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := p.client.Do(req)

	if err != nil {
		return err
	}

	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrSessionNotFound
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		// keep provider error bodies out of caller-facing messages
		return fmt.Errorf("checkout provider returned status %d", res.StatusCode)
	}

	return json.NewDecoder(res.Body).Decode(out)
}
