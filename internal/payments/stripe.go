package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StripeClient talks to the payment intents REST API.
type StripeClient struct {
	SecretKey  string
	BaseURL    string
	httpClient *http.Client
}

func NewStripeClient(secret, baseURL string) *StripeClient {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &StripeClient{
		SecretKey:  secret,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type stripeIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type stripeError struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) CreateIntent(ctx context.Context, amountCents int64, currency, reference string) (Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	if reference != "" {
		form.Set("metadata[reference]", reference)
	}
	return c.do(ctx, http.MethodPost, "/v1/payment_intents", form)
}

func (c *StripeClient) ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (Intent, error) {
	form := url.Values{}
	form.Set("payment_method", paymentMethodID)
	return c.do(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(intentID)+"/confirm", form)
}

func (c *StripeClient) RetrieveIntent(ctx context.Context, intentID string) (Intent, error) {
	return c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil)
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values) (Intent, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return Intent{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 300 {
		var se stripeError
		if err := json.Unmarshal(raw, &se); err != nil || se.Error.Message == "" {
			return Intent{}, fmt.Errorf("stripe error: status=%d body=%s", resp.StatusCode, string(raw))
		}
		switch {
		case se.Error.Code == "payment_intent_unexpected_state":
			return Intent{}, ErrIntentAlreadyConfirmed
		case se.Error.Type == "card_error":
			return Intent{}, &DeclineError{Code: se.Error.DeclineCode, Message: se.Error.Message}
		}
		return Intent{}, fmt.Errorf("stripe error: %s", se.Error.Message)
	}

	var out stripeIntent
	if err := json.Unmarshal(raw, &out); err != nil {
		return Intent{}, fmt.Errorf("stripe decode: %w", err)
	}

	return Intent{
		ID:           out.ID,
		ClientSecret: out.ClientSecret,
		Status:       out.Status,
		AmountCents:  out.Amount,
		Currency:     out.Currency,
	}, nil
}
