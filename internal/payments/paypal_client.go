package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PayPalClient is a REST client for the v2 checkout orders API.
type PayPalClient struct {
	ClientID  string
	Secret    string
	BaseURL   string
	WebURL    string
	ReturnURL string
	CancelURL string

	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewPayPalClient(clientID, secret, baseURL, returnURL, cancelURL string) *PayPalClient {
	if baseURL == "" {
		baseURL = "https://api-m.sandbox.paypal.com"
	}
	web := "https://www.sandbox.paypal.com"
	if !strings.Contains(baseURL, "sandbox") {
		web = "https://www.paypal.com"
	}
	return &PayPalClient{
		ClientID:   clientID,
		Secret:     secret,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		WebURL:     web,
		ReturnURL:  returnURL,
		CancelURL:  cancelURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrderResp struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []paypalLink `json:"links"`
	Payer  struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID         string `json:"id"`
				Status     string `json:"status"`
				UpdateTime string `json:"update_time"`
				Amount     struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (c *PayPalClient) CreateOrder(ctx context.Context, amountCents int64, currency, reference string) (PayPalOrder, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": reference,
			"amount": map[string]string{
				"currency_code": strings.ToUpper(currency),
				"value":         decimal.New(amountCents, -2).StringFixed(2),
			},
		}},
		"application_context": map[string]string{
			"return_url": c.ReturnURL,
			"cancel_url": c.CancelURL,
		},
	}

	var out paypalOrderResp
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &out); err != nil {
		return PayPalOrder{}, err
	}

	order := PayPalOrder{ID: out.ID, Status: out.Status}
	for _, l := range out.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			order.ApproveURL = l.Href
		}
	}
	return order, nil
}

func (c *PayPalClient) CaptureOrder(ctx context.Context, orderID string) (PayPalOrder, error) {
	var out paypalOrderResp
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", struct{}{}, &out); err != nil {
		return PayPalOrder{}, err
	}

	order := PayPalOrder{ID: out.ID, Status: out.Status, PayerEmail: out.Payer.EmailAddress}
	if len(out.PurchaseUnits) > 0 && len(out.PurchaseUnits[0].Payments.Captures) > 0 {
		capture := out.PurchaseUnits[0].Payments.Captures[0]
		order.UpdateTime = capture.UpdateTime
		if capture.Amount.Value != "" {
			value, err := decimal.NewFromString(capture.Amount.Value)
			if err != nil {
				return PayPalOrder{}, fmt.Errorf("paypal capture amount %q: %w", capture.Amount.Value, err)
			}
			order.AmountCents = value.Shift(2).Round(0).IntPart()
			order.Currency = capture.Amount.CurrencyCode
		}
	}
	return order, nil
}

func (c *PayPalClient) ApproveURL(orderID string) string {
	return c.WebURL + "/checkoutnow?token=" + url.QueryEscape(orderID)
}

func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token error: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("paypal token decode: %w", err)
	}

	c.token = tok.AccessToken
	// refresh a minute early
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func (c *PayPalClient) do(ctx context.Context, method, path string, in, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var pe struct {
			Name    string `json:"name"`
			Message string `json:"message"`
			Details []struct {
				Issue       string `json:"issue"`
				Description string `json:"description"`
			} `json:"details"`
		}
		if json.Unmarshal(raw, &pe) == nil && len(pe.Details) > 0 {
			return fmt.Errorf("paypal %s: %s", pe.Details[0].Issue, pe.Details[0].Description)
		}
		return fmt.Errorf("paypal error: status=%d body=%s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("paypal decode: %w", err)
	}
	return nil
}
