package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

// APIError es una respuesta no-2xx de una API transaccional.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.Status, e.Body)
}

func newHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// postJSON envía payload con bearer auth y falla con *APIError si el status no es 2xx.
func postJSON(ctx context.Context, client *http.Client, provider, url, apiKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode payload: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", provider, err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{Provider: provider, Status: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ─── Resend ───

// ResendConfig configura la API de Resend (POST /emails).
type ResendConfig struct {
	APIKey  string
	From    string
	BaseURL string // default https://api.resend.com
	Client  *http.Client
}

// ResendProvider es el provider principal.
type ResendProvider struct {
	cfg    ResendConfig
	client *http.Client
}

// NewResendProvider retorna nil si no hay API key.
func NewResendProvider(cfg ResendConfig) *ResendProvider {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.resend.com"
	}
	return &ResendProvider{cfg: cfg, client: newHTTPClient(cfg.Client)}
}

func (p *ResendProvider) Name() string { return "resend" }

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

func (p *ResendProvider) Send(ctx context.Context, m Message) error {
	return postJSON(ctx, p.client, p.Name(), p.cfg.BaseURL+"/emails", p.cfg.APIKey, resendPayload{
		From:    p.cfg.From,
		To:      []string{m.To},
		Subject: m.Subject,
		HTML:    m.HTML,
		Text:    m.Text,
	})
}

// ─── SendGrid ───

// SendGridConfig configura la API v3 de SendGrid (POST /v3/mail/send).
type SendGridConfig struct {
	APIKey  string
	From    string
	BaseURL string // default https://api.sendgrid.com
	Client  *http.Client
}

// SendGridProvider es el último provider antes del fallback.
type SendGridProvider struct {
	cfg    SendGridConfig
	client *http.Client
}

// NewSendGridProvider retorna nil si no hay API key.
func NewSendGridProvider(cfg SendGridConfig) *SendGridProvider {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	return &SendGridProvider{cfg: cfg, client: newHTTPClient(cfg.Client)}
}

func (p *SendGridProvider) Name() string { return "sendgrid" }

type sgAddress struct {
	Email string `json:"email"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPayload struct {
	Personalizations []struct {
		To []sgAddress `json:"to"`
	} `json:"personalizations"`
	From    sgAddress   `json:"from"`
	Subject string      `json:"subject"`
	Content []sgContent `json:"content"`
}

func (p *SendGridProvider) Send(ctx context.Context, m Message) error {
	var payload sgPayload
	payload.Personalizations = make([]struct {
		To []sgAddress `json:"to"`
	}, 1)
	payload.Personalizations[0].To = []sgAddress{{Email: m.To}}
	payload.From = sgAddress{Email: p.cfg.From}
	payload.Subject = m.Subject

	// text/plain tiene que ir antes que text/html
	if m.Text != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/plain", Value: m.Text})
	}
	if m.HTML != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/html", Value: m.HTML})
	}
	return postJSON(ctx, p.client, p.Name(), p.cfg.BaseURL+"/v3/mail/send", p.cfg.APIKey, payload)
}
