package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

type client struct {
	BaseURL   string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
	Out       io.Writer
}

func (c *client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	}
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}

// print muestra la respuesta y devuelve error si el status no es 2xx, para
// que el exit code refleje el resultado.
func (c *client) print(status int, body []byte) error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	var v map[string]any
	if err := json.Unmarshal(body, &v); err != nil {
		fmt.Fprintf(out, "status=%d %s\n", status, strings.TrimSpace(string(body)))
	} else if c.OutFormat == "json" {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Fprintln(out, string(p))
	} else {
		fmt.Fprintln(out, summarize(status, v))
	}
	if status/100 != 2 {
		return fmt.Errorf("request failed with status %d", status)
	}
	return nil
}

// summarize arma una línea legible a partir de las respuestas conocidas.
func summarize(status int, v map[string]any) string {
	var parts []string
	for _, k := range []string{"success", "valid", "verified", "email", "message", "error", "code", "attempts_remaining", "retry_after_seconds", "expires_at", "ticket"} {
		if val, ok := v[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", k, val))
		}
	}
	return fmt.Sprintf("[%d] %s", status, strings.Join(parts, " "))
}
