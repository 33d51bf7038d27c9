package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const clientTimeout = 10 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: clientTimeout}
}

// apiError is a non-2xx answer from a provider API. Bodies are truncated so
// a provider error page cannot flood the logs.
type apiError struct {
	provider string
	status   int
	body     string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s api: status %d: %s", e.provider, e.status, e.body)
}

func newAPIError(provider string, status int, body []byte) error {
	const max = 512
	s := string(body)
	if len(s) > max {
		s = s[:max]
	}
	return &apiError{provider: provider, status: status, body: s}
}

// doJSON sends a JSON (or pre-encoded) request and decodes a JSON response
// into out. headers are applied verbatim after Content-Type.
func doJSON(ctx context.Context, client *http.Client, provider, method, rawURL string, headers map[string]string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s api: %w", provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s api: read body: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(provider, resp.StatusCode, b)
	}
	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			return fmt.Errorf("%s api: decode: %w", provider, err)
		}
	}
	return nil
}

// doForm posts application/x-www-form-urlencoded and decodes a JSON response.
func doForm(ctx context.Context, client *http.Client, provider, rawURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s api: %w", provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s api: read body: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(provider, resp.StatusCode, b)
	}
	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			return fmt.Errorf("%s api: decode: %w", provider, err)
		}
	}
	return nil
}

func marshalBody(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
