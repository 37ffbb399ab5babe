// Package transport provides queue transports: an HTTP client for a remote
// results service, a JSON-RPC stdio helper process, and a switchable locator.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ormasoftchile/labguide/pkg/queue"
	"github.com/pkg/errors"
)

// HTTP posts each request as JSON to <BaseURL>/<method>.
type HTTP struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewHTTP creates an HTTP transport with a 30s client timeout.
func NewHTTP(baseURL, token string) *HTTP {
	return &HTTP{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// Send implements queue.Transport.
func (h *HTTP) Send(ctx context.Context, req *queue.Request) (*queue.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}
	uri := h.BaseURL + "/" + strings.TrimLeft(req.Method, "/")

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("X-Request-ID", req.ID)
	if h.Token != "" {
		hreq.Header.Set("Authorization", "Bearer "+h.Token)
	}

	resp, err := h.HTTPClient.Do(hreq)
	if err != nil {
		return nil, errors.Wrapf(err, "POST %s", uri)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Status: resp.StatusCode, Body: truncate(data, 200)}
	}

	out := &queue.Response{RequestID: req.ID, Status: resp.StatusCode}
	if len(bytes.TrimSpace(data)) > 0 {
		if !json.Valid(data) {
			return nil, errors.Errorf("response is not JSON: %s", truncate(data, 200))
		}
		out.Body = data
	}
	return out, nil
}

func truncate(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
