// Package transport normalizes JSON-over-HTTP calls against the
// backend into data or a typed error.
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

	apperrors "maintkeeper/internal/errors"
	"maintkeeper/internal/logging"
)

// CredentialProvider supplies the current authorization credential.
// It returns "" when nobody is logged in.
type CredentialProvider func() string

// Transport performs request/response calls against one base URL.
type Transport struct {
	baseURL     string
	client      *http.Client
	credentials CredentialProvider
}

// New creates a Transport for baseURL. credentials may be nil for
// unauthenticated use.
func New(baseURL string, credentials CredentialProvider) *Transport {
	return &Transport{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: 30 * time.Second},
		credentials: credentials,
	}
}

// Get fetches the resource at target.
func (t *Transport) Get(ctx context.Context, target string) (json.RawMessage, error) {
	return t.do(ctx, http.MethodGet, target, nil)
}

// Post sends payload to target.
func (t *Transport) Post(ctx context.Context, target string, payload json.RawMessage) (json.RawMessage, error) {
	return t.do(ctx, http.MethodPost, target, payload)
}

// Delete removes the resource at target.
func (t *Transport) Delete(ctx context.Context, target string) (json.RawMessage, error) {
	return t.do(ctx, http.MethodDelete, target, nil)
}

// Ping probes backend liveness. Any transport error, non-2xx status or
// context timeout resolves to false; it never fails with an error, the
// connectivity monitor turns the outcome into state.
func (t *Transport) Ping(ctx context.Context) bool {
	_, err := t.do(ctx, http.MethodGet, "server/ping", nil)
	return err == nil
}

// serverError is the wire shape of a backend failure report.
type serverError struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func (t *Transport) do(ctx context.Context, method, target string, payload json.RawMessage) (json.RawMessage, error) {
	url := t.baseURL + "/" + strings.TrimLeft(target, "/")

	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.credentials != nil {
		if token := t.credentials(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, fmt.Sprintf("%s %s failed", method, target), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "failed to read response", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return json.RawMessage(data), nil
	}

	return nil, normalizeHTTPError(method, target, resp.StatusCode, data)
}

// normalizeHTTPError turns a non-2xx response into the typed taxonomy:
// a 422 with per-field details is a business conflict the server
// reported deliberately and must never be retried; everything else is
// a transport failure.
func normalizeHTTPError(method, target string, status int, body []byte) *apperrors.AppError {
	var wire serverError
	if err := json.Unmarshal(body, &wire); err == nil && (wire.Message != "" || len(wire.Errors) > 0) {
		message := wire.Message
		if message == "" {
			message = http.StatusText(status)
		}

		if status == http.StatusUnprocessableEntity {
			return apperrors.New(apperrors.ErrBusinessConflict, message).WithFields(wire.Errors)
		}
		return apperrors.New(apperrors.ErrTransport, message).WithFields(wire.Errors)
	}

	logging.Debug("Unstructured error response", map[string]interface{}{
		"method": method,
		"target": target,
		"status": status,
	})
	return apperrors.New(apperrors.ErrTransport,
		fmt.Sprintf("%s %s returned %d %s", method, target, status, http.StatusText(status)))
}

// Unwrap extracts the named field from a response envelope such as
// {"equipment": {...}}. Callers unwrap before normalizing.
func Unwrap(raw json.RawMessage, field string) (json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "malformed response envelope", err)
	}

	inner, ok := envelope[field]
	if !ok {
		return nil, apperrors.New(apperrors.ErrTransport,
			fmt.Sprintf("response envelope missing field %q", field))
	}
	return inner, nil
}
