// Package webhook delivers assessment results to downstream HTTP endpoints.
// Payloads are JSON and, when a secret is configured, signed with
// HMAC-SHA256 so receivers can authenticate the sender.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// maxResponseBody bounds how much of a receiver's reply is kept.
const maxResponseBody = 64 << 10

// Outcome is the result of one delivery attempt to one target.
type Outcome struct {
	Status int    `json:"status"`
	OK     bool   `json:"ok"`
	Body   string `json:"body"`
}

// StatusError is returned by PostJSON for non-2xx replies.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook %s responded %d", e.URL, e.StatusCode)
}

type Notifier struct {
	httpClient *http.Client
	secret     string
	logger     zerolog.Logger
}

type Option func(*Notifier)

func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.httpClient = c }
}

// WithSecret enables the X-Webhook-Signature header.
func WithSecret(secret string) Option {
	return func(n *Notifier) { n.secret = secret }
}

func WithLogger(l zerolog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

func NewNotifier(timeout time.Duration, opts ...Option) *Notifier {
	n := &Notifier{
		httpClient: &http.Client{Timeout: timeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SignPayload returns the hex HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload under secret.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ActiveTargets drops unset target URLs, keeping the configured order.
func ActiveTargets(targets []string) []string {
	return lo.Filter(targets, func(t string, _ int) bool { return t != "" })
}

// FanOut posts payload to every non-empty target concurrently and waits for
// all of them. The result holds one outcome per non-empty target in the order
// given; a failing target never affects the others.
func (n *Notifier) FanOut(ctx context.Context, targets []string, payload interface{}) []Outcome {
	active := ActiveTargets(targets)
	outcomes := make([]Outcome, len(active))
	if len(active) == 0 {
		return outcomes
	}

	body, err := json.Marshal(payload)
	if err != nil {
		for i := range outcomes {
			outcomes[i] = errorOutcome(fmt.Errorf("encode payload: %w", err))
		}
		return outcomes
	}

	var wg sync.WaitGroup
	for i, target := range active {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			outcomes[i] = n.deliver(ctx, target, body)
			if !outcomes[i].OK {
				n.logger.Warn().
					Str("target", target).
					Int("status", outcomes[i].Status).
					Msg("webhook delivery failed")
			}
		}(i, target)
	}
	wg.Wait()

	return outcomes
}

func errorOutcome(err error) Outcome {
	return Outcome{Status: http.StatusInternalServerError, OK: false, Body: "Error: " + err.Error()}
}

func (n *Notifier) deliver(ctx context.Context, target string, body []byte) Outcome {
	resp, err := n.post(ctx, target, body)
	if err != nil {
		return errorOutcome(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return Outcome{
		Status: resp.StatusCode,
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Body:   string(respBody),
	}
}

func (n *Notifier) post(ctx context.Context, target string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-ID", uuid.NewString())
	req.Header.Set("X-Webhook-Timestamp", time.Now().UTC().Format(time.RFC3339))
	if n.secret != "" {
		req.Header.Set("X-Webhook-Signature", "sha256="+SignPayload(body, n.secret))
	}

	return n.httpClient.Do(req)
}

// PostJSON delivers payload to a single target and returns the decoded reply.
// Non-2xx replies yield a *StatusError. A reply that is not JSON is returned
// as a JSON string.
func (n *Notifier) PostJSON(ctx context.Context, target string, payload interface{}) (json.RawMessage, error) {
	if target == "" {
		return nil, fmt.Errorf("webhook target not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	resp, err := n.post(ctx, target, body)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", target, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(respBody) {
		quoted, _ := json.Marshal(string(respBody))
		return quoted, nil
	}
	return respBody, nil
}
