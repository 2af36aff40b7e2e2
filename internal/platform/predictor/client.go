// Package predictor calls the external pregnancy risk scoring service.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Risk labels produced by the scoring service. Unknown is substituted when the
// service omits a label.
const (
	RiskLow     = "Low"
	RiskMedium  = "Medium"
	RiskHigh    = "High"
	RiskUnknown = "Unknown"
)

// Result is the scoring service reply. Raw keeps the full body so callers can
// pass through fields this struct does not name.
type Result struct {
	RiskLevel     string             `json:"risk_level,omitempty"`
	Confidence    float64            `json:"confidence,omitempty"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Raw           json.RawMessage    `json:"-"`
}

// Label returns the risk level, or Unknown when the service gave none.
func (r *Result) Label() string {
	if r == nil || r.RiskLevel == "" {
		return RiskUnknown
	}
	return r.RiskLevel
}

// MarshalJSON emits the raw reply so nothing the service returned is lost.
func (r Result) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	type plain Result
	return json.Marshal(plain(r))
}

// UpstreamError reports a failed call. StatusCode is zero when no HTTP
// response was received.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return "predictor unavailable: " + e.Body
	}
	return fmt.Sprintf("predictor responded %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Predict posts features as JSON and decodes the reply. Any failure is an
// *UpstreamError; the call is never retried.
func (c *Client) Predict(ctx context.Context, features interface{}) (*Result, error) {
	if c.url == "" {
		return nil, &UpstreamError{Body: "predictor URL not configured"}
	}

	body, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &UpstreamError{Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	result, err := ParseResult(respBody)
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: "invalid predictor response: " + err.Error()}
	}
	return result, nil
}

// ParseResult decodes a stored or received reply, keeping the raw bytes.
func ParseResult(raw []byte) (*Result, error) {
	result := &Result{Raw: append(json.RawMessage(nil), raw...)}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, err
	}
	return result, nil
}
