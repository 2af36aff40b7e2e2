package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPredict_Success(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"risk_level":"High","confidence":0.91,"probabilities":{"High":0.91,"Low":0.04,"Medium":0.05},"model":"v3"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	res, err := c.Predict(context.Background(), map[string]interface{}{"AGE": 28, "FEVER": "Yes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["FEVER"] != "Yes" {
		t.Errorf("expected features to be forwarded, got %v", got)
	}
	if res.Label() != RiskHigh || res.Confidence != 0.91 || res.Probabilities["Low"] != 0.04 {
		t.Errorf("unexpected result: %+v", res)
	}

	out, _ := json.Marshal(res)
	var echoed map[string]interface{}
	json.Unmarshal(out, &echoed)
	if echoed["model"] != "v3" {
		t.Errorf("expected raw reply to be preserved, got %s", out)
	}
}

func TestPredict_MissingLabelIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"confidence":0.5}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, time.Second).Predict(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Label() != RiskUnknown {
		t.Errorf("expected Unknown, got %s", res.Label())
	}
}

func TestPredict_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"AGE missing"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Predict(context.Background(), map[string]interface{}{})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusUnprocessableEntity || ue.Body != `{"detail":"AGE missing"}` {
		t.Errorf("unexpected upstream error: %+v", ue)
	}
}

func TestPredict_NetworkFailure(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1/predict", time.Second).Predict(context.Background(), map[string]interface{}{})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if ue.StatusCode != 0 {
		t.Errorf("expected status 0 for network failure, got %d", ue.StatusCode)
	}
}

func TestPredict_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 20*time.Millisecond).Predict(context.Background(), map[string]interface{}{})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UpstreamError on timeout, got %v", err)
	}
}

func TestPredict_Unconfigured(t *testing.T) {
	_, err := NewClient("", time.Second).Predict(context.Background(), nil)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
}

func TestParseResult_KeepsRaw(t *testing.T) {
	raw := []byte(`{"risk_level":"Medium","confidence":0.61,"model":"v2"}`)
	res, err := ParseResult(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Label() != RiskMedium || res.Confidence != 0.61 {
		t.Errorf("unexpected result %+v", res)
	}
	out, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != string(raw) {
		t.Errorf("expected raw body back, got %s", out)
	}
	if _, err := ParseResult([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid body")
	}
}
