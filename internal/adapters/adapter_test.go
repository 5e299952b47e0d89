package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/archivebridge-backend/internal/data/repos/testutil"
)

func testClient(t *testing.T, host string) *Client {
	t.Helper()
	return NewClient(ClientConfig{
		Host:           host,
		PollInterval:   5 * time.Millisecond,
		Timeout:        2 * time.Second,
		RequestTimeout: time.Second,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
	}, testutil.Logger(t))
}

func TestClientSubmitReturnsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/build" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("body decode: %v", err)
		}
		if body["token"] != "tok-1" {
			t.Errorf("expected submitted token, got %v", body["token"])
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"value": "tok-1"})
	}))
	defer srv.Close()

	token, err := testClient(t, srv.URL).Submit(context.Background(), "/build", map[string]any{"token": "tok-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "tok-1" {
		t.Fatalf("expected tok-1, got %q", token)
	}
}

func TestClientSubmitRejectsNon201(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := testClient(t, srv.URL).Submit(context.Background(), "/build", map[string]any{}); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestClientPollIntermediateThenFinal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/report" || r.URL.Query().Get("token") != "tok-2" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"progress": map[string]any{"status": "running"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"progress": map[string]any{"status": "completed"},
			"data":     map[string]any{"success": true},
		})
	}))
	defer srv.Close()

	var updates int
	report, err := testClient(t, srv.URL).Poll(context.Background(), "tok-2", func(map[string]any) {
		updates++
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dataSuccess(report) {
		t.Fatalf("expected successful final report, got %v", report)
	}
	if updates != 3 {
		t.Fatalf("expected 3 updates (2 intermediate + final), got %d", updates)
	}
}

func TestClientPollUnknownToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Poll(context.Background(), "nope", nil)
	if err == nil || !strings.Contains(err.Error(), "does not know token") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientPollTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		Host:           srv.URL,
		PollInterval:   time.Millisecond,
		Timeout:        20 * time.Millisecond,
		RequestTimeout: time.Second,
	}, testutil.Logger(t))

	_, err := client.Poll(context.Background(), "tok-3", nil)
	if err == nil || !strings.Contains(err.Error(), "exceeded timeout") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientAbortSendsOriginAndReason(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/import" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("token") != "tok-4" {
			t.Errorf("token missing from query: %s", r.URL.String())
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testClient(t, srv.URL).Abort(context.Background(), "/import", "tok-4", "Job Processor", "user abort")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["origin"] != "Job Processor" || got["reason"] != "user abort" {
		t.Fatalf("unexpected abort body: %v", got)
	}
}

func TestClientSubmitRetriesRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"value": "tok-5"})
	}))
	defer srv.Close()

	token, err := testClient(t, srv.URL).Submit(context.Background(), "/x", map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "tok-5" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry then success, calls=%d token=%q", calls, token)
	}
}

func TestClientSubmitHonorsRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"value": "tok-6"})
	}))
	defer srv.Close()

	start := time.Now()
	token, err := testClient(t, srv.URL).Submit(context.Background(), "/x", map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "tok-6" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry then success, calls=%d token=%q", calls, token)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("Retry-After not honored, retried after %s", elapsed)
	}
}

func TestClientSubmitFailsFastOnRefusedConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	host := srv.URL
	srv.Close()

	client := NewClient(ClientConfig{
		Host:           host,
		PollInterval:   time.Millisecond,
		Timeout:        2 * time.Second,
		RequestTimeout: time.Second,
		MaxRetries:     3,
		RetryDelay:     300 * time.Millisecond,
	}, testutil.Logger(t))

	start := time.Now()
	_, err := client.Submit(context.Background(), "/x", map[string]any{})
	if err == nil {
		t.Fatal("expected error for refused connection")
	}
	// A refused connection is not transient; with retries it would sit
	// in the backoff sleeps for at least 900ms.
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("refused connection should not be retried, took %s", elapsed)
	}
}
