package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
	"github.com/yungbote/archivebridge-backend/internal/pkg/httpx"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

/*
StageAdapter is the uniform facade over one downstream processing
service. One implementation exists per pipeline stage; all of them
share the submit/poll/abort client below and differ in request-body
construction and result evaluation.
*/
type StageAdapter interface {
	Stage() pipeline.Stage
	// Path is the submission endpoint on the service host.
	Path() string
	// AbortPath is the cancellation endpoint.
	AbortPath() string
	Client() *Client
	// BuildRequestBody assembles the submission body for one record.
	// Returns a MissingInputError when a predecessor artifact is absent.
	BuildRequestBody(cfg *pipeline.JobConfig, rec *pipeline.Record) (map[string]any, error)
	// Success reads the stage-specific outcome flag from a terminal
	// child report.
	Success(report map[string]any) bool
	// Eval writes stage products from the child report onto the record.
	Eval(rec *pipeline.Record, info *pipeline.RecordStageInfo, report map[string]any)
}

// ClientConfig holds everything an abort closure needs to rebuild a
// working client, captured by value.
type ClientConfig struct {
	Host           string
	PollInterval   time.Duration
	Timeout        time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// Client talks the shared downstream job protocol: POST submit
// returning a token, GET /report polling, DELETE abort.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(cfg ClientConfig, logg *logger.Logger) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	cfg.Host = strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		log:        logg,
	}
}

func (c *Client) Config() ClientConfig { return c.cfg }

// Submit posts the request body and returns the token assigned by the
// downstream service. Retries retryable failures up to MaxRetries.
func (c *Client) Submit(ctx context.Context, path string, body map[string]any) (string, error) {
	raw, status, err := c.doJSON(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", &HTTPError{Service: c.cfg.Host + path, Status: status, Body: string(raw)}
	}
	var resp struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decoding submission response: %w", err)
	}
	if resp.Value == "" {
		return "", fmt.Errorf("submission response carries no token")
	}
	return resp.Value, nil
}

/*
Poll fetches the downstream report until the service reports it as
final (status 200) or the configured timeout elapses. A 503 response
carries the intermediate report, which is handed to onUpdate after
every tick.
*/
func (c *Client) Poll(ctx context.Context, token string, onUpdate func(report map[string]any)) (map[string]any, error) {
	deadline := time.Now().Add(c.cfg.Timeout)
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		report, status, err := c.FetchReport(ctx, token)
		if err != nil {
			return nil, err
		}
		switch status {
		case http.StatusOK:
			if onUpdate != nil && report != nil {
				onUpdate(report)
			}
			return report, nil
		case http.StatusServiceUnavailable:
			if onUpdate != nil && report != nil {
				onUpdate(report)
			}
		case http.StatusNotFound:
			return nil, fmt.Errorf("downstream service does not know token '%s'", token)
		default:
			return nil, &HTTPError{Service: c.cfg.Host + "/report", Status: status}
		}
		if c.cfg.Timeout > 0 && time.Now().After(deadline) {
			return nil, fmt.Errorf("polling token '%s' exceeded timeout of %s", token, c.cfg.Timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

// FetchReport performs a single report lookup. The report body is
// returned for both final (200) and intermediate (503) responses.
func (c *Client) FetchReport(ctx context.Context, token string) (map[string]any, int, error) {
	raw, status, err := c.doJSON(ctx, http.MethodGet, "/report?token="+url.QueryEscape(token), nil)
	if err != nil {
		return nil, 0, err
	}
	var report map[string]any
	if len(raw) > 0 && (status == http.StatusOK || status == http.StatusServiceUnavailable) {
		if err := json.Unmarshal(raw, &report); err != nil {
			return nil, status, fmt.Errorf("decoding report: %w", err)
		}
	}
	return report, status, nil
}

// Abort requests downstream cancellation. Safe to call while another
// goroutine is polling the same token.
func (c *Client) Abort(ctx context.Context, path, token, origin, reason string) error {
	body := map[string]any{"origin": origin, "reason": reason}
	raw, status, err := c.doJSON(ctx, http.MethodDelete, path+"?token="+url.QueryEscape(token), body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &HTTPError{Service: c.cfg.Host + path, Status: status, Body: string(raw)}
	}
	return nil
}

/*
doJSON issues one request with the retry policy applied. Transport
errors retry only when transient; retryable statuses honor the
service's Retry-After header, capped at the poll timeout. Non-2xx
statuses are returned to the caller.
*/
func (c *Client) doJSON(ctx context.Context, method, path string, body map[string]any) ([]byte, int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, 0, err
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.Host+path, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, 0, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		var sleepFor time.Duration
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if !httpx.IsRetryableError(err) {
				return nil, 0, err
			}
			lastErr = err
			sleepFor = httpx.JitterSleep(c.cfg.RetryDelay)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, 0, readErr
			}
			if !httpx.IsRetryableHTTPStatus(resp.StatusCode) || method == http.MethodGet {
				return raw, resp.StatusCode, nil
			}
			lastErr = &HTTPError{Service: c.cfg.Host + path, Status: resp.StatusCode, Body: string(raw)}
			sleepFor = httpx.RetryAfterDuration(resp, httpx.JitterSleep(c.cfg.RetryDelay), c.cfg.Timeout)
		}

		if attempt < c.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(sleepFor):
			}
			continue
		}
	}

	if lastErr == nil {
		lastErr = errors.New("request failed")
	}
	return nil, 0, lastErr
}

// digMap walks nested JSON objects, returning nil when any key is
// absent or not an object.
func digMap(m map[string]any, keys ...string) map[string]any {
	cur := m
	for _, k := range keys {
		next, ok := cur[k].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func digString(m map[string]any, keys ...string) string {
	if len(keys) == 0 {
		return ""
	}
	parent := digMap(m, keys[:len(keys)-1]...)
	if parent == nil {
		return ""
	}
	s, _ := parent[keys[len(keys)-1]].(string)
	return s
}

func digBool(m map[string]any, keys ...string) bool {
	if len(keys) == 0 {
		return false
	}
	parent := digMap(m, keys[:len(keys)-1]...)
	if parent == nil {
		return false
	}
	b, _ := parent[keys[len(keys)-1]].(bool)
	return b
}

// dataSuccess is the default outcome flag shared by most stages.
func dataSuccess(report map[string]any) bool {
	return digBool(report, "data", "success")
}

// dataValid is the outcome flag of the validation stages.
func dataValid(report map[string]any) bool {
	return digBool(report, "data", "valid")
}
