package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/archivebridge-backend/internal/data/repos/testutil"
	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/archivebridge-backend/internal/pkg/errors"
	"github.com/yungbote/archivebridge-backend/internal/services"
)

type stubJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*store.Job
}

func newStubJobRepo() *stubJobRepo {
	return &stubJobRepo{jobs: map[string]*store.Job{}}
}

func (s *stubJobRepo) Create(_ dbctx.Context, job *store.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Token] = job
	return nil
}

func (s *stubJobRepo) Get(_ dbctx.Context, token string) (*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[token]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *stubJobRepo) Exists(_ dbctx.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[token]
	return ok, nil
}

func (s *stubJobRepo) ClaimNextQueued(_ dbctx.Context) (*store.Job, error) {
	return nil, nil
}

func (s *stubJobRepo) UpdateFields(_ dbctx.Context, token string, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[token]; ok {
		if status, ok := updates["status"].(string); ok {
			job.Status = status
		}
		if raw, ok := updates["report"].(datatypes.JSON); ok {
			job.Report = raw
		}
	}
	return nil
}

func (s *stubJobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, token string, _ []string, updates map[string]interface{}) (bool, error) {
	return true, s.UpdateFields(dbc, token, updates)
}

func (s *stubJobRepo) ExtendArtifactsExpiry(_ dbctx.Context, _ []string, _ *time.Time, _ time.Time) error {
	return nil
}

func testRouter(t *testing.T) (*gin.Engine, *stubJobRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := newStubJobRepo()
	svc := services.NewJobService(repo, "http://processor.local", testutil.Logger(t))
	h := NewProcessHandler(svc)

	r := gin.New()
	r.POST("/process", h.Submit)
	r.DELETE("/process", h.Abort)
	r.GET("/report", h.Report)
	return r, repo
}

func submit(t *testing.T, r *gin.Engine, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitReturnsTokenEnvelope(t *testing.T) {
	r, repo := testRouter(t)
	w := submit(t, r, map[string]any{
		"process": map[string]any{"id": "jc-1"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if _, err := uuid.Parse(resp.Value); err != nil {
		t.Fatalf("value is not a job token: %q", resp.Value)
	}
	if _, ok := repo.jobs[resp.Value]; !ok {
		t.Fatal("job row not created")
	}
}

func TestSubmitValidation(t *testing.T) {
	r, _ := testRouter(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing process id", map[string]any{"process": map[string]any{}}},
		{"malformed token", map[string]any{
			"process": map[string]any{"id": "jc-1"},
			"token":   "not-a-uuid",
		}},
		{"datetime without offset", map[string]any{
			"process": map[string]any{"id": "jc-1"},
			"context": map[string]any{"datetimeTriggered": "2026-08-24T10:00:00"},
		}},
		{"unknown trigger type", map[string]any{
			"process": map[string]any{"id": "jc-1"},
			"context": map[string]any{"triggerType": "cron"},
		}},
		{"relative callback url", map[string]any{
			"process":     map[string]any{"id": "jc-1"},
			"callbackUrl": "/done",
		}},
	}
	for _, tc := range cases {
		if w := submit(t, r, tc.body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", tc.name, w.Code, w.Body.String())
		}
	}
}

func TestSubmitAcceptsDatetimeWithOffset(t *testing.T) {
	r, _ := testRouter(t)
	for _, dt := range []string{"2026-08-24T10:00:00Z", "2026-08-24T10:00:00.123+02:00"} {
		w := submit(t, r, map[string]any{
			"process": map[string]any{"id": "jc-1"},
			"context": map[string]any{"datetimeTriggered": dt},
		})
		if w.Code != http.StatusCreated {
			t.Errorf("datetime %q rejected: %d %s", dt, w.Code, w.Body.String())
		}
	}
}

func TestReportStatusCodes(t *testing.T) {
	r, repo := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing token: expected 400, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/report?token="+uuid.NewString(), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown token: expected 404, got %d", w.Code)
	}

	sw := submit(t, r, map[string]any{"process": map[string]any{"id": "jc-1"}})
	var resp struct {
		Value string `json:"value"`
	}
	_ = json.Unmarshal(sw.Body.Bytes(), &resp)

	req = httptest.NewRequest(http.MethodGet, "/report?token="+resp.Value, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("queued job: expected 503, got %d", w.Code)
	}
	var report map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("intermediate response is not a report: %v", err)
	}
	if report["token"] != resp.Value {
		t.Fatalf("report identity wrong: %v", report["token"])
	}

	repo.mu.Lock()
	repo.jobs[resp.Value].Status = store.JobCompleted
	repo.mu.Unlock()

	req = httptest.NewRequest(http.MethodGet, "/report?token="+resp.Value, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("final job: expected 200, got %d", w.Code)
	}
}

func TestAbortEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	raw, _ := json.Marshal(map[string]any{"origin": "tester", "reason": "cleanup"})
	req := httptest.NewRequest(http.MethodDelete, "/process?token="+uuid.NewString(), bytes.NewReader(raw))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown token: expected 404, got %d", w.Code)
	}

	sw := submit(t, r, map[string]any{"process": map[string]any{"id": "jc-1"}})
	var resp struct {
		Value string `json:"value"`
	}
	_ = json.Unmarshal(sw.Body.Bytes(), &resp)

	raw, _ = json.Marshal(map[string]any{"origin": "tester", "reason": "cleanup"})
	req = httptest.NewRequest(http.MethodDelete, "/process?token="+resp.Value, bytes.NewReader(raw))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), resp.Value) {
		t.Fatalf("confirmation does not name the job: %s", w.Body.String())
	}
}
