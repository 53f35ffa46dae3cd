package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"scribeq/internal/engine"
	"scribeq/internal/store"
	"scribeq/internal/worker"
	"scribeq/pkg/api"
)

// mockStore implements Store in memory with fault injection.
type mockStore struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*store.Job
	order     []uuid.UUID
	createErr error
	pingErr   error
}

func newMockStore() *mockStore {
	return &mockStore{jobs: map[uuid.UUID]*store.Job{}}
}

func (m *mockStore) Create(ctx context.Context, job *store.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *job
	m.jobs[job.ID] = &cp
	m.order = append(m.order, job.ID)
	return nil
}

func (m *mockStore) Get(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *mockStore) Update(ctx context.Context, job *store.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockStore) List(ctx context.Context, status store.JobStatus) ([]*store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Job
	for i := len(m.order) - 1; i >= 0; i-- {
		job := m.jobs[m.order[i]]
		if status == "" || job.Status == status {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) ClaimNextQueued(ctx context.Context) (*store.Job, error) { return nil, nil }

func (m *mockStore) RecoverOrphaned(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockStore) CountByStatus(ctx context.Context, status store.JobStatus) (int64, error) {
	jobs, _ := m.List(ctx, status)
	return int64(len(jobs)), nil
}

func (m *mockStore) Ping(ctx context.Context) error { return m.pingErr }

type mockWorker struct {
	mu       sync.Mutex
	notified int
	state    worker.State
}

func (m *mockWorker) Notify() {
	m.mu.Lock()
	m.notified++
	m.mu.Unlock()
}

func (m *mockWorker) Status() worker.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == "" {
		return worker.StateIdle
	}
	return m.state
}

func (m *mockWorker) notifyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notified
}

func newTestHandlers(t *testing.T, s *mockStore, w *mockWorker) *Handlers {
	t.Helper()
	return New(s, w, Options{
		DefaultModelSize: "base",
		UploadsDir:       t.TempDir(),
		MaxUploadBytes:   1 << 20,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func submitBody(t *testing.T, req api.SubmitJobRequest) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(data)
}

func tempMediaFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.mp3")
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSubmitJob_LocalPath(t *testing.T) {
	s := newMockStore()
	w := &mockWorker{}
	h := newTestHandlers(t, s, w)

	media := tempMediaFile(t)
	req := httptest.NewRequest(http.MethodPost, "/jobs",
		submitBody(t, api.SubmitJobRequest{Path: media, Options: api.JobOptions{Diarize: true}}))
	rr := httptest.NewRecorder()

	h.SubmitJob(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("got status %d, want %d: %s", rr.Code, http.StatusAccepted, rr.Body.String())
	}

	var resp api.SubmitJobResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != "queued" {
		t.Errorf("got status %q, want queued", resp.Status)
	}

	id, err := uuid.Parse(resp.JobID)
	if err != nil {
		t.Fatalf("invalid job id in response: %v", err)
	}
	job, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if job.Input.Kind != store.InputKindPath || job.Input.Location != media {
		t.Errorf("got input %+v", job.Input)
	}
	if job.Options.ModelSize != "base" {
		t.Errorf("default model size not applied: %q", job.Options.ModelSize)
	}
	if !job.Options.Diarize {
		t.Error("diarize option lost")
	}
	if w.notifyCount() != 1 {
		t.Errorf("worker notified %d times, want 1", w.notifyCount())
	}
}

func TestSubmitJob_URL(t *testing.T) {
	s := newMockStore()
	h := newTestHandlers(t, s, &mockWorker{})

	req := httptest.NewRequest(http.MethodPost, "/jobs",
		submitBody(t, api.SubmitJobRequest{URL: "https://example.com/v"}))
	rr := httptest.NewRecorder()

	h.SubmitJob(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("got status %d: %s", rr.Code, rr.Body.String())
	}

	jobs, _ := s.List(context.Background(), "")
	if len(jobs) != 1 || jobs[0].Input.Kind != store.InputKindURL {
		t.Errorf("url job not persisted correctly: %+v", jobs)
	}
}

func TestSubmitJob_Validation(t *testing.T) {
	media := tempMediaFile(t)
	two := 2
	one := 1

	tests := []struct {
		name string
		req  api.SubmitJobRequest
	}{
		{"neither path nor url", api.SubmitJobRequest{}},
		{"both path and url", api.SubmitJobRequest{Path: media, URL: "https://example.com/v"}},
		{"missing file", api.SubmitJobRequest{Path: "/no/such/file.mp3"}},
		{"bad model size", api.SubmitJobRequest{Path: media, Options: api.JobOptions{ModelSize: "enormous"}}},
		{"min above max", api.SubmitJobRequest{Path: media, Options: api.JobOptions{Diarize: true, MinSpeakers: &two, MaxSpeakers: &one}}},
		{"bounds without diarize", api.SubmitJobRequest{Path: media, Options: api.JobOptions{MinSpeakers: &two}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMockStore()
			w := &mockWorker{}
			h := newTestHandlers(t, s, w)

			req := httptest.NewRequest(http.MethodPost, "/jobs", submitBody(t, tt.req))
			rr := httptest.NewRecorder()
			h.SubmitJob(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("got status %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if w.notifyCount() != 0 {
				t.Error("worker notified for rejected submission")
			}
		})
	}
}

func TestSubmitJob_StoreFailure(t *testing.T) {
	s := newMockStore()
	s.createErr = errors.New("disk full")
	h := newTestHandlers(t, s, &mockWorker{})

	req := httptest.NewRequest(http.MethodPost, "/jobs",
		submitBody(t, api.SubmitJobRequest{URL: "https://example.com/v"}))
	rr := httptest.NewRecorder()
	h.SubmitJob(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestGetJob(t *testing.T) {
	s := newMockStore()
	h := newTestHandlers(t, s, &mockWorker{})

	now := time.Now().UTC()
	job := &store.Job{
		ID:          uuid.New(),
		Status:      store.JobStatusError,
		Input:       store.InputRef{Kind: store.InputKindURL, Location: "https://example.com/v"},
		Options:     store.JobOptions{ModelSize: "base"},
		CreatedAt:   now,
		CompletedAt: &now,
		Error: &store.JobError{
			Kind:    "network_failure",
			Message: "download timed out",
			Detail:  "network_failure: download timed out: dial tcp: i/o timeout",
		},
	}
	s.Create(context.Background(), job)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String(), nil)
	req.SetPathValue("id", job.ID.String())
	rr := httptest.NewRecorder()
	h.GetJob(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rr.Code, rr.Body.String())
	}

	var resp api.JobResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Error == nil {
		t.Fatal("error missing from response")
	}
	if resp.Error.Detail != "" {
		t.Error("detail leaked without verbose flag")
	}

	// Verbose includes the detail chain.
	req = httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String()+"?verbose=1", nil)
	req.SetPathValue("id", job.ID.String())
	rr = httptest.NewRecorder()
	h.GetJob(rr, req)

	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Error == nil || resp.Error.Detail == "" {
		t.Error("verbose detail missing")
	}
}

func TestGetJob_NotFound(t *testing.T) {
	h := newTestHandlers(t, newMockStore(), &mockWorker{})

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/jobs/"+id, nil)
	req.SetPathValue("id", id)
	rr := httptest.NewRecorder()
	h.GetJob(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetJob_InvalidID(t *testing.T) {
	h := newTestHandlers(t, newMockStore(), &mockWorker{})

	req := httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rr := httptest.NewRecorder()
	h.GetJob(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestListJobs_StatusFilter(t *testing.T) {
	s := newMockStore()
	h := newTestHandlers(t, s, &mockWorker{})

	queued := &store.Job{ID: uuid.New(), Status: store.JobStatusQueued, Options: store.JobOptions{ModelSize: "base"}, CreatedAt: time.Now().UTC()}
	done := &store.Job{ID: uuid.New(), Status: store.JobStatusCompleted, Options: store.JobOptions{ModelSize: "base"}, CreatedAt: time.Now().UTC()}
	s.Create(context.Background(), queued)
	s.Create(context.Background(), done)

	req := httptest.NewRequest(http.MethodGet, "/jobs?status=queued", nil)
	rr := httptest.NewRecorder()
	h.ListJobs(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rr.Code, rr.Body.String())
	}
	var resp api.ListJobsResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if len(resp.Jobs) != 1 || resp.Jobs[0].ID != queued.ID.String() {
		t.Errorf("got %+v, want only the queued job", resp.Jobs)
	}

	// Invalid filter is rejected.
	req = httptest.NewRequest(http.MethodGet, "/jobs?status=bogus", nil)
	rr = httptest.NewRecorder()
	h.ListJobs(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetTranscript(t *testing.T) {
	s := newMockStore()
	h := newTestHandlers(t, s, &mockWorker{})

	job := &store.Job{
		ID:        uuid.New(),
		Status:    store.JobStatusCompleted,
		Options:   store.JobOptions{ModelSize: "base"},
		CreatedAt: time.Now().UTC(),
		Result:    &store.JobResult{Text: "# Transcript\n\nHello.\n"},
	}
	s.Create(context.Background(), job)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String()+"/transcript", nil)
	req.SetPathValue("id", job.ID.String())
	rr := httptest.NewRecorder()
	h.GetTranscript(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != "# Transcript\n\nHello.\n" {
		t.Errorf("got body %q", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("got content type %q", ct)
	}
}

func TestGetTranscript_NotTerminal(t *testing.T) {
	s := newMockStore()
	h := newTestHandlers(t, s, &mockWorker{})

	job := &store.Job{ID: uuid.New(), Status: store.JobStatusQueued, Options: store.JobOptions{ModelSize: "base"}, CreatedAt: time.Now().UTC()}
	s.Create(context.Background(), job)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String()+"/transcript", nil)
	req.SetPathValue("id", job.ID.String())
	rr := httptest.NewRecorder()
	h.GetTranscript(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusConflict)
	}
}

func uploadRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/jobs/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadJob(t *testing.T) {
	s := newMockStore()
	w := &mockWorker{}
	h := newTestHandlers(t, s, w)

	req := uploadRequest(t, "meeting.mp3", []byte("audio-bytes"), map[string]string{
		"model_size":   "small",
		"diarize":      "true",
		"min_speakers": "2",
	})
	rr := httptest.NewRecorder()
	h.UploadJob(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("got status %d: %s", rr.Code, rr.Body.String())
	}

	jobs, _ := s.List(context.Background(), "")
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	job := jobs[0]
	if job.Input.Kind != store.InputKindUpload {
		t.Errorf("got input kind %q, want upload", job.Input.Kind)
	}
	if job.Options.ModelSize != "small" || !job.Options.Diarize {
		t.Errorf("form options lost: %+v", job.Options)
	}
	if job.Options.MinSpeakers == nil || *job.Options.MinSpeakers != 2 {
		t.Errorf("min_speakers lost: %v", job.Options.MinSpeakers)
	}

	data, err := os.ReadFile(job.Input.Location)
	if err != nil {
		t.Fatalf("staged file unreadable: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Errorf("staged content mismatch: %q", data)
	}
	if w.notifyCount() != 1 {
		t.Errorf("worker notified %d times, want 1", w.notifyCount())
	}
}

func TestUploadJob_RejectsUnsupportedExtension(t *testing.T) {
	h := newTestHandlers(t, newMockStore(), &mockWorker{})

	req := uploadRequest(t, "notes.pdf", []byte("%PDF"), nil)
	rr := httptest.NewRecorder()
	h.UploadJob(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUploadJob_MissingFile(t *testing.T) {
	h := newTestHandlers(t, newMockStore(), &mockWorker{})

	req := httptest.NewRequest(http.MethodPost, "/jobs/upload", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rr := httptest.NewRecorder()
	h.UploadJob(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHandlers(t, newMockStore(), &mockWorker{state: worker.StateRunning})

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d", rr.Code)
	}
	var resp api.HealthResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Status != "healthy" || resp.Worker != "running" {
		t.Errorf("got %+v", resp)
	}
}

func TestReadyz_DatabaseDown(t *testing.T) {
	s := newMockStore()
	s.pingErr = errors.New("connection refused")
	h := newTestHandlers(t, s, &mockWorker{})

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestDoctor(t *testing.T) {
	s := newMockStore()
	h := New(s, &mockWorker{}, Options{
		DefaultModelSize: "base",
		UploadsDir:       t.TempDir(),
		CheckTools: func() []engine.ToolCheck {
			return []engine.ToolCheck{
				{Name: "ffmpeg", Path: "/usr/bin/ffmpeg", Found: true},
				{Name: "yt-dlp", Found: false, Optional: true},
			}
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rr := httptest.NewRecorder()
	h.Doctor(rr, httptest.NewRequest(http.MethodGet, "/doctor", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d", rr.Code)
	}
	var resp api.DoctorResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if len(resp.Tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(resp.Tools))
	}
	if !resp.Tools[0].Found || resp.Tools[1].Found {
		t.Errorf("tool flags mismatched: %+v", resp.Tools)
	}
	if !resp.Tools[1].Optional {
		t.Error("optional flag lost")
	}
}

func TestDoctor_NoHook(t *testing.T) {
	h := newTestHandlers(t, newMockStore(), &mockWorker{})

	rr := httptest.NewRecorder()
	h.Doctor(rr, httptest.NewRequest(http.MethodGet, "/doctor", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d", rr.Code)
	}
	var resp api.DoctorResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if len(resp.Tools) != 0 {
		t.Errorf("got %+v, want empty tool list", resp.Tools)
	}
}
