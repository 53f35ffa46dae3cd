package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scribeq/pkg/api"
)

func TestSubmitJob_SendsRequestAndParsesResponse(t *testing.T) {
	var gotBody api.SubmitJobRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/jobs" {
			t.Errorf("got %s %s, want POST /jobs", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(api.SubmitJobResponse{JobID: "abc", Status: "queued"})
	}))
	defer server.Close()

	client := NewJobClient(server.URL)
	resp, err := client.SubmitJob(api.SubmitJobRequest{URL: "https://example.com/v"})
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}
	if resp.JobID != "abc" || resp.Status != "queued" {
		t.Errorf("got %+v", resp)
	}
	if gotBody.URL != "https://example.com/v" {
		t.Errorf("server received %+v", gotBody)
	}
}

func TestSubmitJob_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid model_size"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewJobClient(server.URL)
	_, err := client.SubmitJob(api.SubmitJobRequest{URL: "https://example.com/v"})

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("got %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", apiErr.StatusCode)
	}
}

func TestGetJob_VerboseFlag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("verbose") != "1" {
			t.Error("verbose flag not forwarded")
		}
		json.NewEncoder(w).Encode(api.JobResponse{ID: "abc", Status: "error", CreatedAt: time.Now()})
	}))
	defer server.Close()

	client := NewJobClient(server.URL)
	job, err := client.GetJob("abc", true)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != "error" {
		t.Errorf("got %+v", job)
	}
}

func TestListJobs_StatusQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "queued" {
			t.Errorf("got status query %q", r.URL.Query().Get("status"))
		}
		json.NewEncoder(w).Encode(api.ListJobsResponse{Jobs: []api.JobResponse{{ID: "a"}, {ID: "b"}}})
	}))
	defer server.Close()

	client := NewJobClient(server.URL)
	resp, err := client.ListJobs("queued")
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(resp.Jobs) != 2 {
		t.Errorf("got %d jobs, want 2", len(resp.Jobs))
	}
}

func TestGetTranscript_ReturnsRawText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/abc/transcript" {
			t.Errorf("got path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte("# Transcript\n"))
	}))
	defer server.Close()

	client := NewJobClient(server.URL)
	text, err := client.GetTranscript("abc")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if text != "# Transcript\n" {
		t.Errorf("got %q", text)
	}
}

func TestUploadJob_MultipartFields(t *testing.T) {
	media := filepath.Join(t.TempDir(), "a.mp3")
	if err := os.WriteFile(media, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file part missing: %v", err)
		} else {
			file.Close()
			if header.Filename != "a.mp3" {
				t.Errorf("got filename %q", header.Filename)
			}
		}
		if r.FormValue("model_size") != "small" || r.FormValue("diarize") != "true" {
			t.Errorf("form fields missing: model_size=%q diarize=%q", r.FormValue("model_size"), r.FormValue("diarize"))
		}
		if r.FormValue("max_speakers") != "3" {
			t.Errorf("got max_speakers %q", r.FormValue("max_speakers"))
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(api.SubmitJobResponse{JobID: "up1", Status: "queued"})
	}))
	defer server.Close()

	three := 3
	client := NewJobClient(server.URL)
	resp, err := client.UploadJob(media, api.JobOptions{ModelSize: "small", Diarize: true, MaxSpeakers: &three})
	if err != nil {
		t.Fatalf("UploadJob failed: %v", err)
	}
	if resp.JobID != "up1" {
		t.Errorf("got %+v", resp)
	}
}

func TestHealthAndDoctor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			json.NewEncoder(w).Encode(api.HealthResponse{Status: "healthy", Worker: "idle"})
		case "/doctor":
			json.NewEncoder(w).Encode(api.DoctorResponse{Tools: []api.ToolCheckResponse{{Name: "ffmpeg", Found: true}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewJobClient(server.URL)

	health, err := client.Health()
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Worker != "idle" {
		t.Errorf("got %+v", health)
	}

	doctor, err := client.Doctor()
	if err != nil {
		t.Fatalf("Doctor failed: %v", err)
	}
	if len(doctor.Tools) != 1 || !doctor.Tools[0].Found {
		t.Errorf("got %+v", doctor.Tools)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("a-very-long-input-location", 10); got != "a-very-..." {
		t.Errorf("got %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "0s"},
		{42 * time.Second, "42s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
