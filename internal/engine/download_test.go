package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribeq/internal/faults"
)

func TestFetch_RejectsBadURLs(t *testing.T) {
	d := NewYtdlpDownloader("", t.TempDir())

	for _, raw := range []string{"", "not a url", "ftp://example.com/a", "file:///etc/passwd", "https://"} {
		_, err := d.Fetch(context.Background(), raw, nil)
		if err == nil {
			t.Errorf("url %q: expected error", raw)
			continue
		}
		if got := faults.KindOf(err); got != faults.KindInvalidInput {
			t.Errorf("url %q: got kind %q, want invalid_input", raw, got)
		}
	}
}

func TestFetch_MissingBinary(t *testing.T) {
	d := NewYtdlpDownloader("", t.TempDir())
	d.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := d.Fetch(context.Background(), "https://example.com/v", nil)
	if got := faults.KindOf(err); got != faults.KindDependencyMissing {
		t.Errorf("got kind %q, want dependency_missing", got)
	}
}

func TestFetch_Success(t *testing.T) {
	staging := t.TempDir()
	runner := &fakeRunner{fn: func(name string, args []string, env []string) (commandResult, error) {
		// yt-dlp writes the output file named by the -o template.
		for i, a := range args {
			if a == "-o" && i+1 < len(args) {
				out := strings.Replace(args[i+1], ".%(ext)s", ".m4a", 1)
				if err := os.WriteFile(out, []byte("audio"), 0o644); err != nil {
					return commandResult{}, err
				}
			}
		}
		return commandResult{}, nil
	}}

	d := NewYtdlpDownloader("", staging)
	d.runner = runner
	d.lookPath = foundLookPath

	var fractions []float64
	path, err := d.Fetch(context.Background(), "https://example.com/v", func(f float64) {
		fractions = append(fractions, f)
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if filepath.Dir(path) != staging {
		t.Errorf("got path %q, want file under %q", path, staging)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("returned path does not exist: %v", err)
	}
	if len(fractions) < 2 || fractions[0] != 0 || fractions[len(fractions)-1] != 1 {
		t.Errorf("got progress %v, want 0 then 1", fractions)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("got %d tool invocations, want 1", len(runner.calls))
	}
	args := runner.calls[0].args
	joined := strings.Join(args, " ")
	for _, want := range []string{"--no-playlist", "-x", "--audio-format m4a", "https://example.com/v"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
}

func TestFetch_OutputMissingAfterSuccess(t *testing.T) {
	d := NewYtdlpDownloader("", t.TempDir())
	d.runner = &fakeRunner{}
	d.lookPath = foundLookPath

	_, err := d.Fetch(context.Background(), "https://example.com/v", nil)
	if err == nil {
		t.Fatal("expected error when output file is missing")
	}
	if got := faults.KindOf(err); got != faults.KindProcessingFailure {
		t.Errorf("got kind %q, want processing_failure", got)
	}
}

func TestFetch_CleansPartialsOnFailure(t *testing.T) {
	staging := t.TempDir()
	runner := &fakeRunner{fn: func(name string, args []string, env []string) (commandResult, error) {
		for i, a := range args {
			if a == "-o" && i+1 < len(args) {
				part := strings.Replace(args[i+1], ".%(ext)s", ".m4a.part", 1)
				os.WriteFile(part, []byte("partial"), 0o644)
			}
		}
		return commandResult{Stderr: "ERROR: timed out"}, errors.New("exit status 1")
	}}

	d := NewYtdlpDownloader("", staging)
	d.runner = runner
	d.lookPath = foundLookPath

	_, err := d.Fetch(context.Background(), "https://example.com/v", nil)
	if err == nil {
		t.Fatal("expected error")
	}

	leftovers, _ := filepath.Glob(filepath.Join(staging, "*"))
	if len(leftovers) != 0 {
		t.Errorf("partial files left behind: %v", leftovers)
	}
}

func TestClassifyDownloadError(t *testing.T) {
	cause := errors.New("exit status 1")
	tests := []struct {
		name   string
		stderr string
		want   faults.Kind
	}{
		{"age restricted", "ERROR: Sign in to confirm your age", faults.KindResourceUnavailable},
		{"private", "ERROR: Private video. Sign in if you've been granted access", faults.KindResourceUnavailable},
		{"geo blocked", "ERROR: This video is not available in your country", faults.KindResourceUnavailable},
		{"timeout", "ERROR: Unable to download webpage: The read operation timed out", faults.KindNetworkFailure},
		{"connection reset", "ERROR: [Errno 104] Connection reset by peer", faults.KindNetworkFailure},
		{"http 403", "ERROR: unable to download video data: HTTP Error 403: Forbidden", faults.KindRateLimited},
		{"http 429", "ERROR: HTTP Error 429: Too Many Requests", faults.KindRateLimited},
		{"unsupported url", "ERROR: Unsupported URL: https://example.com", faults.KindInvalidInput},
		{"removed", "ERROR: Video unavailable", faults.KindResourceUnavailable},
		{"unknown", "ERROR: something novel happened", faults.KindProcessingFailure},
		{"empty stderr", "", faults.KindProcessingFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyDownloadError(tt.stderr, cause)
			if got := faults.KindOf(err); got != tt.want {
				t.Errorf("got kind %q, want %q", got, tt.want)
			}
			if !errors.Is(err, cause) {
				t.Error("classified error lost its cause")
			}
		})
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("line one\nline two"); got != "line one" {
		t.Errorf("got %q", got)
	}
	if got := firstLine("  \n"); got != "no tool output" {
		t.Errorf("got %q", got)
	}
}
