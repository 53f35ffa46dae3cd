package engine

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scribeq/internal/faults"

	"github.com/google/uuid"
)

// audioExtensions are the output extensions yt-dlp may produce,
// checked in preference order after a download.
var audioExtensions = []string{".m4a", ".mp3", ".opus", ".webm", ".wav", ".aac"}

// YtdlpDownloader fetches remote media via the yt-dlp binary.
type YtdlpDownloader struct {
	binaryPath string
	stagingDir string
	runner     commandRunner
	lookPath   func(string) (string, error)
}

// NewYtdlpDownloader creates a downloader that stages files under dir.
func NewYtdlpDownloader(binaryPath, stagingDir string) *YtdlpDownloader {
	if binaryPath == "" {
		binaryPath = "yt-dlp"
	}
	return &YtdlpDownloader{
		binaryPath: binaryPath,
		stagingDir: stagingDir,
		runner:     &execRunner{},
		lookPath:   exec.LookPath,
	}
}

// Fetch downloads the audio track of url to a local file and returns
// its path. The filename is UUID-based so concurrent jobs never
// collide. Failures come back classified: bad URL, missing tool,
// unavailable source, rate limiting, or network trouble.
func (d *YtdlpDownloader) Fetch(ctx context.Context, rawURL string, progress func(float64)) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", faults.Newf(faults.KindInvalidInput, "unsupported source URL: %s", rawURL)
	}

	if _, err := d.lookPath(d.binaryPath); err != nil {
		return "", faults.Wrap(faults.KindDependencyMissing,
			"yt-dlp not found; remote sources require yt-dlp on PATH", err)
	}

	if err := os.MkdirAll(d.stagingDir, 0o755); err != nil {
		return "", faults.Wrap(faults.KindProcessingFailure, "cannot create download staging directory", err)
	}

	base := uuid.New().String()
	template := filepath.Join(d.stagingDir, base+".%(ext)s")
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "m4a",
		"-o", template,
		rawURL,
	}

	if progress != nil {
		progress(0)
	}
	result, runErr := d.runner.Run(ctx, nil, d.binaryPath, args...)
	if runErr != nil {
		d.cleanupPartials(base)
		return "", classifyDownloadError(result.Stderr, runErr)
	}

	for _, ext := range audioExtensions {
		candidate := filepath.Join(d.stagingDir, base+ext)
		if _, err := os.Stat(candidate); err == nil {
			if progress != nil {
				progress(1)
			}
			return candidate, nil
		}
	}

	return "", faults.New(faults.KindProcessingFailure,
		"download appeared to succeed but output file not found")
}

// cleanupPartials removes partial files yt-dlp leaves after a failure.
func (d *YtdlpDownloader) cleanupPartials(base string) {
	matches, err := filepath.Glob(filepath.Join(d.stagingDir, base+".*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		os.Remove(m)
	}
}

// classifyDownloadError maps yt-dlp stderr output to a faults kind.
// Substring matching against provider error text is unavoidable here,
// but it stays isolated inside this one function so the rest of the
// system only ever sees tagged kinds.
func classifyDownloadError(stderr string, cause error) error {
	text := strings.ToLower(stderr)

	switch {
	case strings.Contains(text, "sign in to confirm your age"):
		return faults.Wrap(faults.KindResourceUnavailable,
			"age-restricted source: sign-in is required to verify age", cause)

	case strings.Contains(text, "private video"), strings.Contains(text, "is private"):
		return faults.Wrap(faults.KindResourceUnavailable,
			"private source: this media cannot be accessed", cause)

	case strings.Contains(text, "not available in your country"), strings.Contains(text, "geo"):
		return faults.Wrap(faults.KindResourceUnavailable,
			"geo-restricted source: this media is not available in your region", cause)

	case strings.Contains(text, "timed out"), strings.Contains(text, "timeout"):
		return faults.Wrap(faults.KindNetworkFailure,
			"network timeout while downloading; check your connection and retry", cause)

	case strings.Contains(text, "connection reset"), strings.Contains(text, "errno 104"):
		return faults.Wrap(faults.KindNetworkFailure,
			"connection was reset while downloading; retry later", cause)

	case strings.Contains(text, "403"), strings.Contains(text, "forbidden"), strings.Contains(text, "429"):
		return faults.Wrap(faults.KindRateLimited,
			"the source is rate limiting requests; retry later", cause)

	case strings.Contains(text, "network"), strings.Contains(text, "connection"), strings.Contains(text, "urlopen"):
		return faults.Wrap(faults.KindNetworkFailure,
			"network error while downloading; check your connection", cause)

	case strings.Contains(text, "unsupported url"), strings.Contains(text, "invalid url"):
		return faults.Wrap(faults.KindInvalidInput,
			"the source URL is not recognized by the downloader", cause)

	case strings.Contains(text, "unavailable"):
		return faults.Wrap(faults.KindResourceUnavailable,
			"the source is unavailable; it may have been deleted or made private", cause)

	default:
		return faults.Wrap(faults.KindProcessingFailure,
			fmt.Sprintf("download failed: %s", firstLine(stderr)), cause)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "no tool output"
	}
	return s
}
