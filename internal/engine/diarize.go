package engine

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"scribeq/internal/faults"
	"scribeq/internal/pipeline"
)

// HelperDiarizer shells out to the diarization helper, a separate
// program that wraps the pyannote speaker-diarization models and prints
// speaker turns as JSON on stdout. The models are gated behind a
// HuggingFace token, so a missing or rejected token surfaces as a
// classified error rather than a generic failure.
type HelperDiarizer struct {
	binaryPath string
	authToken  string
	runner     commandRunner
	lookPath   func(string) (string, error)
}

// NewHelperDiarizer creates a diarizer using the helper at binaryPath.
// authToken may be empty; the env variable and the HuggingFace token
// cache are consulted as fallbacks at run time.
func NewHelperDiarizer(binaryPath, authToken string) *HelperDiarizer {
	if binaryPath == "" {
		binaryPath = "scribeq-diarize"
	}
	return &HelperDiarizer{
		binaryPath: binaryPath,
		authToken:  authToken,
		runner:     &execRunner{},
		lookPath:   exec.LookPath,
	}
}

// helperOutput mirrors the helper's stdout JSON.
type helperOutput struct {
	Segments []pipeline.SpeakerTurn `json:"segments"`
}

// Diarize detects speaker turns in mediaPath. min/max speaker hints are
// forwarded to the helper when set.
func (d *HelperDiarizer) Diarize(ctx context.Context, mediaPath string, minSpeakers, maxSpeakers *int) ([]pipeline.SpeakerTurn, error) {
	if _, err := d.lookPath(d.binaryPath); err != nil {
		return nil, faults.Wrap(faults.KindDependencyMissing,
			"diarization helper not found; speaker detection requires it on PATH", err)
	}

	token := d.resolveAuthToken()
	if token == "" {
		return nil, faults.New(faults.KindDependencyMissing,
			"HuggingFace token required for speaker diarization; set hf_token in config or the HF_TOKEN environment variable")
	}

	args := []string{"--audio", mediaPath}
	if minSpeakers != nil {
		args = append(args, "--min-speakers", strconv.Itoa(*minSpeakers))
	}
	if maxSpeakers != nil {
		args = append(args, "--max-speakers", strconv.Itoa(*maxSpeakers))
	}

	result, runErr := d.runner.Run(ctx, []string{"HF_TOKEN=" + token}, d.binaryPath, args...)
	if runErr != nil {
		return nil, classifyDiarizeError(result.Stderr, runErr)
	}

	var out helperOutput
	if err := json.Unmarshal([]byte(result.Stdout), &out); err != nil {
		return nil, faults.Wrap(faults.KindProcessingFailure,
			"diarization helper produced unreadable output", err)
	}
	return out.Segments, nil
}

// resolveAuthToken resolves the HuggingFace token: configured value
// first, then HF_TOKEN, then the HuggingFace CLI token cache.
func (d *HelperDiarizer) resolveAuthToken() string {
	if d.authToken != "" {
		return d.authToken
	}
	if env := os.Getenv("HF_TOKEN"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(home, ".cache", "huggingface", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// classifyDiarizeError maps helper stderr to a faults kind. Like the
// downloader, the substring heuristics live only here.
func classifyDiarizeError(stderr string, cause error) error {
	text := strings.ToLower(stderr)

	switch {
	case strings.Contains(text, "401"), strings.Contains(text, "unauthorized"),
		strings.Contains(text, "invalid token"), strings.Contains(text, "authentication"):
		return faults.Wrap(faults.KindResourceUnavailable,
			"HuggingFace rejected the diarization token; check hf_token", cause)

	case strings.Contains(text, "timed out"), strings.Contains(text, "timeout"),
		strings.Contains(text, "connection"), strings.Contains(text, "network"):
		return faults.Wrap(faults.KindNetworkFailure,
			"network error while fetching diarization models", cause)

	case strings.Contains(text, "429"), strings.Contains(text, "rate limit"):
		return faults.Wrap(faults.KindRateLimited,
			"HuggingFace is rate limiting model downloads; retry later", cause)

	default:
		return faults.Wrap(faults.KindProcessingFailure,
			"speaker diarization failed: "+firstLine(stderr), cause)
	}
}
