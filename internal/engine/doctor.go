package engine

import (
	"os/exec"
)

// ToolCheck is the availability result for one external tool.
type ToolCheck struct {
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	Found    bool   `json:"found"`
	Optional bool   `json:"optional"`
}

// CheckTools probes the external binaries the pipeline shells out to.
// ffmpeg and the whisper binary are hard requirements for every job;
// yt-dlp and the diarization helper are only needed for remote sources
// and speaker detection, so they are reported as optional.
func CheckTools(ffmpegPath, whisperPath, ytdlpPath, diarizePath string) []ToolCheck {
	checks := []struct {
		name     string
		binary   string
		fallback string
		optional bool
	}{
		{"ffmpeg", ffmpegPath, "ffmpeg", false},
		{"ffprobe", "", "ffprobe", false},
		{"whisper", whisperPath, "whisper-cli", false},
		{"yt-dlp", ytdlpPath, "yt-dlp", true},
		{"diarization helper", diarizePath, "scribeq-diarize", true},
	}

	results := make([]ToolCheck, 0, len(checks))
	for _, c := range checks {
		binary := c.binary
		if binary == "" {
			binary = c.fallback
		}
		path, err := exec.LookPath(binary)
		results = append(results, ToolCheck{
			Name:     c.name,
			Path:     path,
			Found:    err == nil,
			Optional: c.optional,
		})
	}
	return results
}
