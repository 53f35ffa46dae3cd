package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"scribeq/internal/faults"
	"scribeq/internal/pipeline"
	"scribeq/internal/store"
)

// WhisperTranscriber runs ffmpeg preprocessing plus whisper.cpp
// transcription. The media is first converted to 16 kHz mono PCM WAV,
// which is the only input format whisper.cpp accepts reliably.
type WhisperTranscriber struct {
	ffmpegPath  string
	whisperPath string
	modelDir    string
	runner      commandRunner
	lookPath    func(string) (string, error)
}

// NewWhisperTranscriber creates a transcriber resolving models from
// modelDir (a directory of ggml .bin/.gguf files, or a single model file).
func NewWhisperTranscriber(ffmpegPath, whisperPath, modelDir string) *WhisperTranscriber {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if whisperPath == "" {
		whisperPath = "whisper-cli"
	}
	return &WhisperTranscriber{
		ffmpegPath:  ffmpegPath,
		whisperPath: whisperPath,
		modelDir:    modelDir,
		runner:      &execRunner{},
		lookPath:    exec.LookPath,
	}
}

// whisperOutput mirrors the whisper.cpp -oj JSON file layout.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe converts mediaPath into text with timed segments and a
// detected language.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, mediaPath string, opts store.JobOptions, progress func(float64)) (*pipeline.TranscribeOutput, error) {
	if _, err := os.Stat(mediaPath); err != nil {
		return nil, faults.Wrap(faults.KindInvalidInput,
			fmt.Sprintf("cannot access input media: %s", mediaPath), err)
	}

	for _, bin := range []string{t.ffmpegPath, t.whisperPath} {
		if _, err := t.lookPath(bin); err != nil {
			return nil, faults.Wrap(faults.KindDependencyMissing,
				fmt.Sprintf("%s not found; transcription requires it on PATH", filepath.Base(bin)), err)
		}
	}

	modelPath, err := t.resolveModelPath(opts.ModelSize)
	if err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "scribeq-transcribe-*")
	if err != nil {
		return nil, faults.Wrap(faults.KindProcessingFailure, "failed to create temporary workspace", err)
	}
	defer os.RemoveAll(tempDir)

	if progress != nil {
		progress(0)
	}

	// Preprocess to mono 16k PCM WAV.
	wavPath := filepath.Join(tempDir, "preprocessed-16k-mono.wav")
	ffmpegArgs := buildFFmpegArgs(mediaPath, wavPath)
	result, runErr := t.runner.Run(ctx, nil, t.ffmpegPath, ffmpegArgs...)
	if runErr != nil {
		return nil, faults.Wrap(faults.KindProcessingFailure,
			fmt.Sprintf("audio conversion failed: %s", firstLine(result.Stderr)), runErr)
	}
	if _, err := os.Stat(wavPath); err != nil {
		return nil, faults.Wrap(faults.KindProcessingFailure,
			"ffmpeg completed but output file is missing", err)
	}
	if progress != nil {
		progress(0.1)
	}

	// Transcribe; -oj writes <base>.json next to the output base.
	outBase := filepath.Join(tempDir, "transcript")
	whisperArgs := buildWhisperArgs(modelPath, wavPath, outBase, opts.Language)
	result, runErr = t.runner.Run(ctx, nil, t.whisperPath, whisperArgs...)
	if runErr != nil {
		return nil, faults.Wrap(faults.KindProcessingFailure,
			fmt.Sprintf("transcription failed: %s", firstLine(result.Stderr)), runErr)
	}

	data, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return nil, faults.Wrap(faults.KindProcessingFailure,
			"transcription completed but JSON output is missing", err)
	}

	var parsed whisperOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, faults.Wrap(faults.KindProcessingFailure,
			"transcription produced unreadable JSON output", err)
	}

	out := &pipeline.TranscribeOutput{Language: parsed.Result.Language}
	var text strings.Builder
	for _, seg := range parsed.Transcription {
		segText := strings.TrimSpace(seg.Text)
		if segText == "" {
			continue
		}
		start := float64(seg.Offsets.From) / 1000
		end := float64(seg.Offsets.To) / 1000
		out.Segments = append(out.Segments, pipeline.Segment{Start: start, End: end, Text: segText})
		if end > out.Duration {
			out.Duration = end
		}
		text.WriteString(segText)
		text.WriteString("\n")
	}
	out.Text = text.String()

	if progress != nil {
		progress(1)
	}
	return out, nil
}

// resolveModelPath maps a model size to a file under the model
// directory. A size-specific ggml file wins; otherwise the first model
// file found (sorted for determinism) is used. modelDir may also point
// directly at a model file.
func (t *WhisperTranscriber) resolveModelPath(modelSize string) (string, error) {
	if t.modelDir == "" {
		return "", faults.New(faults.KindDependencyMissing,
			"no whisper model directory configured")
	}

	info, err := os.Stat(t.modelDir)
	if err != nil {
		return "", faults.Wrap(faults.KindDependencyMissing,
			fmt.Sprintf("cannot access model path: %s", t.modelDir), err)
	}
	if !info.IsDir() {
		return t.modelDir, nil
	}

	if modelSize != "" {
		candidate := filepath.Join(t.modelDir, "ggml-"+modelSize+".bin")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	entries, err := os.ReadDir(t.modelDir)
	if err != nil {
		return "", faults.Wrap(faults.KindDependencyMissing,
			fmt.Sprintf("cannot read model directory: %s", t.modelDir), err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", faults.Newf(faults.KindDependencyMissing,
			"no .bin or .gguf model files found in: %s", t.modelDir)
	}

	sort.Strings(names)
	return filepath.Join(t.modelDir, names[0]), nil
}

// buildFFmpegArgs builds preprocessing args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds whisper.cpp args for JSON transcript export.
func buildWhisperArgs(modelPath, audioPath, outBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
	}
	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}
	return args
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}
