// Package config handles server configuration loading from a YAML file
// and SCRIBEQ_* environment variables via viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the server.
type Config struct {
	// DatabasePath is the SQLite database file.
	DatabasePath string

	// HTTPPort is the API listen port.
	HTTPPort int

	// DataDir is the base directory for artifacts, uploads, and
	// download staging.
	DataDir string

	// PollInterval is the worker's idle wait between queue polls.
	PollInterval time.Duration

	// ModelSize is the default whisper model size for submissions that
	// don't specify one.
	ModelSize string

	// ModelDir holds the whisper ggml model files.
	ModelDir string

	// External tool paths; empty means resolve from PATH.
	FFmpegPath  string
	WhisperPath string
	YtdlpPath   string
	DiarizePath string

	// HFToken is the HuggingFace token for the diarization models.
	HFToken string

	// MaxUploadBytes caps the upload endpoint body size.
	MaxUploadBytes int64

	// OTELEndpoint is the OTLP collector address; empty disables tracing.
	OTELEndpoint string

	// LogLevel is debug/info/warn/error.
	LogLevel string
}

// ArtifactsDir is where final and intermediate transcripts live.
func (c *Config) ArtifactsDir() string {
	return filepath.Join(c.DataDir, "artifacts")
}

// UploadsDir is where staged uploads live.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// DownloadsDir is where the download stage places fetched media.
func (c *Config) DownloadsDir() string {
	return filepath.Join(c.DataDir, "downloads")
}

// Load reads configuration from the given file (default: scribeq.yaml
// in the current directory, if present) with SCRIBEQ_* environment
// overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	dataDir := defaultDataDir()
	v.SetDefault("database_path", filepath.Join(dataDir, "jobs.db"))
	v.SetDefault("http_port", 8137)
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("poll_interval", "1s")
	v.SetDefault("model_size", "base")
	v.SetDefault("model_dir", filepath.Join(dataDir, "models"))
	v.SetDefault("max_upload_bytes", int64(100*1024*1024))
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scribeq")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SCRIBEQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one is not.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	pollInterval, err := time.ParseDuration(v.GetString("poll_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid poll_interval: %w", err)
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("poll_interval must be positive")
	}

	port := v.GetInt("http_port")
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid http_port: %d", port)
	}

	return &Config{
		DatabasePath:   v.GetString("database_path"),
		HTTPPort:       port,
		DataDir:        v.GetString("data_dir"),
		PollInterval:   pollInterval,
		ModelSize:      v.GetString("model_size"),
		ModelDir:       v.GetString("model_dir"),
		FFmpegPath:     v.GetString("ffmpeg_path"),
		WhisperPath:    v.GetString("whisper_path"),
		YtdlpPath:      v.GetString("ytdlp_path"),
		DiarizePath:    v.GetString("diarize_path"),
		HFToken:        v.GetString("hf_token"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),
		OTELEndpoint:   v.GetString("otel_endpoint"),
		LogLevel:       v.GetString("log_level"),
	}, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "scribeq")
	}
	return filepath.Join(home, ".local", "share", "scribeq")
}
