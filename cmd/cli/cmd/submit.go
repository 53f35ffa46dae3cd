package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"scribeq/pkg/api"
)

var submitCmd = &cobra.Command{
	Use:   "submit [file or URL]",
	Short: "Queue a transcription job",
	Long: `Queue a new transcription job for a local media file or a remote URL.

A local file is referenced by path when the server runs on the same
machine; pass --upload to stream the file to the server instead.
Arguments starting with http:// or https:// are treated as remote
sources and fetched by the server's download stage.

Example:
  scribectl submit recording.mp3 --diarize --min-speakers 2
  scribectl submit "https://www.youtube.com/watch?v=..." --model small
  scribectl submit interview.wav --upload --language en`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source := args[0]
		flags := cmd.Flags()

		model, _ := flags.GetString("model")
		language, _ := flags.GetString("language")
		diarize, _ := flags.GetBool("diarize")
		minSpeakers, _ := flags.GetInt("min-speakers")
		maxSpeakers, _ := flags.GetInt("max-speakers")
		keep, _ := flags.GetBool("keep-intermediates")
		upload, _ := flags.GetBool("upload")

		opts := api.JobOptions{
			ModelSize:         model,
			Language:          language,
			Diarize:           diarize,
			KeepIntermediates: keep,
		}
		if minSpeakers > 0 {
			opts.MinSpeakers = &minSpeakers
		}
		if maxSpeakers > 0 {
			opts.MaxSpeakers = &maxSpeakers
		}

		client := NewJobClient(viper.GetString("url"))

		var result *api.SubmitJobResponse
		var err error
		switch {
		case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
			result, err = client.SubmitJob(api.SubmitJobRequest{URL: source, Options: opts})
		case upload:
			result, err = client.UploadJob(source, opts)
		default:
			result, err = client.SubmitJob(api.SubmitJobRequest{Path: source, Options: opts})
		}
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Submit failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Submit failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Job queued!\nJob ID: %s\nStatus: %s\n", result.JobID, result.Status)
	},
}

func init() {
	flags := submitCmd.Flags()
	flags.StringP("model", "m", "", "Whisper model size (tiny, base, small, medium, large)")
	flags.StringP("language", "l", "", "Spoken language hint (default: auto-detect)")
	flags.BoolP("diarize", "d", false, "Enable speaker diarization")
	flags.Int("min-speakers", 0, "Minimum number of speakers (requires --diarize)")
	flags.Int("max-speakers", 0, "Maximum number of speakers (requires --diarize)")
	flags.Bool("keep-intermediates", false, "Keep intermediate stage outputs on disk")
	flags.Bool("upload", false, "Stream the local file to the server instead of passing its path")

	rootCmd.AddCommand(submitCmd)
}
