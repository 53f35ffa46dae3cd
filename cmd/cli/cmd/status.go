package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"scribeq/pkg/api"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Get status of a job",
	Long:  `Retrieve detailed status for a transcription job, including its current state (queued, processing, completed, error), options, timestamps, and the result or failure once terminal.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")

		client := NewJobClient(viper.GetString("url"))
		job, err := client.GetJob(args[0], verbose)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Request failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Request failed: %v\n", err)
			}
			return
		}

		printStatus(cmd, job)
	},
}

func printStatus(cmd *cobra.Command, job *api.JobResponse) {
	icon := statusIcon(job.Status)
	cmd.Printf("%s %sJob Details%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sID:%s        %s\n", colorDim, colorReset, job.ID)
	cmd.Printf("%sStatus:%s    %s\n", colorDim, colorReset, colorizeStatus(job.Status))
	cmd.Printf("%sInput:%s     %s (%s)\n", colorDim, colorReset, job.InputLocation, job.InputKind)
	cmd.Printf("%sModel:%s     %s\n", colorDim, colorReset, job.Options.ModelSize)
	if job.Options.Diarize {
		cmd.Printf("%sDiarize:%s   yes%s\n", colorDim, colorReset, speakerBounds(job.Options))
	}

	cmd.Printf("%sCreated:%s   %s\n", colorDim, colorReset, formatTimeWithRelative(&job.CreatedAt))
	cmd.Printf("%sStarted:%s   %s\n", colorDim, colorReset, formatTimeWithRelative(job.StartedAt))
	if job.StartedAt != nil && job.CompletedAt != nil {
		duration := job.CompletedAt.Sub(*job.StartedAt)
		cmd.Printf("%sFinished:%s  %s %s(%s)%s\n", colorDim, colorReset,
			formatTimeWithRelative(job.CompletedAt),
			colorCyan, formatDuration(duration), colorReset)
	} else {
		cmd.Printf("%sFinished:%s  %s\n", colorDim, colorReset, formatTimeWithRelative(job.CompletedAt))
	}

	if res := job.Result; res != nil {
		cmd.Println()
		if res.DetectedLanguage != "" {
			cmd.Printf("%sLanguage:%s  %s\n", colorDim, colorReset, res.DetectedLanguage)
		}
		if res.SpeakerCount > 0 {
			cmd.Printf("%sSpeakers:%s  %d\n", colorDim, colorReset, res.SpeakerCount)
		}
		if res.TranscriptPath != "" {
			cmd.Printf("%sFile:%s      %s\n", colorDim, colorReset, res.TranscriptPath)
		}
		if res.Degraded {
			cmd.Printf("%sWarning:%s   %s%s%s\n", colorDim, colorReset, colorYellow, res.Warning, colorReset)
		}
		for _, t := range res.StageTimings {
			cmd.Printf("%s%-11s%s%.1fs\n", colorDim, t.Stage+":", colorReset, t.Seconds)
		}
	}

	if job.Error != nil {
		cmd.Printf("%sError:%s     %s[%s] %s%s\n", colorDim, colorReset, colorRed, job.Error.Kind, job.Error.Message, colorReset)
		if job.Error.Detail != "" {
			cmd.Printf("%sDetail:%s    %s\n", colorDim, colorReset, job.Error.Detail)
		}
	}
}

func speakerBounds(opts api.JobOptions) string {
	switch {
	case opts.MinSpeakers != nil && opts.MaxSpeakers != nil:
		return fmt.Sprintf(" (%d-%d speakers)", *opts.MinSpeakers, *opts.MaxSpeakers)
	case opts.MinSpeakers != nil:
		return fmt.Sprintf(" (at least %d speakers)", *opts.MinSpeakers)
	case opts.MaxSpeakers != nil:
		return fmt.Sprintf(" (at most %d speakers)", *opts.MaxSpeakers)
	}
	return ""
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(status string) string {
	switch status {
	case "completed":
		return "✓"
	case "error":
		return "✗"
	case "processing":
		return "●"
	default:
		return "○"
	}
}

func colorizeStatus(status string) string {
	switch status {
	case "completed":
		return colorGreen + status + colorReset
	case "error":
		return colorRed + status + colorReset
	case "processing":
		return colorCyan + status + colorReset
	case "queued":
		return colorYellow + status + colorReset
	default:
		return status
	}
}

func formatTimeWithRelative(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%s ago)", t.Local().Format("2006-01-02 15:04:05"), formatDuration(time.Since(*t)))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
