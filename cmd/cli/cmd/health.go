package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server and worker health",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewJobClient(viper.GetString("url"))
		resp, err := client.Health()
		if err != nil {
			cmd.Printf("Server unreachable: %v\n", err)
			return
		}
		cmd.Printf("Server: %s\nWorker: %s\n", resp.Status, resp.Worker)
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check availability of the external tools on the server",
	Long: `Probe the external binaries the server's pipeline shells out to
(ffmpeg, whisper, yt-dlp, the diarization helper) and report which are
available.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := NewJobClient(viper.GetString("url"))
		resp, err := client.Doctor()
		if err != nil {
			cmd.Printf("Server unreachable: %v\n", err)
			return
		}

		for _, tool := range resp.Tools {
			mark := colorGreen + "✓" + colorReset
			note := tool.Path
			if !tool.Found {
				mark = colorRed + "✗" + colorReset
				note = "not found"
				if tool.Optional {
					mark = colorYellow + "-" + colorReset
					note = "not found (optional)"
				}
			}
			cmd.Printf("%s %-20s %s\n", mark, tool.Name, note)
		}
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(doctorCmd)
}
