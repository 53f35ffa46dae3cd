package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript [job_id]",
	Short: "Print the transcript of a completed job",
	Long: `Fetch and print the final transcript of a completed job.

The transcript is markdown; redirect it to a file to keep it:
  scribectl transcript <job-id> > transcript.md`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewJobClient(viper.GetString("url"))
		text, err := client.GetTranscript(args[0])
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Request failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Request failed: %v\n", err)
			}
			return
		}
		cmd.Print(text)
	},
}

func init() {
	rootCmd.AddCommand(transcriptCmd)
}
