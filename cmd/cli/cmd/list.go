package cmd

import (
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Long: `List jobs known to the server, newest first.

Example:
  scribectl list
  scribectl list --status queued`,
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")

		client := NewJobClient(viper.GetString("url"))
		resp, err := client.ListJobs(status)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Request failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Request failed: %v\n", err)
			}
			return
		}

		if len(resp.Jobs) == 0 {
			cmd.Println("No jobs found")
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		w.Write([]byte("ID\tSTATUS\tINPUT\tCREATED\n"))
		for _, job := range resp.Jobs {
			created := job.CreatedAt.Local().Format("2006-01-02 15:04:05")
			w.Write([]byte(job.ID + "\t" + job.Status + "\t" + truncate(job.InputLocation, 48) + "\t" + created + "\n"))
		}
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	listCmd.Flags().StringP("status", "s", "", "Filter by status (queued, processing, completed, error)")
	rootCmd.AddCommand(listCmd)
}
