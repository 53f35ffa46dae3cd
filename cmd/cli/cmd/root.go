package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "scribectl",
	Short: "Scribectl is a command line tool for the scribeq transcription server",
	Long: `scribectl is the command-line interface for scribeq, a local
transcription job server.

scribeq queues transcription work and processes it one job at a time:
download (for remote sources), transcribe with whisper.cpp, optional
speaker diarization, and markdown formatting.

Common workflows:

  Submit a local file:
    scribectl submit recording.mp3 --diarize

  Submit a remote source:
    scribectl submit "https://www.youtube.com/watch?v=..." --model small

  Check a job:
    scribectl status <job-id>

  Fetch the finished transcript:
    scribectl transcript <job-id> > transcript.md

  List recent jobs:
    scribectl list --status queued

Configuration:
  Set the API endpoint via flag, environment, or a config file:
    SCRIBEQ_URL    API endpoint (default: http://localhost:8137)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".scribectl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".scribectl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "SCRIBEQ_VARNAME"
	viper.SetEnvPrefix("SCRIBEQ")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.scribectl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:8137", "scribeq server URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}
