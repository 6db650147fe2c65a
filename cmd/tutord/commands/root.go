package commands

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tutord",
	Short: "Live-teaching session server",
	Long: `tutord serves interactive teaching sessions.

Students ask questions over WebSocket or SSE and receive a paced stream of
explanation text, emphasis markers, visual cues and narrated audio.

Examples:
  tutord serve
  tutord serve --addr :9000
  tutord serve --config tutord.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
}
