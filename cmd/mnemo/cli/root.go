package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	dataDir      string
	verbose      bool
	jsonLogs     bool
	providerName string
	modelName    string
	redisURL     string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "A companion that remembers how conversations felt",
	Long: `Mnemo is a conversational agent with an affective long-term memory.
Each reply is grounded in memories ranked by meaning, by how closely their
mood matches the present one, and by how recent they are.`,
	SilenceUsage: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml or .json); defaults to <data-dir>/config.yaml when present")
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "Directory for the settings database")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log as JSON")
	RootCmd.PersistentFlags().StringVarP(&providerName, "provider", "p", "", "Model provider (stub, openai, ollama, gemini, anthropic, cli)")
	RootCmd.PersistentFlags().StringVar(&redisURL, "redis", os.Getenv("MNEMO_REDIS_URL"), "Keep settings and conversation records in Redis (redis://host:port/db) instead of the data dir")
	RootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Model name (default depends on provider)")
}
