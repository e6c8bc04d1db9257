package commands

import (
	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-edge/internal/config"
)

var (
	configPath string
	envFile    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "ema-edge",
	Short: "Full-duplex voice client for realtime speech APIs",
	Long: `Captures microphone audio, streams it to a realtime speech service
and plays the spoken answers back. Capture pauses while an answer plays.

Configuration is read from the file given with --config, then a .env file,
then the environment (` + config.EnvAPIKey + `, ` + config.EnvEndpoint + `, ...).`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load instead of ./.env")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(mockserverCmd)
}

// readConfig reads the configuration and applies the flag overrides. It
// validates only when asked, so commands that need no credentials still
// work without them.
func readConfig(validate bool) (*config.Config, error) {
	cfg, err := config.Read(configPath, envFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
