package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-edge/core/audio"
	"github.com/koscakluka/ema-edge/internal/mockserver"
)

var mockserverCmd = &cobra.Command{
	Use:   "mockserver",
	Short: "Run a local realtime stand-in",
	Long: `Runs a websocket server that speaks enough of the realtime protocol to
exercise the client without a cloud account.

It acknowledges session.update, collects appended audio and writes it to
output{n}.wav every --batches appends. With --echo it answers every file
with a response that plays the collected audio back.

Example:
  ema-edge mockserver --echo --output-dir recordings`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		addr, _ := flags.GetString("addr")
		outputDir, _ := flags.GetString("output-dir")
		batches, _ := flags.GetInt("batches")
		sampleRate, _ := flags.GetInt("sample-rate")
		echo, _ := flags.GetBool("echo")

		level, err := parseLevel(logLevel)
		if err != nil {
			return err
		}
		logger := newStderrLogger(level)

		encoding := audio.GetDefaultEncodingInfo()
		encoding.SampleRate = sampleRate

		server := mockserver.New(mockserver.Config{
			OutputDir:      outputDir,
			BatchesPerFile: batches,
			Encoding:       encoding,
			Echo:           echo,
		}, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.Run(ctx, addr)
	},
}

func init() {
	mockserverCmd.Flags().String("addr", "127.0.0.1:8765", "listen address")
	mockserverCmd.Flags().String("output-dir", ".", "directory for recorded WAV files, empty to disable")
	mockserverCmd.Flags().Int("batches", mockserver.DefaultBatchesPerFile, "appended batches per WAV file")
	mockserverCmd.Flags().Int("sample-rate", audio.DefaultSampleRate, "sample rate of the appended audio")
	mockserverCmd.Flags().Bool("echo", false, "play every recorded window back as a response")
}
