package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	orchestration "github.com/koscakluka/ema-edge/core"
	"github.com/koscakluka/ema-edge/core/audio"
	"github.com/koscakluka/ema-edge/core/audio/miniaudio"
	"github.com/koscakluka/ema-edge/core/audio/portaudio"
	"github.com/koscakluka/ema-edge/core/display/terminal"
	"github.com/koscakluka/ema-edge/core/events"
	"github.com/koscakluka/ema-edge/core/realtime"
	"github.com/koscakluka/ema-edge/internal/config"
	"github.com/koscakluka/ema-edge/internal/metrics"
	"github.com/koscakluka/ema-edge/internal/status"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Talk to the realtime service",
	Long: `Connects to the configured realtime service and starts a voice session.

The session reconnects with exponential backoff when the connection drops,
re-reading the session section of the configuration before every attempt.
Press q or Ctrl+C to quit.

Examples:
  # Azure deployment, credentials from .env
  ema-edge run -c ema-edge.yaml

  # Local mock server without the terminal display
  ema-edge mockserver --echo &
  EMA_REALTIME_URL=ws://127.0.0.1:8765 ema-edge run --no-display`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig(true)
		if err != nil {
			return err
		}
		if noDisplay, _ := cmd.Flags().GetBool("no-display"); noDisplay {
			cfg.Display.Enabled = false
		}

		logger, closeLog, err := newLogger(cfg.Logging, cfg.Display.Enabled)
		if err != nil {
			return err
		}
		defer closeLog()
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runSession(ctx, cfg, logger)
	},
}

func init() {
	runCmd.Flags().Bool("no-display", false, "log transcripts instead of drawing the terminal display")
}

// audioDevice is a microphone and speaker pair.
type audioDevice interface {
	orchestration.AudioInput
	orchestration.AudioOutput
	CaptureEncoding() audio.EncodingInfo
	Close()
}

func openAudioDevice(cfg config.AudioConfig) (audioDevice, error) {
	switch cfg.Backend {
	case config.BackendPortaudio:
		return portaudio.NewClient(
			portaudio.WithSampleRate(cfg.SampleRate),
			portaudio.WithCaptureChannels(cfg.CaptureChannels),
			portaudio.WithFramesPerBuffer(cfg.PeriodFrames),
		)
	default:
		return miniaudio.NewClient(
			miniaudio.WithSampleRate(cfg.SampleRate),
			miniaudio.WithCaptureChannels(cfg.CaptureChannels),
			miniaudio.WithPeriodFrames(cfg.PeriodFrames),
			miniaudio.WithCaptureDevice(cfg.CaptureDevice),
			miniaudio.WithPlaybackDevice(cfg.PlaybackDevice),
		)
	}
}

func runSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	uri, header, err := cfg.Endpoint().Resolve()
	if err != nil {
		return err
	}
	sessionConfig, err := cfg.SessionSnapshot()
	if err != nil {
		return err
	}

	device, err := openAudioDevice(cfg.Audio)
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	defer device.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sessionMetrics := metrics.NewMetrics(registry)

	dialer := realtime.NewDialer(
		realtime.WithHeader(header),
		realtime.WithHandshakeTimeout(cfg.Realtime.HandshakeTimeout),
		realtime.WithWriteTimeout(cfg.Realtime.WriteTimeout),
	)

	opts := []orchestration.OrchestratorOption{
		orchestration.WithTransport(dialer, uri),
		orchestration.WithAudioInput(device),
		orchestration.WithAudioOutput(device),
		orchestration.WithSessionConfig(sessionConfig),
		orchestration.WithChunking(cfg.ChunkAggregatorConfig()),
		orchestration.WithOutputEncoding(cfg.OutputEncoding()),
		orchestration.WithEventHandler(sessionMetrics.Handle),
		orchestration.WithLogger(logger),
	}

	var display *terminal.Display
	if cfg.Display.Enabled {
		display = terminal.New(
			terminal.WithMaxTextLength(cfg.Display.MaxTextLength),
			terminal.WithRefreshInterval(cfg.Display.RefreshInterval),
			terminal.WithOnQuit(cancel),
		)
		opts = append(opts, orchestration.WithDisplay(display))
	} else {
		opts = append(opts, orchestration.WithEventHandler(transcriptLogger(logger)))
	}

	orchestrator := orchestration.NewOrchestrator(opts...)
	defer orchestrator.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Status.Enabled {
		server := status.NewServer(orchestrator, registry, logger)
		g.Go(func() error { return server.Run(gctx, cfg.Status.Address) })
	}

	if display != nil {
		stopDisplay := context.AfterFunc(gctx, display.Close)
		defer stopDisplay()
		g.Go(display.Run)
	}

	g.Go(func() error {
		defer cancel()
		return reconnectLoop(gctx, orchestrator, cfg.Reconnect, func() (realtime.SessionConfig, error) {
			reloaded, err := readConfig(true)
			if err != nil {
				return realtime.SessionConfig{}, err
			}
			return reloaded.SessionSnapshot()
		}, logger)
	})

	return g.Wait()
}

// sessionRunner is the part of the orchestrator the reconnect loop drives.
type sessionRunner interface {
	Orchestrate(ctx context.Context) error
	SetSessionConfig(config realtime.SessionConfig)
}

// reconnectLoop runs sessions until ctx is done or the retry budget runs
// out. A session that stayed up longer than the maximum backoff resets the
// attempt counter.
func reconnectLoop(
	ctx context.Context,
	session sessionRunner,
	policy config.ReconnectConfig,
	reload func() (realtime.SessionConfig, error),
	logger *slog.Logger,
) error {
	wait := backoff{initial: policy.InitialBackoff, max: policy.MaxBackoff}
	attempt := 0

	for {
		started := time.Now()
		err := session.Orchestrate(ctx)
		if ctx.Err() != nil || errors.Is(err, orchestration.ErrOrchestratorClosed) {
			return nil
		}
		if err == nil {
			return nil
		}
		if !policy.Enabled {
			return err
		}

		if time.Since(started) > policy.MaxBackoff {
			attempt = 0
		}
		attempt++
		if policy.MaxAttempts > 0 && attempt > policy.MaxAttempts {
			return fmt.Errorf("giving up after %d reconnect attempts: %w", policy.MaxAttempts, err)
		}

		delay := wait.delay(attempt)
		logger.Warn("session ended, reconnecting", "error", err, "attempt", attempt, "delay", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		if reload != nil {
			sessionConfig, err := reload()
			if err != nil {
				logger.Warn("keeping previous session config", "error", err)
				continue
			}
			session.SetSessionConfig(sessionConfig)
		}
	}
}

// transcriptLogger reports the conversation through the logger when no
// display is attached.
func transcriptLogger(logger *slog.Logger) orchestration.EventHandler {
	return func(event events.Event) {
		switch e := event.(type) {
		case events.UserTranscriptFinal:
			logger.Info("user", "transcript", e.Transcript)
		case events.AssistantTranscriptUpdated:
			logger.Debug("assistant", "transcript", e.Transcript)
		case events.AssistantAudioReady:
			logger.Info("assistant audio ready", "response_id", e.ResponseID, "duration", e.Duration)
		case events.SessionStateChanged:
			logger.Info("session state changed", "from", e.From, "to", e.To)
		case events.ProtocolError:
			logger.Error("server error", "code", e.Code, "message", e.Message)
		}
	}
}
