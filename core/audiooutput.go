package orchestration

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-edge/core/audio"
	"github.com/koscakluka/ema-edge/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type audioOutput struct {
	client AudioOutput
	emit   eventEmitter
}

func newAudioOutput(client AudioOutput, emit eventEmitter) *audioOutput {
	if emit == nil {
		emit = noopEventEmitter
	}
	return &audioOutput{client: client, emit: emit}
}

func (a *audioOutput) IsConfigured() bool { return a != nil && a.client != nil }

func (a *audioOutput) play(ctx context.Context, item PlaybackItem) error {
	if !a.IsConfigured() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "play response audio", trace.WithAttributes(
		attribute.String("response.id", item.ResponseID),
		attribute.Int("audio.bytes", len(item.Audio)),
		attribute.String("audio.duration", audio.Duration(item.Encoding, len(item.PCM())).String()),
	))
	defer span.End()

	a.emit(events.NewAssistantPlaybackStarted(item.ResponseID))
	err := a.client.Play(ctx, item.Audio)
	if err != nil {
		err = fmt.Errorf("failed to play response %q: %w", item.ResponseID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	a.emit(events.NewAssistantPlaybackEnded(item.ResponseID, err))

	return err
}
