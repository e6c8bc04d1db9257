package events

const (
	// KindAssistantPlaybackStarted identifies playback start for a response clip.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackEnded identifies playback completion for a response clip.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
	// KindAssistantPlaybackDrained identifies an empty playback queue after playing.
	KindAssistantPlaybackDrained Kind = "assistant_playback.drained"
)

// AssistantPlaybackStarted marks the start of assistant playback.
type AssistantPlaybackStarted struct {
	Base
	ResponseID string
}

func NewAssistantPlaybackStarted(responseID string) AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted), ResponseID: responseID}
}

// AssistantPlaybackEnded marks the end of a clip. Err is set when the output
// device failed or playback was cancelled.
type AssistantPlaybackEnded struct {
	Base
	ResponseID string
	Err        error
}

func NewAssistantPlaybackEnded(responseID string, err error) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), ResponseID: responseID, Err: err}
}

// AssistantPlaybackDrained marks that no clip is playing or queued.
type AssistantPlaybackDrained struct{ Base }

func NewAssistantPlaybackDrained() AssistantPlaybackDrained {
	return AssistantPlaybackDrained{Base: NewBase(KindAssistantPlaybackDrained)}
}
