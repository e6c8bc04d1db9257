package events

import "time"

const (
	// KindAssistantResponseStarted identifies a new assistant content part.
	KindAssistantResponseStarted Kind = "assistant_response.started"
	// KindAssistantTranscriptUpdated identifies a mutable assistant transcript snapshot.
	KindAssistantTranscriptUpdated Kind = "assistant_response.transcript_updated"
	// KindAssistantAudioReady identifies a fully assembled response clip.
	KindAssistantAudioReady Kind = "assistant_response.audio_ready"
	// KindAssistantResponseDone identifies the server's completion marker.
	KindAssistantResponseDone Kind = "assistant_response.done"
)

// AssistantResponseStarted marks the reset of the assistant transcript.
type AssistantResponseStarted struct {
	Base
	ResponseID string
}

func NewAssistantResponseStarted(responseID string) AssistantResponseStarted {
	return AssistantResponseStarted{Base: NewBase(KindAssistantResponseStarted), ResponseID: responseID}
}

// AssistantTranscriptUpdated carries the running assistant transcript.
type AssistantTranscriptUpdated struct {
	Base
	ResponseID string
	Transcript string
}

func NewAssistantTranscriptUpdated(responseID, transcript string) AssistantTranscriptUpdated {
	return AssistantTranscriptUpdated{Base: NewBase(KindAssistantTranscriptUpdated), ResponseID: responseID, Transcript: transcript}
}

// AssistantAudioReady describes a response clip queued for playback.
type AssistantAudioReady struct {
	Base
	ResponseID string
	Size       int
	Duration   time.Duration
}

func NewAssistantAudioReady(responseID string, size int, duration time.Duration) AssistantAudioReady {
	return AssistantAudioReady{Base: NewBase(KindAssistantAudioReady), ResponseID: responseID, Size: size, Duration: duration}
}

// AssistantResponseDone marks the end of a response on the server side.
type AssistantResponseDone struct {
	Base
	ResponseID string
}

func NewAssistantResponseDone(responseID string) AssistantResponseDone {
	return AssistantResponseDone{Base: NewBase(KindAssistantResponseDone), ResponseID: responseID}
}
