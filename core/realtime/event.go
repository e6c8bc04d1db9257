package realtime

// Client events.
const (
	EventTypeSessionUpdate          = "session.update"
	EventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	EventTypeInputAudioBufferCommit = "input_audio_buffer.commit"
	EventTypeInputAudioBufferClear  = "input_audio_buffer.clear"
	EventTypeResponseCreate         = "response.create"
	EventTypeResponseCancel         = "response.cancel"
)

// Server events.
const (
	EventTypeError = "error"

	EventTypeSessionCreated = "session.created"
	EventTypeSessionUpdated = "session.updated"

	EventTypeConversationCreated                              = "conversation.created"
	EventTypeConversationItemCreated                          = "conversation.item.created"
	EventTypeConversationItemInputAudioTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	EventTypeConversationItemInputAudioTranscriptionFailed    = "conversation.item.input_audio_transcription.failed"

	EventTypeInputAudioBufferCommitted     = "input_audio_buffer.committed"
	EventTypeInputAudioBufferCleared       = "input_audio_buffer.cleared"
	EventTypeInputAudioBufferSpeechStarted = "input_audio_buffer.speech_started"
	EventTypeInputAudioBufferSpeechStopped = "input_audio_buffer.speech_stopped"

	EventTypeResponseCreated          = "response.created"
	EventTypeResponseDone             = "response.done"
	EventTypeResponseOutputItemAdded  = "response.output_item.added"
	EventTypeResponseOutputItemDone   = "response.output_item.done"
	EventTypeResponseContentPartAdded = "response.content_part.added"
	EventTypeResponseContentPartDone  = "response.content_part.done"

	EventTypeResponseTextDelta = "response.text.delta"
	EventTypeResponseTextDone  = "response.text.done"

	EventTypeResponseAudioDelta = "response.audio.delta"
	EventTypeResponseAudioDone  = "response.audio.done"

	EventTypeResponseAudioTranscriptDelta = "response.audio_transcript.delta"
	EventTypeResponseAudioTranscriptDone  = "response.audio_transcript.done"

	EventTypeRateLimitsUpdated = "rate_limits.updated"
)

// Kind groups server event types by what they describe.
type Kind int

const (
	KindUnknown Kind = iota
	KindSessionLifecycle
	KindSpeechBoundary
	KindTranscription
	KindResponseText
	KindResponseAudio
	KindCompletion
	KindRateLimit
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSessionLifecycle:
		return "session_lifecycle"
	case KindSpeechBoundary:
		return "speech_boundary"
	case KindTranscription:
		return "transcription"
	case KindResponseText:
		return "response_text"
	case KindResponseAudio:
		return "response_audio"
	case KindCompletion:
		return "completion"
	case KindRateLimit:
		return "rate_limit"
	case KindError:
		return "error"
	}
	return "unknown"
}

var kindsByType = map[string]Kind{
	EventTypeError: KindError,

	EventTypeSessionCreated:      KindSessionLifecycle,
	EventTypeSessionUpdated:      KindSessionLifecycle,
	EventTypeConversationCreated: KindSessionLifecycle,

	EventTypeInputAudioBufferSpeechStarted: KindSpeechBoundary,
	EventTypeInputAudioBufferSpeechStopped: KindSpeechBoundary,
	EventTypeInputAudioBufferCommitted:     KindSpeechBoundary,
	EventTypeInputAudioBufferCleared:       KindSpeechBoundary,

	EventTypeConversationItemInputAudioTranscriptionCompleted: KindTranscription,
	EventTypeConversationItemInputAudioTranscriptionFailed:    KindTranscription,

	EventTypeResponseContentPartAdded:     KindResponseText,
	EventTypeResponseTextDelta:            KindResponseText,
	EventTypeResponseAudioTranscriptDelta: KindResponseText,

	EventTypeResponseAudioDelta: KindResponseAudio,

	EventTypeResponseCreated:             KindCompletion,
	EventTypeResponseDone:                KindCompletion,
	EventTypeResponseAudioDone:           KindCompletion,
	EventTypeResponseAudioTranscriptDone: KindCompletion,
	EventTypeResponseTextDone:            KindCompletion,
	EventTypeResponseContentPartDone:     KindCompletion,
	EventTypeResponseOutputItemAdded:     KindCompletion,
	EventTypeResponseOutputItemDone:      KindCompletion,
	EventTypeConversationItemCreated:     KindCompletion,

	EventTypeRateLimitsUpdated: KindRateLimit,
}

// KindOf reports the category of a server event type.
func KindOf(eventType string) Kind {
	return kindsByType[eventType]
}
