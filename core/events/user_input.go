package events

const (
	// KindUserCaptureStarted identifies the microphone being opened.
	KindUserCaptureStarted Kind = "user_input.capture_started"
	// KindUserCaptureStopped identifies the microphone being closed.
	KindUserCaptureStopped Kind = "user_input.capture_stopped"
	// KindUserAudioBatch identifies an audio batch queued for sending.
	KindUserAudioBatch Kind = "user_input.audio_batch"
	// KindUserAudioFrameRejected identifies a capture frame dropped as invalid.
	KindUserAudioFrameRejected Kind = "user_input.audio_frame_rejected"
	// KindUserSpeechStarted identifies server-detected start of user speech.
	KindUserSpeechStarted Kind = "user_input.speech_started"
	// KindUserSpeechEnded identifies server-detected end of user speech.
	KindUserSpeechEnded Kind = "user_input.speech_ended"
	// KindUserTranscriptFinal identifies the final transcript for the utterance.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
)

// UserCaptureStarted marks when the capture device starts delivering frames.
type UserCaptureStarted struct{ Base }

func NewUserCaptureStarted() UserCaptureStarted {
	return UserCaptureStarted{Base: NewBase(KindUserCaptureStarted)}
}

// UserCaptureStopped marks when the capture device stops delivering frames.
type UserCaptureStopped struct{ Base }

func NewUserCaptureStopped() UserCaptureStopped {
	return UserCaptureStopped{Base: NewBase(KindUserCaptureStopped)}
}

// UserAudioBatch describes a batch handed to the send queue. Sequence starts
// at 1 for every connection.
type UserAudioBatch struct {
	Base
	Sequence uint64
	Size     int
}

func NewUserAudioBatch(sequence uint64, size int) UserAudioBatch {
	return UserAudioBatch{Base: NewBase(KindUserAudioBatch), Sequence: sequence, Size: size}
}

// UserAudioFrameRejected carries the reason a capture frame was dropped.
type UserAudioFrameRejected struct {
	Base
	Err error
}

func NewUserAudioFrameRejected(err error) UserAudioFrameRejected {
	return UserAudioFrameRejected{Base: NewBase(KindUserAudioFrameRejected), Err: err}
}

// UserSpeechStarted marks when the server detects user speech.
type UserSpeechStarted struct{ Base }

func NewUserSpeechStarted() UserSpeechStarted {
	return UserSpeechStarted{Base: NewBase(KindUserSpeechStarted)}
}

// UserSpeechEnded marks when the server detects the end of user speech.
type UserSpeechEnded struct{ Base }

func NewUserSpeechEnded() UserSpeechEnded {
	return UserSpeechEnded{Base: NewBase(KindUserSpeechEnded)}
}

// UserTranscriptFinal carries the completed transcription of the user turn.
type UserTranscriptFinal struct {
	Base
	ItemID     string
	Transcript string
}

func NewUserTranscriptFinal(itemID, transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), ItemID: itemID, Transcript: transcript}
}
