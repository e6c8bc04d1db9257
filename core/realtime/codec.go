package realtime

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

var ErrDecode = errors.New("realtime: malformed event")

// wire is the JSON configuration for both directions. It leaves HTML
// characters unescaped, escapes control characters and keeps non-ASCII text
// as is.
var wire = sonic.ConfigDefault

// Event is a decoded server event. Fields that do not apply to Type are
// left zero.
type Event struct {
	Type       string        `json:"type"`
	EventID    string        `json:"event_id,omitempty"`
	ResponseID string        `json:"response_id,omitempty"`
	ItemID     string        `json:"item_id,omitempty"`
	Audio      string        `json:"audio,omitempty"`
	Transcript string        `json:"transcript,omitempty"`
	Delta      string        `json:"delta,omitempty"`
	Session    *SessionInfo  `json:"session,omitempty"`
	Response   *ResponseInfo `json:"response,omitempty"`
	Error      *ErrorInfo    `json:"error,omitempty"`
	RateLimits []RateLimit   `json:"rate_limits,omitempty"`
}

func (e *Event) Kind() Kind { return KindOf(e.Type) }

// ResponseKey returns the response id, falling back to the nested response
// object that response.created and response.done carry.
func (e *Event) ResponseKey() string {
	if e.ResponseID != "" {
		return e.ResponseID
	}
	if e.Response != nil {
		return e.Response.ID
	}
	return ""
}

// AudioPCM decodes the base64 audio payload. Audio deltas carry it in
// "delta"; "audio" is accepted as well.
func (e *Event) AudioPCM() ([]byte, error) {
	payload := e.Delta
	if payload == "" {
		payload = e.Audio
	}

	pcm, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s audio payload: %w", e.Type, err)
	}
	return pcm, nil
}

// Decode parses a single server message. Unknown fields are ignored; a
// message without a type is rejected.
func Decode(raw []byte) (*Event, error) {
	var event Event
	if err := wire.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrDecode)
	}
	return &event, nil
}

// Envelope is an outbound client event.
type Envelope struct {
	Type    string         `json:"type"`
	EventID string         `json:"event_id,omitempty"`
	Audio   string         `json:"audio,omitempty"`
	Session *SessionConfig `json:"session,omitempty"`
}

func NewSessionUpdate(config SessionConfig) Envelope {
	return Envelope{Type: EventTypeSessionUpdate, Session: &config}
}

// NewAudioAppend carries one audio batch, base64 encoded.
func NewAudioAppend(batch []byte) Envelope {
	return Envelope{Type: EventTypeInputAudioBufferAppend, Audio: base64.StdEncoding.EncodeToString(batch)}
}

func NewAudioCommit() Envelope    { return Envelope{Type: EventTypeInputAudioBufferCommit} }
func NewAudioClear() Envelope     { return Envelope{Type: EventTypeInputAudioBufferClear} }
func NewResponseCreate() Envelope { return Envelope{Type: EventTypeResponseCreate} }
func NewResponseCancel() Envelope { return Envelope{Type: EventTypeResponseCancel} }

// Encode serializes an envelope, assigning an event id when none is set.
func Encode(envelope Envelope) ([]byte, error) {
	if envelope.Type == "" {
		return nil, errors.New("realtime: envelope without type")
	}
	if envelope.EventID == "" {
		envelope.EventID = NewEventID()
	}

	raw, err := wire.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", envelope.Type, err)
	}
	return raw, nil
}

// NewEventID returns "evt_" followed by the first 12 characters of a random UUID.
func NewEventID() string {
	return "evt_" + uuid.New().String()[:12]
}
