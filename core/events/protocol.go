package events

const (
	// KindProtocolMessageReceived identifies a decoded inbound message.
	KindProtocolMessageReceived Kind = "protocol.message_received"
	// KindProtocolMessageMalformed identifies an inbound message that failed to decode.
	KindProtocolMessageMalformed Kind = "protocol.message_malformed"
	// KindProtocolMessageUnhandled identifies a decoded message with an unknown type.
	KindProtocolMessageUnhandled Kind = "protocol.message_unhandled"
	// KindProtocolError identifies an error event reported by the server.
	KindProtocolError Kind = "protocol.error"
	// KindProtocolRateLimits identifies a rate limit notice.
	KindProtocolRateLimits Kind = "protocol.rate_limits"
)

type ProtocolMessageReceived struct {
	Base
	Type string
}

func NewProtocolMessageReceived(messageType string) ProtocolMessageReceived {
	return ProtocolMessageReceived{Base: NewBase(KindProtocolMessageReceived), Type: messageType}
}

type ProtocolMessageMalformed struct {
	Base
	Err error
}

func NewProtocolMessageMalformed(err error) ProtocolMessageMalformed {
	return ProtocolMessageMalformed{Base: NewBase(KindProtocolMessageMalformed), Err: err}
}

type ProtocolMessageUnhandled struct {
	Base
	Type string
}

func NewProtocolMessageUnhandled(messageType string) ProtocolMessageUnhandled {
	return ProtocolMessageUnhandled{Base: NewBase(KindProtocolMessageUnhandled), Type: messageType}
}

// ProtocolError carries the server error payload.
type ProtocolError struct {
	Base
	Code    string
	Message string
}

func NewProtocolError(code, message string) ProtocolError {
	return ProtocolError{Base: NewBase(KindProtocolError), Code: code, Message: message}
}

// RateLimit is one entry of a rate limit notice.
type RateLimit struct {
	Name         string
	Limit        int
	Remaining    int
	ResetSeconds float64
}

type ProtocolRateLimits struct {
	Base
	Limits []RateLimit
}

func NewProtocolRateLimits(limits []RateLimit) ProtocolRateLimits {
	return ProtocolRateLimits{Base: NewBase(KindProtocolRateLimits), Limits: limits}
}
