package events

const (
	// KindSessionStateChanged identifies a session state machine transition.
	KindSessionStateChanged Kind = "session.state_changed"
	// KindSessionConnected identifies an established transport connection.
	KindSessionConnected Kind = "session.connected"
	// KindSessionDisconnected identifies the end of a connection.
	KindSessionDisconnected Kind = "session.disconnected"
)

// SessionStateChanged carries the previous and the new state name.
type SessionStateChanged struct {
	Base
	From string
	To   string
}

func NewSessionStateChanged(from, to string) SessionStateChanged {
	return SessionStateChanged{Base: NewBase(KindSessionStateChanged), From: from, To: to}
}

// SessionConnected is emitted once the transport is open and the session
// update has been queued.
type SessionConnected struct {
	Base
	URL string
}

func NewSessionConnected(url string) SessionConnected {
	return SessionConnected{Base: NewBase(KindSessionConnected), URL: url}
}

// SessionDisconnected carries the error that ended the connection, nil on
// a requested shutdown.
type SessionDisconnected struct {
	Base
	Err error
}

func NewSessionDisconnected(err error) SessionDisconnected {
	return SessionDisconnected{Base: NewBase(KindSessionDisconnected), Err: err}
}
