package orchestration

import "log/slog"

// Status lines shown while the session runs.
const (
	StatusConnecting   = "connecting"
	StatusHandshake    = "waiting for session"
	StatusListening    = "listening"
	StatusThinking     = "thinking"
	StatusResponding   = "responding"
	StatusDisconnected = "disconnected"
)

// displayFacade forwards updates to the optional display. Failures are
// logged and otherwise ignored.
type displayFacade struct {
	client Display
	logger *slog.Logger
}

func (d displayFacade) setUserText(text string) {
	if d.client == nil {
		return
	}
	if err := d.client.SetUserText(text); err != nil {
		d.logger.Warn("display rejected user text", "error", err)
	}
}

func (d displayFacade) setAssistantText(text string) {
	if d.client == nil {
		return
	}
	if err := d.client.SetAssistantText(text); err != nil {
		d.logger.Warn("display rejected assistant text", "error", err)
	}
}

func (d displayFacade) setStatus(status string) {
	if d.client == nil {
		return
	}
	if err := d.client.SetStatus(status); err != nil {
		d.logger.Warn("display rejected status", "error", err)
	}
}
