package orchestration

import (
	"strings"
	"sync"
)

// ConversationTurn is a point-in-time view of the current exchange.
type ConversationTurn struct {
	User       string
	Assistant  string
	ResponseID string
}

type conversation struct {
	mu        sync.RWMutex
	user      string
	assistant strings.Builder
	response  string
}

func (c *conversation) Snapshot() ConversationTurn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ConversationTurn{User: c.user, Assistant: c.assistant.String(), ResponseID: c.response}
}

func (c *conversation) setUser(transcript string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = transcript
}

func (c *conversation) clearUser() { c.setUser("") }

func (c *conversation) resetAssistant(responseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assistant.Reset()
	c.response = responseID
}

// appendAssistant adds delta and returns the running transcript.
func (c *conversation) appendAssistant(delta string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assistant.WriteString(delta)
	return c.assistant.String()
}
