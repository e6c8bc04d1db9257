package orchestration

import events "github.com/koscakluka/ema-edge/core/events"

// EventHandler receives orchestration events. Handlers run on the activity
// that produced the event and must return quickly.
type EventHandler func(events.Event)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newEventEmitter(handlers []EventHandler) eventEmitter {
	if len(handlers) == 0 {
		return noopEventEmitter
	}

	registered := make([]EventHandler, len(handlers))
	copy(registered, handlers)
	return func(event events.Event) {
		for _, handle := range registered {
			handle(event)
		}
	}
}
