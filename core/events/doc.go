// Package events defines the typed session event contract published by the
// orchestrator to registered handlers.
//
// Event kinds are grouped by namespace:
//
//   - session.*
//   - user_input.*
//   - assistant_response.*
//   - assistant_playback.*
//   - protocol.*
//
// Handlers are invoked synchronously on the activity that produced the event
// (capture callback, receive loop or playback worker) and must not block.
package events
