package events

import (
	"time"
)

// Event types published by the API client.
const (
	TypeCallCompleted = "api.call.completed"
	TypeCallFailed    = "api.call.failed"
	TypeNonceRetried  = "api.nonce.retried"
)

// CallEvent describes one finished API call, successful or not.
type CallEvent struct {
	*BaseEvent

	RequestID  string
	Method     string
	Route      string
	Private    bool
	Mutating   bool
	Nonce      int64
	Attempt    int
	StatusCode int
	Duration   time.Duration

	// ErrorKind and Err are empty for completed calls.
	ErrorKind string
	Err       error
}

// NewCallEvent creates a CallEvent of the given type.
func NewCallEvent(eventType, requestID, method, route string) *CallEvent {
	return &CallEvent{
		BaseEvent: NewBaseEvent(eventType, map[string]any{
			"request_id": requestID,
			"route":      route,
		}),
		RequestID: requestID,
		Method:    method,
		Route:     route,
		Attempt:   1,
	}
}
