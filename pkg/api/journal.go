package api

import "time"

// CallStatus is the lifecycle state of a journaled mutating call.
type CallStatus string

const (
	CallPending   CallStatus = "pending"
	CallSucceeded CallStatus = "succeeded"
	CallFailed    CallStatus = "failed"
	// CallAmbiguous means the request may have reached the backend but no
	// response was received. It must be reconciled before any retry.
	CallAmbiguous CallStatus = "ambiguous"
)

// Valid reports whether s is a known status.
func (s CallStatus) Valid() bool {
	switch s {
	case CallPending, CallSucceeded, CallFailed, CallAmbiguous:
		return true
	}
	return false
}

// JournalEntry records one mutating private call.
type JournalEntry struct {
	RequestID string     `json:"request_id"`
	APIKeyID  string     `json:"api_key_id"`
	Method    string     `json:"method"`
	Route     string     `json:"route"`
	Nonce     int64      `json:"nonce"`
	Params    Params     `json:"params,omitempty"`
	Status    CallStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
