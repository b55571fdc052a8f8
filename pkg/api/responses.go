package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Response is the backend envelope: either {"data": ...} or {"error": ...}.
type Response struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`

	// StatusCode and Raw are filled by the client, not decoded from JSON.
	StatusCode int    `json:"-"`
	Raw        []byte `json:"-"`
}

// HasError reports whether a non-null error field is present.
func (r *Response) HasError() bool {
	trimmed := bytes.TrimSpace(r.Error)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Failed reports whether the call must be treated as a failure: any non-2xx
// status or any error field, even when data is also present.
func (r *Response) Failed() bool {
	if r.StatusCode != 0 && (r.StatusCode < 200 || r.StatusCode > 299) {
		return true
	}
	return r.HasError()
}

// ErrorMessage returns the backend error as text. String errors are returned
// verbatim; any other JSON value is returned as its raw encoding.
func (r *Response) ErrorMessage() string {
	if !r.HasError() {
		return ""
	}
	var msg string
	if err := json.Unmarshal(r.Error, &msg); err == nil {
		return msg
	}
	return string(bytes.TrimSpace(r.Error))
}

// DecodeData unmarshals the data field into v.
func (r *Response) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("response has no data field")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// Decode unmarshals the data field of r into a value of type T.
func Decode[T any](r *Response) (T, error) {
	var out T
	if r == nil {
		return out, fmt.Errorf("nil response")
	}
	err := r.DecodeData(&out)
	return out, err
}

// OK builds a success envelope.
func OK(data any) map[string]any {
	return map[string]any{"data": data}
}

// Fail builds an error envelope.
func Fail(message string) map[string]any {
	return map[string]any{"error": message}
}
