package api

import (
	"net/http"
	"strings"
)

// Request describes a logical backend call before signing.
type Request struct {
	HTTPMethod string
	APIRoute   string
	Params     Params
	// Version overrides the client's default API version (v0, v1, v2).
	Version string
	// Mutating marks calls whose side effects must not be repeated blindly,
	// such as withdrawals and orders.
	Mutating bool
}

// Method returns the upper-cased HTTP method, defaulting to POST.
func (r Request) Method() string {
	if r.HTTPMethod == "" {
		return http.MethodPost
	}
	return strings.ToUpper(r.HTTPMethod)
}

// Route returns the route without leading or trailing slashes.
func (r Request) Route() string {
	return strings.Trim(r.APIRoute, "/")
}

// mutatingRoutes lists route prefixes that move funds or change account state.
var mutatingRoutes = []string{
	"withdraw/",
	"buy",
	"sell",
	"transfer/",
	"cancel_order",
	"update_user",
	"close_account",
	"addressBook/delete/",
}

// IsMutating reports whether the request must be treated as non-idempotent.
func (r Request) IsMutating() bool {
	if r.Mutating {
		return true
	}
	route := r.Route()
	for _, prefix := range mutatingRoutes {
		if route == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(route, prefix) {
			return true
		}
	}
	return false
}

// SignedRequest is the wire-ready form of a private Request.
type SignedRequest struct {
	Method    string
	URL       string
	Path      string
	Body      []byte
	Nonce     int64
	Signature string
	Headers   http.Header
}

// Header names used by the backend.
const (
	HeaderAPIKey      = "API-Key"
	HeaderAPISign     = "API-Sign"
	HeaderContentType = "Content-Type"
	HeaderUserAgent   = "User-Agent"
	HeaderRetryAfter  = "Retry-After"
)
