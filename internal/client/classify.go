package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gookit/goutil"

	"github.com/solidifx/solidi-go/pkg/api"
	"github.com/solidifx/solidi-go/pkg/errors"
)

const maxErrorBody = 512

var (
	authHints       = []string{"key", "signature", "verify", "authenticat", "unauthori", "permission denied"}
	validationHints = []string{"invalid", "insufficient", "address", "param", "minimum", "maximum", "volume", "required", "not supported"}
)

// parseResponse decodes the envelope and turns failures into typed errors.
// The parsed response is returned alongside the error whenever the body was
// valid JSON, so callers can inspect it.
func parseResponse(status int, header http.Header, body []byte) (*api.Response, error) {
	resp := &api.Response{StatusCode: status, Raw: body}

	if err := json.Unmarshal(body, resp); err != nil {
		snippet := truncate(string(body), maxErrorBody)
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, errors.NewAuthenticationError(errors.ErrCodeAuthRejected,
				fmt.Sprintf("HTTP %d: %s", status, snippet), status, err)
		}
		return nil, errors.NewUnknownBackendError(errors.ErrCodeDecode,
			fmt.Sprintf("HTTP %d: response is not a JSON envelope", status), status, snippet, err)
	}

	if !resp.Failed() {
		return resp, nil
	}

	msg := resp.ErrorMessage()
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
	}
	return resp, classifyBackendError(status, msg, header)
}

// classifyBackendError maps a backend error message and status onto the
// error taxonomy. Nonce errors win over everything else because they are
// the only retryable kind.
func classifyBackendError(status int, msg string, header http.Header) error {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "nonce"):
		return errors.NewNonceError(msg, status)
	case status == http.StatusUnauthorized || status == http.StatusForbidden || containsAny(lower, authHints):
		return errors.NewAuthenticationError(errors.ErrCodeAuthRejected, msg, status, nil)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || containsAny(lower, validationHints):
		return errors.NewValidationError(msg, status)
	case status == http.StatusTooManyRequests:
		e := errors.NewUnknownBackendError(errors.ErrCodeRateLimited, msg, status, msg, nil)
		if secs, ok := retryAfter(header); ok {
			return e.WithMetadata("retry_after_seconds", secs)
		}
		return e
	default:
		return errors.NewUnknownBackendError(errors.ErrCodeUnknownBackend, msg, status, msg, nil)
	}
}

// classifyTransportError wraps an error returned before a complete response
// was read. wrote reports whether the full request reached the wire; only
// then can a mutating call have been applied server-side.
func classifyTransportError(ctx context.Context, err error, mutating, wrote bool) *errors.NetworkError {
	ambiguous := mutating && wrote && !neverSent(err)

	var netErr net.Error
	switch {
	case stderrors.Is(ctx.Err(), context.Canceled) || stderrors.Is(err, context.Canceled):
		return errors.NewNetworkError(errors.ErrCodeCanceled, "request canceled", ambiguous, err)
	case stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()):
		return errors.NewNetworkError(errors.ErrCodeTimeout, "request timed out", ambiguous, err)
	default:
		return errors.NewNetworkError(errors.ErrCodeNetwork, "request failed", ambiguous, err)
	}
}

// neverSent reports errors that happen before any request byte is written:
// DNS resolution, dialing and TLS verification.
func neverSent(err error) bool {
	var (
		dnsErr   *net.DNSError
		opErr    *net.OpError
		certErr  *tls.CertificateVerificationError
		unknownA x509.UnknownAuthorityError
		hostErr  x509.HostnameError
	)
	switch {
	case stderrors.As(err, &dnsErr):
		return true
	case stderrors.As(err, &opErr) && opErr.Op == "dial":
		return true
	case stderrors.As(err, &certErr), stderrors.As(err, &unknownA), stderrors.As(err, &hostErr):
		return true
	}
	return false
}

func retryAfter(header http.Header) (int, bool) {
	v := strings.TrimSpace(header.Get(api.HeaderRetryAfter))
	if v == "" {
		return 0, false
	}
	secs, err := goutil.ToInt(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return secs, true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
