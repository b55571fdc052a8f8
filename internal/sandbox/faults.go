package sandbox

import (
	"bytes"
	"net/http"
	"strings"
	"time"
)

// faults holds injected misbehaviour. All fields are guarded by Server.mu.
type faults struct {
	nonceRejections int
	delays          map[string]time.Duration
	responses       map[string]cannedResponse
	drops           map[string]bool
}

type cannedResponse struct {
	status      int
	contentType string
	body        string
}

func newFaults() faults {
	return faults{
		delays:    make(map[string]time.Duration),
		responses: make(map[string]cannedResponse),
		drops:     make(map[string]bool),
	}
}

func (f *faults) takeNonceRejection() bool {
	if f.nonceRejections > 0 {
		f.nonceRejections--
		return true
	}
	return false
}

// RejectNextNonces makes the next n signed requests fail with a nonce error
// regardless of their nonce.
func (s *Server) RejectNextNonces(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults.nonceRejections = n
}

// SetDelay holds the response for route by d. The request is fully
// processed before the pause, so a client that times out has still had its
// call applied.
func (s *Server) SetDelay(route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults.delays[route] = d
}

// SetResponse answers every request for route with a fixed status and body
// without running the handler.
func (s *Server) SetResponse(route string, status int, contentType, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults.responses[route] = cannedResponse{status: status, contentType: contentType, body: body}
}

// DropConnection processes requests for route and then closes the
// connection without sending a response.
func (s *Server) DropConnection(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults.drops[route] = true
}

// ClearFaults removes every injected fault.
func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = newFaults()
}

// routeOf strips /{prefix}/{version}/ from a request path.
func (s *Server) routeOf(path string) string {
	rest := strings.TrimPrefix(path, "/"+strings.Trim(s.cfg.APIPrefix, "/")+"/")
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[i+1:]
	}
	return ""
}

func (s *Server) faultMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := s.routeOf(r.URL.Path)

		s.mu.Lock()
		canned, hasCanned := s.faults.responses[route]
		delay := s.faults.delays[route]
		drop := s.faults.drops[route]
		s.mu.Unlock()

		if hasCanned {
			if canned.contentType != "" {
				w.Header().Set("Content-Type", canned.contentType)
			}
			w.WriteHeader(canned.status)
			_, _ = w.Write([]byte(canned.body))
			return
		}
		if delay == 0 && !drop {
			next.ServeHTTP(w, r)
			return
		}

		buf := &bufferedWriter{header: make(http.Header), status: http.StatusOK}
		next.ServeHTTP(buf, r)

		if drop {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			panic(http.ErrAbortHandler)
		}

		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		for k, vs := range buf.header {
			w.Header()[k] = vs
		}
		w.WriteHeader(buf.status)
		_, _ = w.Write(buf.body.Bytes())
	})
}

// bufferedWriter holds a response until the fault middleware releases it.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header         { return b.header }
func (b *bufferedWriter) WriteHeader(code int)        { b.status = code }
func (b *bufferedWriter) Write(p []byte) (int, error) { return b.body.Write(p) }
