package hydratest

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

// recordMiddleware stores every request before it is handled.
func (s *Server) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		rec := Request{
			Method:  r.Method,
			Path:    r.URL.EscapedPath(),
			Referer: r.Header.Get("Referer"),
			Header:  r.Header.Clone(),
			Body:    body,
		}
		if c, err := r.Cookie(SessionCookie); err == nil {
			rec.Cookie = c.Value
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// contentTypeMiddleware ensures JSON content type for state-changing requests
func contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			if r.Header.Get("Content-Type") != "application/json" {
				writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// refererMiddleware rejects state-changing requests whose Referer does not
// point at this server, as Hydra's CSRF check does.
func (s *Server) refererMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && !strings.HasPrefix(r.Header.Get("Referer"), s.URL) {
			writeError(w, http.StatusForbidden, "POST requests should come from '"+s.URL+"'.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionMiddleware requires a session cookie issued by the login endpoint.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err != nil {
			writeError(w, http.StatusForbidden, "This page can only be accessed by authenticated users.")
			return
		}

		s.mu.Lock()
		_, ok := s.sessions[c.Value]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusForbidden, "This page can only be accessed by authenticated users.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
