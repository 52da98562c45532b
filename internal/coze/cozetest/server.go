// Package cozetest provides a scripted stand-in for the Coze API.
package cozetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Request is one call received by the Server.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   map[string]any
}

type reply struct {
	status int
	body   string
}

// Server answers each path with a queue of scripted replies. The last reply of
// a queue is repeated once the others are used up. Unknown paths get a 404.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	replies  map[string][]reply
	requests []Request
}

func NewServer(t testing.TB) *Server {
	s := &Server{replies: make(map[string][]reply)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// On queues 200 replies for path.
func (s *Server) On(path string, bodies ...string) *Server {
	for _, b := range bodies {
		s.OnStatus(path, http.StatusOK, b)
	}
	return s
}

func (s *Server) OnStatus(path string, status int, body string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[path] = append(s.replies[path], reply{status: status, body: body})
	return s
}

// Requests returns the calls received for path, in order.
func (s *Server) Requests(path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) Count(path string) int {
	return len(s.Requests(path))
}

// Total is the number of calls received on any path.
func (s *Server) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	rec := Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	}
	if data, err := io.ReadAll(r.Body); err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	queue := s.replies[r.URL.Path]
	var rep reply
	if len(queue) == 0 {
		rep = reply{status: http.StatusNotFound, body: `{"code":404,"msg":"no such route"}`}
	} else {
		rep = queue[0]
		if len(queue) > 1 {
			s.replies[r.URL.Path] = queue[1:]
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}
