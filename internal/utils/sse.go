package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const sseDone = "[DONE]"

// SSEWriter frames server-sent events on an http.ResponseWriter, flushing after each event.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	f, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: f}
}

// Event writes one event. Multi-line data is split into several data: lines.
func (s *SSEWriter) Event(event, data string) error {
	var b strings.Builder
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := s.w.Write([]byte(b.String())); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *SSEWriter) JSON(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Event(event, string(data))
}

func (s *SSEWriter) Done() error {
	return s.Event("", sseDone)
}
