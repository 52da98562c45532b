package utils

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"coze-relay/pkg/logger"
)

const debugBodyLimit = 2000

var sensitiveHeaders = []string{
	"authorization",
	"x-api-key",
	"x-auth-token",
	"cookie",
}

// DebugTransport logs outbound requests and response status codes with secrets redacted.
type DebugTransport struct {
	base http.RoundTripper
}

func NewDebugTransport(base http.RoundTripper) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{base: base}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	entry := logger.FromContext(req.Context())
	entry.Debugf("[Coze Debug] %s %s headers=%s", req.Method, req.URL.String(), RedactHeaders(req.Header))

	if req.Body != nil && req.Body != http.NoBody {
		bodyBytes, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			entry.Errorf("[Coze Debug] read request body: %v", err)
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		entry.Debugf("[Coze Debug] body (%d bytes): %s", len(bodyBytes), Truncate(string(bodyBytes), debugBodyLimit))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		entry.Errorf("[Coze Debug] request failed: %v", err)
		return nil, err
	}
	entry.Debugf("[Coze Debug] %s %s -> %d", req.Method, req.URL.Path, resp.StatusCode)
	return resp, nil
}

// RedactHeaders renders headers as "Name: value; ..." with credential values replaced.
func RedactHeaders(h http.Header) string {
	parts := make([]string, 0, len(h))
	for name, values := range h {
		if isSensitiveHeader(name) {
			parts = append(parts, name+": [REDACTED]")
			continue
		}
		parts = append(parts, name+": "+strings.Join(values, ", "))
	}
	return strings.Join(parts, "; ")
}

func isSensitiveHeader(name string) bool {
	for _, sensitive := range sensitiveHeaders {
		if strings.EqualFold(name, sensitive) {
			return true
		}
	}
	return false
}
