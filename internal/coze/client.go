package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Call describes one outbound request relative to the API host.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response is a decoded backend reply. Doc is the body decoded with UseNumber.
type Response struct {
	StatusCode int
	Raw        []byte
	Doc        any
}

// Backend is the remote chat API as seen by the initiator, poller and completer.
type Backend interface {
	Call(ctx context.Context, call Call) (*Response, error)
}

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL *url.URL
	token   string
	http    HTTPDoer
}

func NewClient(baseURL, token string, httpClient HTTPDoer) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid coze api host %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid coze api host %q: scheme and host required", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, token: token, http: httpClient}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) Call(ctx context.Context, call Call) (*Response, error) {
	var body io.Reader
	if call.Body != nil {
		data, err := json.Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := call.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(call.Path, call.Query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if call.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, call.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrTransport, call.Path, err)
	}

	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s returned status %d with non-JSON body: %w", ErrTransport, call.Path, resp.StatusCode, err)
	}

	// 非 2xx 且未带业务 code 时，用 HTTP 状态码作为错误码
	if resp.StatusCode/100 != 2 {
		if obj, ok := doc.(map[string]any); ok {
			if _, has := obj["code"]; !has {
				obj["code"] = json.Number(fmt.Sprint(resp.StatusCode))
			}
		} else {
			doc = map[string]any{
				"code": json.Number(fmt.Sprint(resp.StatusCode)),
				"data": doc,
			}
		}
	}

	return &Response{StatusCode: resp.StatusCode, Raw: raw, Doc: doc}, nil
}

func decodeDocument(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
