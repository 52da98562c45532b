package coze

import (
	"testing"
	"time"

	"coze-relay/internal/config"
	"coze-relay/internal/coze/cozetest"

	"github.com/stretchr/testify/require"
)

const (
	statusPath   = "/v3/chat/retrieve"
	messagesPath = "/v3/chat/message/list"
	chatPath     = "/v3/chat"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Coze.BotID = "bot_1"
	cfg.Coze.Token = "tok_secret"
	cfg.Coze.Poll.Interval = time.Millisecond
	cfg.Coze.Poll.MaxAttempts = 5
	return cfg
}

func newTestClient(t *testing.T, srv *cozetest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, "tok_secret", srv.Client())
	require.NoError(t, err)
	return c
}

func mustDecode(t *testing.T, raw string) any {
	t.Helper()
	doc, err := decodeDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}
