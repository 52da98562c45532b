package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"coze-relay/internal/coze"
	"coze-relay/internal/coze/cozetest"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScriptedService(t *testing.T) (*ChatService, *cozetest.Server) {
	t.Helper()
	srv := cozetest.NewServer(t).
		On("/v3/chat", `{"data":{"conversation_id":"abc123"}}`).
		On("/v3/chat/retrieve", `{"data":[{"role":"assistant","content":"hi there"}]}`)
	client, err := coze.NewClient(srv.URL, "tok", srv.Client())
	require.NoError(t, err)
	return NewChatService(testConfig(), client), srv
}

func TestChatModelGenerateSendsLatestUserMessage(t *testing.T) {
	svc, srv := newScriptedService(t)
	chatModel := NewChatModel(svc)

	msg, err := chatModel.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("you are helpful"),
		schema.UserMessage("first question"),
		schema.AssistantMessage("first answer", nil),
		schema.UserMessage("hello"),
	}, WithUserID("openid_42"))

	require.NoError(t, err)
	assert.Equal(t, schema.Assistant, msg.Role)
	assert.Equal(t, "hi there", msg.Content)

	body := srv.Requests("/v3/chat")[0].Body
	assert.Equal(t, "openid_42", body["user_id"])
	sent := body["additional_messages"].([]any)[0].(map[string]any)
	assert.Equal(t, "hello", sent["content"])
}

func TestChatModelGenerateDefaultsUserID(t *testing.T) {
	svc, srv := newScriptedService(t)

	_, err := NewChatModel(svc).Generate(context.Background(), []*schema.Message{schema.UserMessage("hello")})
	require.NoError(t, err)
	assert.Equal(t, "wx_user_001", srv.Requests("/v3/chat")[0].Body["user_id"])
}

func TestChatModelGenerateWithoutUserMessage(t *testing.T) {
	svc, srv := newScriptedService(t)

	_, err := NewChatModel(svc).Generate(context.Background(), []*schema.Message{schema.SystemMessage("sys")})
	assert.ErrorIs(t, err, ErrNoUserMessage)
	assert.Equal(t, 0, srv.Total())
}

func TestChatModelStreamSingleChunk(t *testing.T) {
	svc, _ := newScriptedService(t)

	reader, err := NewChatModel(svc).Stream(context.Background(), []*schema.Message{schema.UserMessage("hello")})
	require.NoError(t, err)
	defer reader.Close()

	chunk, err := reader.Recv()
	require.NoError(t, err)
	assert.Equal(t, "hi there", chunk.Content)

	_, err = reader.Recv()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestChatModelBindTools(t *testing.T) {
	svc, _ := newScriptedService(t)
	chatModel := NewChatModel(svc)

	assert.NoError(t, chatModel.BindTools(nil))
	assert.ErrorIs(t, chatModel.BindTools([]*schema.ToolInfo{{Name: "weather"}}), ErrToolsUnsupported)
}
