package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"coze-relay/internal/config"
	"coze-relay/internal/coze"
	"coze-relay/internal/coze/cozetest"
	"coze-relay/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Call(ctx context.Context, call coze.Call) (*coze.Response, error) {
	args := m.Called(ctx, call)
	resp, _ := args.Get(0).(*coze.Response)
	return resp, args.Error(1)
}

func reply(t *testing.T, raw string) *coze.Response {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var doc any
	require.NoError(t, dec.Decode(&doc))
	return &coze.Response{StatusCode: 200, Raw: []byte(raw), Doc: doc}
}

func onPath(path string) any {
	return mock.MatchedBy(func(c coze.Call) bool { return c.Path == path })
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Coze.BotID = "bot_1"
	cfg.Coze.Token = "tok_secret"
	cfg.Coze.Poll.Interval = time.Millisecond
	return cfg
}

func TestChatScenarioAnswerOnSecondPoll(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Call", mock.Anything, onPath("/v3/chat")).
		Return(reply(t, `{"data":{"conversation_id":"abc123"}}`), nil).Once()
	backend.On("Call", mock.Anything, onPath("/v3/chat/retrieve")).
		Return(reply(t, `{"code":0,"data":[]}`), nil).Once()
	backend.On("Call", mock.Anything, onPath("/v3/chat/retrieve")).
		Return(reply(t, `{"code":0,"data":[{"role":"assistant","content":"hi there"}]}`), nil).Once()

	svc := NewChatService(testConfig(), backend)
	answer, err := svc.Chat(context.Background(), model.ChatRequest{Message: "hello"})

	require.NoError(t, err)
	assert.Equal(t, "hi there", answer)
	backend.AssertNumberOfCalls(t, "Call", 3)
	backend.AssertExpectations(t)
}

func TestChatScenarioNoIdentifier(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Call", mock.Anything, onPath("/v3/chat")).
		Return(reply(t, `{"code":0,"msg":"","data":{}}`), nil).Once()

	svc := NewChatService(testConfig(), backend)
	answer, err := svc.Chat(context.Background(), model.ChatRequest{Message: "hi"})

	require.NoError(t, err)
	assert.Equal(t, PlaceholderHandleMissing, answer)
	backend.AssertNumberOfCalls(t, "Call", 1)
	backend.AssertNotCalled(t, "Call", mock.Anything, onPath("/v3/chat/retrieve"))
}

func TestChatTimeoutPlaceholder(t *testing.T) {
	cfg := testConfig()
	cfg.Coze.Poll.MaxAttempts = 3

	backend := new(MockBackend)
	backend.On("Call", mock.Anything, onPath("/v3/chat")).
		Return(reply(t, `{"data":{"conversation_id":"c","id":"x"}}`), nil).Once()
	backend.On("Call", mock.Anything, onPath("/v3/chat/retrieve")).
		Return(reply(t, `{"data":{"status":"in_progress"}}`), nil)

	answer, err := NewChatService(cfg, backend).Chat(context.Background(), model.ChatRequest{Message: "hi"})

	require.NoError(t, err)
	assert.Equal(t, PlaceholderTimedOut, answer)
	backend.AssertNumberOfCalls(t, "Call", 1+3)
}

func TestChatRemoteErrorPlaceholder(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Call", mock.Anything, onPath("/v3/chat")).
		Return(reply(t, `{"data":{"conversation_id":"c"}}`), nil).Once()
	backend.On("Call", mock.Anything, onPath("/v3/chat/retrieve")).
		Return(reply(t, `{"code":4015,"msg":"bot not published"}`), nil).Once()

	answer, err := NewChatService(testConfig(), backend).Chat(context.Background(), model.ChatRequest{Message: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "（Coze 返回错误，code=4015 msg=bot not published）", answer)
}

func TestChatTransportFailureIsError(t *testing.T) {
	transportErr := fmt.Errorf("%w: dial tcp: connection refused", coze.ErrTransport)
	backend := new(MockBackend)
	backend.On("Call", mock.Anything, onPath("/v3/chat")).Return(nil, transportErr).Once()

	_, err := NewChatService(testConfig(), backend).Chat(context.Background(), model.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, coze.ErrTransport)
}

func TestChatTransportFailureDuringPoll(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Call", mock.Anything, onPath("/v3/chat")).
		Return(reply(t, `{"data":{"conversation_id":"c"}}`), nil).Once()
	backend.On("Call", mock.Anything, onPath("/v3/chat/retrieve")).
		Return(nil, errors.New("connection reset")).Once()

	_, err := NewChatService(testConfig(), backend).Chat(context.Background(), model.ChatRequest{Message: "hi"})
	assert.EqualError(t, err, "connection reset")
}

func TestChatDeadlineBecomesTimeout(t *testing.T) {
	srv := cozetest.NewServer(t).
		On("/v3/chat", `{"data":{"conversation_id":"c"}}`).
		On("/v3/chat/retrieve", `{"data":{"status":"in_progress"}}`)

	cfg := testConfig()
	cfg.Coze.Poll.Interval = time.Hour
	cfg.Coze.Poll.Deadline = 50 * time.Millisecond

	client, err := coze.NewClient(srv.URL, "tok", srv.Client())
	require.NoError(t, err)

	start := time.Now()
	answer, err := NewChatService(cfg, client).Chat(context.Background(), model.ChatRequest{Message: "hi"})

	require.NoError(t, err)
	assert.Equal(t, PlaceholderTimedOut, answer)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestChatCancelledByClient(t *testing.T) {
	srv := cozetest.NewServer(t).
		On("/v3/chat", `{"data":{"conversation_id":"c"}}`).
		On("/v3/chat/retrieve", `{"data":{"status":"in_progress"}}`)

	cfg := testConfig()
	cfg.Coze.Poll.Interval = time.Hour
	client, err := coze.NewClient(srv.URL, "tok", srv.Client())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err = NewChatService(cfg, client).Chat(ctx, model.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, srv.Count("/v3/chat/retrieve"))
}

func TestChatIsIdempotent(t *testing.T) {
	run := func() string {
		srv := cozetest.NewServer(t).
			On("/v3/chat", `{"data":{"conversation_id":"abc123"}}`).
			On("/v3/chat/retrieve", `{"data":[]}`, `{"data":[{"role":"assistant","content":"same"}]}`)
		client, err := coze.NewClient(srv.URL, "tok", srv.Client())
		require.NoError(t, err)

		answer, err := NewChatService(testConfig(), client).Chat(context.Background(), model.ChatRequest{Message: "hello"})
		require.NoError(t, err)
		return answer
	}

	assert.Equal(t, run(), run())
}

func TestChatCompletionMode(t *testing.T) {
	cfg := testConfig()
	cfg.Coze.Mode = config.ModeCompletion

	backend := new(MockBackend)
	backend.On("Call", mock.Anything, onPath("/v3/chat/completions")).
		Return(reply(t, `{"code":4200,"msg":"not found"}`), nil).Once()

	answer, err := NewChatService(cfg, backend).Chat(context.Background(), model.ChatRequest{Message: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "（Coze 返回了但是没有标准回答，code=4200 status=NA）", answer)
	backend.AssertNumberOfCalls(t, "Call", 1)
}

func TestResolveAnswer(t *testing.T) {
	cases := []struct {
		result coze.PollResult
		want   string
	}{
		{coze.Answer("verbatim  text\n", 1), "verbatim  text\n"},
		{coze.RemoteError(700, "oops", 2), "（Coze 返回错误，code=700 msg=oops）"},
		{coze.TimedOut(20), PlaceholderTimedOut},
		{coze.HandleMissing(), PlaceholderHandleMissing},
		{coze.Unrecognized("NA", "NA"), "（Coze 返回了但是没有标准回答，code=NA status=NA）"},
	}

	for _, tc := range cases {
		t.Run(tc.result.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveAnswer(tc.result))
		})
	}
}
