package service

import (
	"context"
	"errors"

	"coze-relay/internal/model"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

var (
	ErrNoUserMessage    = errors.New("no user message in input")
	ErrToolsUnsupported = errors.New("coze bot runs its plugins server-side; client tools are not supported")
)

type chatModelOptions struct {
	UserID string
}

// WithUserID sets the backend user id for one Generate or Stream call.
func WithUserID(userID string) einoModel.Option {
	return einoModel.WrapImplSpecificOptFn(func(o *chatModelOptions) {
		o.UserID = userID
	})
}

// cozeChatModel exposes the relay as an eino ChatModel. Only the latest user
// message is sent; history is kept by the bot, not by the caller.
type cozeChatModel struct {
	svc *ChatService
}

func NewChatModel(svc *ChatService) einoModel.ChatModel {
	return &cozeChatModel{svc: svc}
}

func (m *cozeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	var text string
	for i := len(input) - 1; i >= 0; i-- {
		if input[i] != nil && input[i].Role == schema.User && input[i].Content != "" {
			text = input[i].Content
			break
		}
	}
	if text == "" {
		return nil, ErrNoUserMessage
	}

	options := einoModel.GetImplSpecificOptions(&chatModelOptions{}, opts...)

	answer, err := m.svc.Chat(ctx, model.ChatRequest{Message: text, UserID: options.UserID})
	if err != nil {
		return nil, err
	}

	return schema.AssistantMessage(answer, nil), nil
}

// Stream delivers the whole answer as a single chunk; the backend is always
// called in non-streaming mode.
func (m *cozeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}

	reader, writer := schema.Pipe[*schema.Message](1)
	go func() {
		defer writer.Close()
		writer.Send(msg, nil)
	}()

	return reader, nil
}

func (m *cozeChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) == 0 {
		return nil
	}
	return ErrToolsUnsupported
}
