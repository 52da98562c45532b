package coze

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"coze-relay/internal/config"
	"coze-relay/internal/model"
	"coze-relay/internal/utils"
	"coze-relay/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
)

// Completer sends the turn to the synchronous completion endpoint and reads the
// answer from the same response, without polling.
type Completer struct {
	backend       Backend
	path          string
	botID         string
	defaultUserID string
	rawLimit      int
}

func NewCompleter(backend Backend, cfg *config.Config) *Completer {
	return &Completer{
		backend:       backend,
		path:          cfg.Coze.CompletionPath,
		botID:         cfg.Coze.BotID,
		defaultUserID: cfg.Coze.DefaultUserID,
		rawLimit:      cfg.Log.RawLimit,
	}
}

func (c *Completer) Complete(ctx context.Context, req model.ChatRequest) (PollResult, error) {
	log := logger.FromContext(ctx)

	userID := req.UserID
	if userID == "" {
		userID = c.defaultUserID
	}

	log.WithField("bot_id", c.botID).WithField("user_id", userID).
		Infof("[REQ] send to Coze %s: %s", c.path, utils.Truncate(req.Message, 30))

	resp, err := c.backend.Call(ctx, Call{
		Method: http.MethodPost,
		Path:   c.path,
		Body:   chatPayload(c.botID, userID, "messages", req.Message),
	})
	if err != nil {
		return PollResult{}, err
	}
	log.Infof("[COZE RAW COMPLETION] %s", utils.Truncate(string(resp.Raw), c.rawLimit))

	if text, ok := choiceContent(resp.Raw); ok {
		return Answer(text, 0), nil
	}
	if msgs, ok := messagesIn(resp.Doc); ok {
		if text, ok := answerFrom(msgs); ok {
			return Answer(text, 0), nil
		}
	}

	code := StringAt(resp.Doc, FieldPath{"code"})
	if code == "" {
		code = "NA"
	}
	status := firstString(resp.Doc, statusPaths...)
	if status == "" {
		status = "NA"
	}
	return Unrecognized(code, status), nil
}

// choiceContent reads an OpenAI-style choices[0].message.content.
func choiceContent(raw []byte) (string, bool) {
	var completion openai.ChatCompletionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", false
	}
	if len(completion.Choices) == 0 {
		return "", false
	}
	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", false
	}
	return content, true
}
