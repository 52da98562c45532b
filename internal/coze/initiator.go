package coze

import (
	"context"
	"fmt"
	"net/http"

	"coze-relay/internal/config"
	"coze-relay/internal/model"
	"coze-relay/internal/utils"
	"coze-relay/pkg/logger"
)

// TaskHandle correlates a create call with its poll calls. ID is the first
// non-empty candidate; ConversationID and ChatID are filled when the response
// carries them under their own names.
type TaskHandle struct {
	ID             string
	ConversationID string
	ChatID         string
	Source         string
}

func (h TaskHandle) conversationID() string {
	if h.ConversationID != "" {
		return h.ConversationID
	}
	return h.ID
}

var (
	conversationIDPaths = []FieldPath{{"data", "conversation_id"}, {"conversation_id"}}
	chatIDPaths         = []FieldPath{{"data", "id"}, {"data", "chat_id"}, {"chat_id"}}
)

type Initiator struct {
	backend       Backend
	path          string
	botID         string
	defaultUserID string
	messagesField string
	handlePaths   []FieldPath
	rawLimit      int
}

func NewInitiator(backend Backend, cfg *config.Config) *Initiator {
	return &Initiator{
		backend:       backend,
		path:          cfg.Coze.ChatPath,
		botID:         cfg.Coze.BotID,
		defaultUserID: cfg.Coze.DefaultUserID,
		messagesField: cfg.Coze.MessagesField,
		handlePaths:   ParseFieldPaths(cfg.Coze.HandlePaths),
		rawLimit:      cfg.Log.RawLimit,
	}
}

// Start submits the turn and extracts its handle. ErrHandleMissing is returned
// when the call succeeded but no candidate path held an id.
func (i *Initiator) Start(ctx context.Context, req model.ChatRequest) (TaskHandle, error) {
	log := logger.FromContext(ctx)

	userID := req.UserID
	if userID == "" {
		userID = i.defaultUserID
	}

	log.WithField("bot_id", i.botID).WithField("user_id", userID).
		Infof("[REQ] send to Coze %s: %s", i.path, utils.Truncate(req.Message, 30))

	resp, err := i.backend.Call(ctx, Call{
		Method: http.MethodPost,
		Path:   i.path,
		Body:   chatPayload(i.botID, userID, i.messagesField, req.Message),
	})
	if err != nil {
		return TaskHandle{}, err
	}
	log.Infof("[COZE RAW CREATE] status=%d %s", resp.StatusCode, utils.Truncate(string(resp.Raw), i.rawLimit))

	id, from, candidates := FirstNonEmpty(resp.Doc, i.handlePaths)
	log.WithField("candidates", candidates).Debugf("[COZE IDS] picked %q from %s", id, from)

	if id == "" {
		code, _ := codeAt(resp.Doc, FieldPath{"code"})
		log.WithField("candidates", candidates).
			Warnf("[COZE IDS] no conversation id, code=%d msg=%q", code, firstString(resp.Doc, FieldPath{"msg"}, FieldPath{"message"}))
		return TaskHandle{}, fmt.Errorf("%w (probed %d paths)", ErrHandleMissing, len(candidates))
	}

	return TaskHandle{
		ID:             id,
		ConversationID: firstString(resp.Doc, conversationIDPaths...),
		ChatID:         firstString(resp.Doc, chatIDPaths...),
		Source:         from.String(),
	}, nil
}
