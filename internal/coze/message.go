package coze

import (
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Message is one chat entry as sent to and returned by the backend.
type Message struct {
	Role        string `json:"role"`
	Type        string `json:"type,omitempty"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

// messageListPaths are the places a message list has been seen in poll and
// completion responses. The empty path is the document root.
var messageListPaths = []FieldPath{
	{"data", "messages"},
	{"messages"},
	{"data"},
	{"data", "data"},
	{},
}

func chatPayload(botID, userID, messagesField, text string) map[string]any {
	return map[string]any{
		"bot_id":            botID,
		"user_id":           userID,
		"stream":            false,
		"auto_save_history": true,
		messagesField: []Message{{
			Role:        openai.ChatMessageRoleUser,
			Type:        "question",
			Content:     text,
			ContentType: "text",
		}},
	}
}

// messagesIn returns the first message list found in doc, and whether any list was present.
func messagesIn(doc any) ([]Message, bool) {
	for _, p := range messageListPaths {
		v, ok := Lookup(doc, p)
		if !ok {
			continue
		}
		items, ok := v.([]any)
		if !ok {
			continue
		}
		msgs := make([]Message, 0, len(items))
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			content, _ := obj["content"].(string)
			role, _ := obj["role"].(string)
			typ, _ := obj["type"].(string)
			msgs = append(msgs, Message{Role: role, Type: typ, Content: content})
		}
		return msgs, true
	}
	return nil, false
}

// answerFrom picks the first assistant message with non-empty trimmed content.
// The content is returned verbatim.
func answerFrom(msgs []Message) (string, bool) {
	for _, m := range msgs {
		if m.Role == openai.ChatMessageRoleAssistant && strings.TrimSpace(m.Content) != "" {
			return m.Content, true
		}
	}
	return "", false
}
