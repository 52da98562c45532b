package model

import "errors"

// ErrMessageRequired is returned for a missing, non-string or empty message.
// Its text is the exact error body sent to clients.
var ErrMessageRequired = errors.New("message is required (string)")

// ChatRequestBody is the raw inbound body. Fields are untyped so that a wrong
// type is reported as a validation failure instead of a decode failure.
type ChatRequestBody struct {
	Message any `json:"message"`
	UserID  any `json:"user_id"`
}

// ChatRequest is a validated chat turn. UserID is empty when the caller did not send one.
type ChatRequest struct {
	Message string
	UserID  string
}

func (b *ChatRequestBody) Validate() (ChatRequest, error) {
	message, ok := b.Message.(string)
	if !ok || message == "" {
		return ChatRequest{}, ErrMessageRequired
	}

	userID, _ := b.UserID.(string)
	return ChatRequest{Message: message, UserID: userID}, nil
}
