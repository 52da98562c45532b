package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coze-relay/internal/config"
	"coze-relay/internal/coze"
	"coze-relay/internal/model"
	"coze-relay/pkg/logger"
)

// Placeholder answers returned with HTTP 200 when no real answer was obtained.
const (
	PlaceholderHandleMissing = "（无法获取会话ID）"
	PlaceholderTimedOut      = "（等待回复超时，请稍后再试）"
	placeholderRemoteError   = "（Coze 返回错误，code=%s msg=%s）"
	placeholderUnrecognized  = "（Coze 返回了但是没有标准回答，code=%s status=%s）"
)

// ChatService runs one chat turn against the backend. It holds no per-request
// state, so a single instance serves all requests concurrently.
type ChatService struct {
	mode      string
	deadline  time.Duration
	initiator *coze.Initiator
	poller    *coze.Poller
	completer *coze.Completer
}

func NewChatService(cfg *config.Config, backend coze.Backend) *ChatService {
	return &ChatService{
		mode:      cfg.Coze.Mode,
		deadline:  cfg.Coze.Poll.Deadline,
		initiator: coze.NewInitiator(backend, cfg),
		poller:    coze.NewPoller(backend, cfg),
		completer: coze.NewCompleter(backend, cfg),
	}
}

// Poller exposes the poller so callers can tune it, e.g. replace the wait in tests.
func (s *ChatService) Poller() *coze.Poller {
	return s.poller
}

// Resolve runs the turn and returns its outcome. Only transport failures and
// cancellation are errors; every backend-reported condition is a PollResult.
func (s *ChatService) Resolve(ctx context.Context, req model.ChatRequest) (coze.PollResult, error) {
	if s.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}

	if s.mode == config.ModeCompletion {
		result, err := s.completer.Complete(ctx, req)
		return deadlineAsTimeout(ctx, result, err)
	}

	handle, err := s.initiator.Start(ctx, req)
	if err != nil {
		if errors.Is(err, coze.ErrHandleMissing) {
			return coze.HandleMissing(), nil
		}
		return deadlineAsTimeout(ctx, coze.PollResult{}, err)
	}

	return s.poller.Poll(ctx, handle)
}

// deadlineAsTimeout turns a failure caused by our own deadline into TimedOut.
func deadlineAsTimeout(ctx context.Context, result coze.PollResult, err error) (coze.PollResult, error) {
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return coze.TimedOut(result.Attempts), nil
	}
	return result, err
}

// Chat returns the text to send back to the client.
func (s *ChatService) Chat(ctx context.Context, req model.ChatRequest) (string, error) {
	result, err := s.Resolve(ctx, req)
	if err != nil {
		return "", err
	}

	logger.FromContext(ctx).WithField("result", result.Kind.String()).
		Infof("[CHAT] finished after %d poll attempts", result.Attempts)
	return ResolveAnswer(result), nil
}

func ResolveAnswer(result coze.PollResult) string {
	switch result.Kind {
	case coze.ResultAnswer:
		return result.Text
	case coze.ResultRemoteError:
		return fmt.Sprintf(placeholderRemoteError, result.Code, result.Message)
	case coze.ResultHandleMissing:
		return PlaceholderHandleMissing
	case coze.ResultUnrecognized:
		return fmt.Sprintf(placeholderUnrecognized, result.Code, result.Status)
	default:
		return PlaceholderTimedOut
	}
}
