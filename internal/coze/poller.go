package coze

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coze-relay/internal/config"
	"coze-relay/internal/utils"
	"coze-relay/pkg/logger"
)

// The backend names the same terminal states differently across versions.
var (
	successStatuses = map[string]bool{
		"completed": true,
		"succeeded": true,
		"success":   true,
		"done":      true,
	}
	failureStatuses = map[string]bool{
		"failed":          true,
		"canceled":        true,
		"cancelled":       true,
		"expired":         true,
		"error":           true,
		"requires_action": true,
	}
)

var (
	statusPaths    = []FieldPath{{"data", "status"}, {"status"}}
	errorMsgPaths  = []FieldPath{{"msg"}, {"message"}, {"error"}}
	lastErrCode    = FieldPath{"data", "last_error", "code"}
	lastErrMsgPath = FieldPath{"data", "last_error", "msg"}
)

// WaitFunc suspends for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

func waitTimer(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Poller struct {
	backend            Backend
	statusPath         string
	messagesPath       string
	handleInQuery      bool
	maxAttempts        int
	interval           time.Duration
	retryOnRemoteError bool
	rawLimit           int
	wait               WaitFunc
}

func NewPoller(backend Backend, cfg *config.Config) *Poller {
	return &Poller{
		backend:            backend,
		statusPath:         cfg.Coze.Poll.StatusPath,
		messagesPath:       cfg.Coze.Poll.MessagesPath,
		handleInQuery:      cfg.Coze.Poll.HandleIn != config.HandleInBody,
		maxAttempts:        cfg.Coze.Poll.MaxAttempts,
		interval:           cfg.Coze.Poll.Interval,
		retryOnRemoteError: cfg.Coze.Poll.RetryOnRemoteError,
		rawLimit:           cfg.Log.RawLimit,
		wait:               waitTimer,
	}
}

// WithWait replaces the inter-attempt wait. Used by tests to observe delays.
func (p *Poller) WithWait(wait WaitFunc) *Poller {
	p.wait = wait
	return p
}

func (p *Poller) call(path string, h TaskHandle) Call {
	params := map[string]string{"conversation_id": h.conversationID()}
	if h.ChatID != "" {
		params["chat_id"] = h.ChatID
	}

	if p.handleInQuery {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		return Call{Method: http.MethodGet, Path: path, Query: q}
	}
	return Call{Method: http.MethodPost, Path: path, Body: params}
}

// pollReply is what one poll response says about the turn.
type pollReply struct {
	code       int64
	msg        string
	status     string
	messages   []Message
	hasList    bool
	lastErrNum int64
	lastErrMsg string
}

func parsePollReply(doc any) pollReply {
	r := pollReply{
		msg:    firstString(doc, errorMsgPaths...),
		status: strings.ToLower(firstString(doc, statusPaths...)),
	}
	r.code, _ = codeAt(doc, FieldPath{"code"})
	r.messages, r.hasList = messagesIn(doc)
	r.lastErrNum, _ = codeAt(doc, lastErrCode)
	r.lastErrMsg = StringAt(doc, lastErrMsgPath)
	return r
}

// Poll queries the backend until the turn reaches a terminal state or the
// attempt budget runs out. At most maxAttempts calls are made, with a constant
// wait between them. A deadline on ctx ends the loop as TimedOut; cancellation
// is returned as ctx.Err().
func (p *Poller) Poll(ctx context.Context, h TaskHandle) (PollResult, error) {
	log := logger.FromContext(ctx).WithField("conversation_id", h.conversationID())
	path := p.statusPath

	attempts := 0
	for attempts < p.maxAttempts {
		if attempts > 0 {
			if err := p.wait(ctx, p.interval); err != nil {
				return p.stopped(ctx, attempts, err)
			}
		}

		attempts++
		resp, err := p.backend.Call(ctx, p.call(path, h))
		if err != nil {
			if ctx.Err() != nil {
				return p.stopped(ctx, attempts, ctx.Err())
			}
			return PollResult{}, err
		}

		reply := parsePollReply(resp.Doc)
		log.Infof("[COZE POLL %d/%d] %s status=%q code=%d %s",
			attempts, p.maxAttempts, path, reply.status, reply.code, utils.Truncate(string(resp.Raw), p.rawLimit))

		if reply.code != 0 {
			if p.retryOnRemoteError {
				log.Warnf("[COZE POLL] code=%d msg=%q, retrying", reply.code, reply.msg)
				continue
			}
			return RemoteError(reply.code, reply.msg, attempts), nil
		}

		if failureStatuses[reply.status] {
			msg := reply.lastErrMsg
			if msg == "" {
				msg = "status=" + reply.status
			}
			return RemoteError(reply.lastErrNum, msg, attempts), nil
		}

		if reply.status == "" || successStatuses[reply.status] {
			if text, ok := answerFrom(reply.messages); ok {
				return Answer(text, attempts), nil
			}
		}

		// 状态已完成但没有消息列表时，改为拉取消息列表接口
		if successStatuses[reply.status] && !reply.hasList && p.messagesPath != "" && path != p.messagesPath {
			log.Infof("[COZE POLL] status %q without messages, switching to %s", reply.status, p.messagesPath)
			path = p.messagesPath
		}
	}

	log.Warnf("[COZE POLL] no answer after %d attempts", attempts)
	return TimedOut(attempts), nil
}

func (p *Poller) stopped(ctx context.Context, attempts int, err error) (PollResult, error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.FromContext(ctx).Warnf("[COZE POLL] deadline reached after %d attempts", attempts)
		return TimedOut(attempts), nil
	}
	return PollResult{}, err
}
