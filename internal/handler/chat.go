package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"coze-relay/internal/model"
	"coze-relay/internal/service"
	"coze-relay/internal/utils"
	"coze-relay/pkg/logger"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
)

const errCozeFailed = "Coze API failed"

type ChatHandler struct {
	chatService *service.ChatService
	chatModel   einoModel.ChatModel
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		chatModel:   service.NewChatModel(chatService),
	}
}

func (h *ChatHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Status: "ok",
		Time:   time.Now().UnixMilli(),
	})
}

// bindChat decodes and validates the body, writing the 400 response itself on failure.
func bindChat(c *gin.Context) (model.ChatRequest, bool) {
	var body model.ChatRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		logger.FromContext(c.Request.Context()).Warnf("请求解析失败: %v", err)
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: model.ErrMessageRequired.Error()})
		return model.ChatRequest{}, false
	}

	req, err := body.Validate()
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return model.ChatRequest{}, false
	}
	return req, true
}

func (h *ChatHandler) Chat(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	answer, err := h.chatService.Chat(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// 客户端已断开，无需再写响应
			logger.FromContext(ctx).Warnf("client went away: %v", err)
			c.Abort()
			return
		}
		logger.FromContext(ctx).Errorf("Coze proxy error: %v", err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: errCozeFailed})
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{Answer: answer})
}

// StreamChat answers over server-sent events through the eino chat model.
func (h *ChatHandler) StreamChat(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	reader, err := h.chatModel.Stream(ctx,
		[]*schema.Message{schema.UserMessage(req.Message)},
		service.WithUserID(req.UserID))

	sse := utils.NewSSEWriter(c.Writer)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warnf("client went away: %v", err)
			return
		}
		log.Errorf("Coze proxy error: %v", err)
		if werr := sse.JSON("error", model.ErrorResponse{Error: errCozeFailed}); werr != nil {
			log.Warnf("Failed to write SSE: %v", werr)
		}
		sse.Done()
		return
	}
	defer reader.Close()

	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Errorf("stream receive failed: %v", err)
			sse.JSON("error", model.ErrorResponse{Error: errCozeFailed})
			break
		}
		if err := sse.JSON("message", model.ChatResponse{Answer: chunk.Content}); err != nil {
			log.Warnf("Failed to write SSE: %v", err)
			return
		}
	}
	sse.Done()
}
