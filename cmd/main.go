package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"coze-relay/internal/config"
	"coze-relay/internal/coze"
	"coze-relay/internal/handler"
	"coze-relay/internal/service"
	"coze-relay/internal/utils"
	"coze-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	logger.Infof("[BOOT] COZE_API_HOST = %s", cfg.Coze.BaseURL())
	logger.Infof("[BOOT] COZE_BOT_ID = %s", cfg.Coze.BotID)
	logger.Infof("[BOOT] COZE_TOKEN first10 = %s", config.MaskToken(cfg.Coze.Token))
	logger.Infof("[BOOT] mode=%s max_attempts=%d interval=%s retry_on_remote_error=%v",
		cfg.Coze.Mode, cfg.Coze.Poll.MaxAttempts, cfg.Coze.Poll.Interval, cfg.Coze.Poll.RetryOnRemoteError)
	if cfg.Coze.BotID == "" || cfg.Coze.Token == "" {
		logger.Warnf("[BOOT] COZE_BOT_ID or COZE_TOKEN is empty, backend calls will be rejected")
	}

	client, err := coze.NewClient(cfg.Coze.BaseURL(), cfg.Coze.Token,
		utils.NewHTTPClient(cfg.Coze.Timeout, cfg.Coze.DebugRequest))
	if err != nil {
		logger.Fatalf("Failed to create coze client: %v", err)
	}

	chatService := service.NewChatService(cfg, client)
	chatHandler := handler.NewChatHandler(chatService)

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(cfg, chatHandler)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("✅ Server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待信号优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务器正在关闭...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("服务器关闭失败: %v", err)
	}
	logger.Info("服务器已关闭")
}
