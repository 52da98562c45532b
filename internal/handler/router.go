package handler

import (
	"time"

	"coze-relay/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg *config.Config, chatHandler *ChatHandler) *gin.Engine {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(cors.New(corsConfig(cfg.CORS)))

	router.GET("/", chatHandler.Health)
	router.GET("/health", chatHandler.Health)

	api := router.Group("/api")
	{
		api.POST("/chat", chatHandler.Chat)
		api.POST("/chat/stream", chatHandler.StreamChat)
	}

	return router
}

func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowOrigins:     c.AllowedOrigins,
		AllowMethods:     c.AllowedMethods,
		AllowHeaders:     c.AllowedHeaders,
		ExposeHeaders:    c.ExposedHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           time.Duration(c.MaxAge) * time.Second,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	}
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			cc.AllowAllOrigins = true
			cc.AllowOrigins = nil
			break
		}
	}
	return cc
}
