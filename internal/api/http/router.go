package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/BatsyBS/Stream-Lightning/internal/config"
)

func SetupRouter(relay *RelayController, cfg *config.Config) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.HTTP.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/ws", relay.ServeWS)

	api := router.Group("/api")
	api.GET("/rooms", relay.ListRooms)
	api.GET("/rooms/:roomID", relay.GetRoom)
	api.GET("/stats/:roomID", relay.GetStats)
	api.GET("/config", relay.GetWebRTCConfig)

	return router
}
