package httpapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires every route onto a fresh engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	r.GET("/healthz", h.Health)

	v1 := r.Group("/api/v1")
	{
		sessions := v1.Group("/sessions/:id")
		sessions.GET("", h.GetSession)
		sessions.POST("/start", h.StartSession)
		sessions.POST("/stop", h.StopSession)
		sessions.POST("/symbols", h.AddSymbol)
		sessions.DELETE("/symbols/:symbol", h.RemoveSymbol)
		sessions.DELETE("/messages/:messageID", h.MessageDeleted)

		v1.GET("/prices", h.GetPrices)
		v1.GET("/convert", h.Convert)
		v1.GET("/chart/:symbol", h.Chart)
	}
	return r
}
