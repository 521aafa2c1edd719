// Package routes wires handlers onto the gin engine.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/careerflow/interview/internal/api/handlers"
	"github.com/careerflow/interview/internal/api/middleware"
)

// Deps carries the constructed handlers into route registration.
type Deps struct {
	WS         *handlers.WSHandler
	Interviews *handlers.InterviewHandler
}

// Register mounts every route. The socket endpoints sit outside the JWT
// middleware: a browser WebSocket cannot set an Authorization header, so
// they authenticate via the handshake frame instead.
func Register(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	ws := r.Group("/ws/interview")
	{
		ws.GET("/:job_id", d.WS.VoiceSession)
		ws.GET("/text/:job_id", d.WS.TextSession)
	}

	api := r.Group("/api")
	api.Use(middleware.JWTAuth())
	{
		api.GET("/interviews/:user_id", d.Interviews.History)
		api.GET("/interviews/:user_id/transcript/:session_id", d.Interviews.Transcript)
		api.POST("/interview/chat", d.Interviews.Chat)
	}
}
