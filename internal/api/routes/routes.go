package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/cultiflow/voicedesk/internal/api/handlers"
)

type Deps struct {
	Call *handlers.CallHandler
	QA   *handlers.QAHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.GET("/calls/recent", d.Call.Recent)
	r.GET("/calls/:call_id", d.Call.Get)
	r.GET("/calls/:call_id/conversations", d.Call.Conversations)
	r.GET("/statistics", d.Call.Statistics)
	r.POST("/calls/process", d.Call.Process)

	r.GET("/qa", d.QA.List)
	r.GET("/qa/:qa_id", d.QA.Get)
	r.POST("/qa", d.QA.Upsert)
	r.DELETE("/qa/:qa_id", d.QA.Delete)
}
