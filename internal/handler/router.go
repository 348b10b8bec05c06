package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Documents *DocumentHandler
	Events    *EventHandler
	Query     *QueryHandler
	// Metrics serves the Prometheus exposition; nil leaves it unmounted.
	Metrics http.Handler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/documents", deps.Documents.Upload)
	api.POST("/documents/source", deps.Documents.IngestSource)
	api.GET("/documents/*id", deps.Documents.Get)
	api.DELETE("/documents/*id", deps.Documents.Delete)

	api.POST("/events/s3", deps.Events.S3)

	api.POST("/query", deps.Query.Query)
	api.POST("/search", deps.Query.Search)

	if deps.Metrics != nil {
		api.GET("/metrics", gin.WrapH(deps.Metrics))
	}
}
