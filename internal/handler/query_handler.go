package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/response"
	"github.com/xxxsen/docqa/internal/rag"
	"github.com/xxxsen/docqa/internal/retrieval"
)

type QueryHandler struct {
	pipeline  *rag.Pipeline
	retriever *retrieval.Retriever
}

func NewQueryHandler(pipeline *rag.Pipeline, retriever *retrieval.Retriever) *QueryHandler {
	return &QueryHandler{pipeline: pipeline, retriever: retriever}
}

type queryRequest struct {
	Question string                 `json:"question"`
	TopK     int                    `json:"top_k"`
	Filter   map[string]interface{} `json:"filter"`
}

type searchRequest struct {
	Query  string                 `json:"query"`
	TopK   int                    `json:"top_k"`
	Filter map[string]interface{} `json:"filter"`
}

type searchResponse struct {
	Results []model.RetrievalResult `json:"results"`
}

// Query answers a question. Pipeline failures are reported inside the
// answer text, so the envelope is always a success.
func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		invalidRequest(c, "question is required")
		return
	}
	ans := h.pipeline.Query(c.Request.Context(), question, retrievalOptions(req.TopK, req.Filter)...)
	response.Success(c, ans)
}

// Search returns the raw retrieval results without generation.
func (h *QueryHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		invalidRequest(c, "query is required")
		return
	}
	results := h.retriever.With(retrievalOptions(req.TopK, req.Filter)...).Retrieve(c.Request.Context(), query)
	response.Success(c, searchResponse{Results: results})
}

func retrievalOptions(topK int, filter map[string]interface{}) []retrieval.Option {
	var opts []retrieval.Option
	if topK > 0 {
		opts = append(opts, retrieval.WithTopK(topK))
	}
	if len(filter) > 0 {
		opts = append(opts, retrieval.WithFilter(filter))
	}
	return opts
}
