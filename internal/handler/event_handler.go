package handler

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/ingest"
	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/response"
)

const maxEventBody = 1 << 20

type EventHandler struct {
	ingest *ingest.Service
}

func NewEventHandler(svc *ingest.Service) *EventHandler {
	return &EventHandler{ingest: svc}
}

type eventFailure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

type eventResponse struct {
	Ingested []*model.IngestResult `json:"ingested"`
	Failed   []eventFailure        `json:"failed"`
}

// S3 ingests every object referenced by an S3 event notification. A record
// that fails is reported without stopping the others.
func (h *EventHandler) S3(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	events, err := ingest.ParseS3Event(body)
	if err != nil {
		handleError(c, err)
		return
	}
	ctx := c.Request.Context()
	logger := logutil.GetLogger(ctx)
	resp := eventResponse{Ingested: []*model.IngestResult{}, Failed: []eventFailure{}}
	var lastErr error
	for _, ev := range events {
		extra := map[string]interface{}{
			"s3_bucket":  ev.Bucket,
			"event_name": ev.EventName,
		}
		if ev.EventTime != "" {
			extra["event_time"] = ev.EventTime
		}
		result, err := h.ingest.IngestFromSource(ctx, ev.Key, extra)
		if err != nil {
			logger.Error("ingest from event failed", zap.String("bucket", ev.Bucket), zap.String("key", ev.Key), zap.Error(err))
			resp.Failed = append(resp.Failed, eventFailure{Key: ev.Key, Error: err.Error()})
			lastErr = err
			continue
		}
		resp.Ingested = append(resp.Ingested, result)
	}
	if len(resp.Ingested) == 0 && lastErr != nil {
		handleError(c, lastErr)
		return
	}
	response.Success(c, resp)
}
