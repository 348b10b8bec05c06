package handler

import (
	"encoding/base64"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docqa/internal/ingest"
	"github.com/xxxsen/docqa/internal/pkg/errcode"
	"github.com/xxxsen/docqa/internal/pkg/response"
	"github.com/xxxsen/docqa/internal/vectorstore"
)

type DocumentHandler struct {
	ingest  *ingest.Service
	store   vectorstore.VectorStore
	maxSize int64
}

func NewDocumentHandler(svc *ingest.Service, store vectorstore.VectorStore, maxSize int64) *DocumentHandler {
	return &DocumentHandler{ingest: svc, store: store, maxSize: maxSize}
}

type uploadRequest struct {
	Filename  string                 `json:"filename"`
	File      string                 `json:"file"`
	ChunkSize int                    `json:"chunk_size"`
	Overlap   *int                   `json:"overlap"`
	Metadata  map[string]interface{} `json:"metadata"`
	Persist   bool                   `json:"persist"`
}

type sourceRequest struct {
	Key      string                 `json:"key"`
	Metadata map[string]interface{} `json:"metadata"`
}

type documentResponse struct {
	DocumentID string                 `json:"document_id"`
	ChunkID    string                 `json:"chunk_id"`
	Text       string                 `json:"text"`
	Dimension  int                    `json:"dimension"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Upload ingests a document sent either as JSON with a base64 body or as a
// multipart form with a "file" part.
func (h *DocumentHandler) Upload(c *gin.Context) {
	var req *ingest.Request
	var ok bool
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, ok = h.readMultipart(c)
	} else {
		req, ok = h.readJSON(c)
	}
	if !ok {
		return
	}
	result, err := h.ingest.Ingest(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *DocumentHandler) readJSON(c *gin.Context) (*ingest.Request, bool) {
	var body uploadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		invalidRequest(c, "invalid request")
		return nil, false
	}
	if body.Filename == "" || body.File == "" {
		invalidRequest(c, "filename and file are required")
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(body.File)
	if err != nil {
		invalidRequest(c, "file must be base64 encoded")
		return nil, false
	}
	return &ingest.Request{
		Filename:  body.Filename,
		Data:      data,
		ChunkSize: body.ChunkSize,
		Overlap:   body.Overlap,
		Metadata:  body.Metadata,
		Persist:   body.Persist,
	}, true
}

func (h *DocumentHandler) readMultipart(c *gin.Context) (*ingest.Request, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		invalidRequest(c, "file is required")
		return nil, false
	}
	if h.maxSize > 0 && fileHeader.Size > h.maxSize {
		response.Error(c, errcode.ErrInvalidFile, "file too large")
		return nil, false
	}
	file, err := fileHeader.Open()
	if err != nil {
		invalidRequest(c, "file is unreadable")
		return nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		invalidRequest(c, "file is unreadable")
		return nil, false
	}
	req := &ingest.Request{
		Filename: fileHeader.Filename,
		Data:     data,
		Persist:  c.PostForm("persist") == "true",
	}
	if v := c.PostForm("chunk_size"); v != "" {
		if req.ChunkSize, err = strconv.Atoi(v); err != nil {
			invalidRequest(c, "chunk_size must be an integer")
			return nil, false
		}
	}
	if v := c.PostForm("overlap"); v != "" {
		overlap, err := strconv.Atoi(v)
		if err != nil {
			invalidRequest(c, "overlap must be an integer")
			return nil, false
		}
		req.Overlap = &overlap
	}
	return req, true
}

func (h *DocumentHandler) IngestSource(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		invalidRequest(c, "key is required")
		return
	}
	result, err := h.ingest.IngestFromSource(c.Request.Context(), req.Key, req.Metadata)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// Get returns the first stored chunk of a document.
func (h *DocumentHandler) Get(c *gin.Context) {
	id := documentID(c)
	if id == "" {
		invalidRequest(c, "document id is required")
		return
	}
	doc, ok := h.store.GetDocument(c.Request.Context(), id)
	if !ok {
		response.Error(c, errcode.ErrNotFound, "document not found")
		return
	}
	response.Success(c, documentResponse{
		DocumentID: doc.DocumentID,
		ChunkID:    doc.ChunkID,
		Text:       doc.Text,
		Dimension:  len(doc.Embedding),
		Metadata:   doc.Metadata,
	})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.ingest.Delete(c.Request.Context(), documentID(c)); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// documentID reads the wildcard id; ids may contain slashes.
func documentID(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("id"), "/")
}
