package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/filestore"
	"github.com/xxxsen/docqa/internal/handler"
	"github.com/xxxsen/docqa/internal/ingest"
	"github.com/xxxsen/docqa/internal/middleware"
	"github.com/xxxsen/docqa/internal/rag"
	"github.com/xxxsen/docqa/internal/retrieval"
	"github.com/xxxsen/docqa/internal/vectorstore"
)

const testDimension = 32

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testEnv struct {
	router    http.Handler
	store     *vectorstore.Store
	sourceDir string
}

func setupRouter(t *testing.T, withGenerator bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	source := filestore.NewLocalStore(dir)
	store := vectorstore.NewStore(vectorstore.NewMemoryBackend())
	embedder := ai.NewEmbeddingProvider(ai.NewEmbedder(ai.NewMockProvider(testDimension), "mock-embedding", testDimension))
	svc := ingest.NewService(embedder, store, ingest.WithSource(source))
	retriever := retrieval.New(embedder, store, retrieval.WithTopK(3))

	var opts []rag.Option
	if withGenerator {
		opts = append(opts, rag.WithGenerator(ai.NewGenerator(ai.NewMockProvider(0), "mock-model"), time.Second))
	}
	pipeline := rag.New(retriever, opts...)

	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(svc, store, 1<<20),
		Events:    handler.NewEventHandler(svc),
		Query:     handler.NewQueryHandler(pipeline, retriever),
		Metrics:   promhttp.Handler(),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return &testEnv{router: engine, store: store, sourceDir: dir}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *envelope {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(v)
	default:
		payload, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var out envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return &out
}

func decodeData(t *testing.T, env *envelope, dst interface{}) {
	t.Helper()
	require.Equal(t, 0, env.Code, env.Msg)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}
