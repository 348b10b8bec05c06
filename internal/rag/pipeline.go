package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/metrics"
	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
	"github.com/xxxsen/docqa/internal/retrieval"
)

const (
	NoDocumentsAnswer = "No relevant documents found."

	fallbackPrefix   = "[Mock Fallback] "
	fallbackDocs     = 3
	fallbackMaxChars = 300
	errorPrefix      = "error: "
)

type Pipeline struct {
	retriever *retrieval.Retriever
	chain     *StuffChain
}

type Option func(*Pipeline)

// WithGenerator enables the generation chain. A nil generator leaves the
// pipeline in retrieval-only mode.
func WithGenerator(gen ai.IGenerator, timeout time.Duration) Option {
	return func(p *Pipeline) {
		if gen == nil {
			p.chain = nil
			return
		}
		p.chain = NewStuffChain(gen, timeout)
	}
}

func New(retriever *retrieval.Retriever, opts ...Option) *Pipeline {
	p := &Pipeline{retriever: retriever}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) HasChain() bool {
	return p.chain != nil
}

// Query answers question. It never fails: internal errors come back as an
// answer prefixed with "error: " and no sources.
func (p *Pipeline) Query(ctx context.Context, question string, opts ...retrieval.Option) (ans *model.Answer) {
	start := time.Now()
	mode := metrics.ModeError
	logger := logutil.GetLogger(ctx)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: panic: %v", appErr.ErrRAGPipeline, r)
			logger.Error("rag pipeline panic", zap.Error(err))
			ans = errorAnswer(fmt.Errorf("panic: %v", r))
			mode = metrics.ModeError
		}
		metrics.QueriesTotal.WithLabelValues(mode).Inc()
		metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}()
	if p.retriever == nil {
		logger.Error("rag pipeline has no retriever")
		return errorAnswer(fmt.Errorf("retriever not configured"))
	}
	retriever := p.retriever
	if len(opts) > 0 {
		retriever = retriever.With(opts...)
	}
	if p.chain == nil {
		ans, mode = p.fallback(ctx, retriever, question)
		return ans
	}
	res, err := p.chain.Run(ctx, retriever, question)
	if err != nil {
		logger.Error("rag generation failed",
			zap.String("model", p.chain.ModelName()), zap.Error(appErr.Wrap(appErr.ErrRAGPipeline, err)))
		return errorAnswer(err)
	}
	mode = metrics.ModeChain
	logger.Info("rag query answered", zap.String("model", p.chain.ModelName()), zap.Int("sources", len(res.SourceDocuments)))
	return &model.Answer{Answer: res.Result, SourceDocuments: res.SourceDocuments}
}

func (p *Pipeline) fallback(ctx context.Context, retriever *retrieval.Retriever, question string) (*model.Answer, string) {
	docs := retriever.Retrieve(ctx, question)
	if len(docs) == 0 {
		return &model.Answer{Answer: NoDocumentsAnswer, SourceDocuments: []model.RetrievalResult{}}, metrics.ModeNoResults
	}
	n := len(docs)
	if n > fallbackDocs {
		n = fallbackDocs
	}
	parts := make([]string, 0, n)
	for _, doc := range docs[:n] {
		parts = append(parts, doc.Content)
	}
	summary := truncateRunes(strings.Join(parts, "\n"), fallbackMaxChars)
	return &model.Answer{Answer: fallbackPrefix + summary, SourceDocuments: docs}, metrics.ModeFallback
}

func errorAnswer(err error) *model.Answer {
	return &model.Answer{Answer: errorPrefix + err.Error(), SourceDocuments: []model.RetrievalResult{}}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
