package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/retrieval"
)

const promptTemplate = `Given these documents, answer the question.
If the answer is not in the documents, respond "I cannot find an answer."

Documents:
%s

Question: %s

Answer:`

// BuildPrompt stuffs every retrieved chunk into the prompt, separated by a
// blank line.
func BuildPrompt(docs []model.RetrievalResult, question string) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), question)
}

// ChainResult is the raw output of a generation chain.
type ChainResult struct {
	Result          string
	SourceDocuments []model.RetrievalResult
}

// StuffChain retrieves context for a question and asks the generator to
// answer from it in a single prompt.
type StuffChain struct {
	generator ai.IGenerator
	timeout   time.Duration
}

func NewStuffChain(generator ai.IGenerator, timeout time.Duration) *StuffChain {
	return &StuffChain{generator: generator, timeout: timeout}
}

func (c *StuffChain) Run(ctx context.Context, retriever *retrieval.Retriever, question string) (*ChainResult, error) {
	docs := retriever.Retrieve(ctx, question)
	answer, err := ai.GenerateText(ctx, c.generator, BuildPrompt(docs, question), c.timeout)
	if err != nil {
		return nil, err
	}
	return &ChainResult{Result: answer, SourceDocuments: docs}, nil
}

func (c *StuffChain) ModelName() string {
	return c.generator.ModelName()
}
