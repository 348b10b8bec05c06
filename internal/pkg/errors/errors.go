package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalid     = errors.New("invalid")
	ErrUnavailable = errors.New("unavailable")
	ErrInternal    = errors.New("internal")

	ErrIngestion     = errors.New("ingestion failed")
	ErrEmbedding     = errors.New("embedding failed")
	ErrVectorStore   = errors.New("vector store failed")
	ErrRAGPipeline   = errors.New("rag pipeline failed")
	ErrConfiguration = errors.New("configuration invalid")

	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported file format", ErrIngestion)
	ErrDocumentParsing   = fmt.Errorf("%w: document parsing", ErrIngestion)
	ErrSourceRead        = fmt.Errorf("%w: source read", ErrIngestion)
	ErrChunking          = fmt.Errorf("%w: chunking", ErrIngestion)
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch", ErrEmbedding)
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsIngestion(err error) bool {
	return errors.Is(err, ErrIngestion)
}

func IsEmbedding(err error) bool {
	return errors.Is(err, ErrEmbedding)
}

func IsVectorStore(err error) bool {
	return errors.Is(err, ErrVectorStore)
}

func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// Wrap attaches kind to err unless err already carries it.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
