package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xxxsen/docqa/internal/model"
)

const BackendMemory = "memory"

type memoryBackend struct {
	mu    sync.RWMutex
	order []string
	items map[string]*model.VectorDocument
}

// NewMemoryBackend keeps documents in process. Enumeration follows first
// insertion; an overwrite keeps the original position.
func NewMemoryBackend() Backend {
	return &memoryBackend{items: map[string]*model.VectorDocument{}}
}

func (m *memoryBackend) Name() string {
	return BackendMemory
}

func (m *memoryBackend) Put(ctx context.Context, docs []*model.VectorDocument) error {
	stored := make([]*model.VectorDocument, 0, len(docs))
	for _, doc := range docs {
		cp, err := normalize(doc)
		if err != nil {
			return err
		}
		stored = append(stored, cp)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range stored {
		key := doc.Key()
		if _, ok := m.items[key]; !ok {
			m.order = append(m.order, key)
		}
		m.items[key] = doc
	}
	return nil
}

func (m *memoryBackend) Scan(ctx context.Context, fn func(doc *model.VectorDocument) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, key := range m.order {
		if err := fn(m.items[key]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryBackend) Delete(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	for _, key := range m.order {
		if m.items[key].DocumentID == documentID {
			delete(m.items, key)
			continue
		}
		kept = append(kept, key)
	}
	m.order = kept
	return nil
}

func (m *memoryBackend) DeleteStaleChunks(ctx context.Context, documentID string, keep []string) error {
	wanted := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		wanted[id] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	for _, key := range m.order {
		doc := m.items[key]
		if doc.DocumentID == documentID {
			if _, ok := wanted[doc.ChunkID]; !ok {
				delete(m.items, key)
				continue
			}
		}
		kept = append(kept, key)
	}
	m.order = kept
	return nil
}

func (m *memoryBackend) Get(ctx context.Context, documentID string) (*model.VectorDocument, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, key := range m.order {
		if doc := m.items[key]; doc.DocumentID == documentID {
			return doc.Clone(), true, nil
		}
	}
	return nil, false, nil
}

func (m *memoryBackend) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order), nil
}

// normalize deep copies doc and passes its metadata through json so the
// in-memory store hands back the same value types as the durable ones.
func normalize(doc *model.VectorDocument) (*model.VectorDocument, error) {
	cp := doc.Clone()
	raw, err := json.Marshal(cp.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata of %s: %w", doc.Key(), err)
	}
	meta := map[string]interface{}{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", doc.Key(), err)
	}
	cp.Metadata = meta
	return cp, nil
}
