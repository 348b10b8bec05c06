package model

// VectorDocument is one embedded chunk owned by a vector store.
// (DocumentID, ChunkID) identifies it.
type VectorDocument struct {
	DocumentID string                 `json:"document_id"`
	ChunkID    string                 `json:"chunk_id"`
	Text       string                 `json:"text"`
	Embedding  []float32              `json:"embedding"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Key returns the store key of the document.
func (d *VectorDocument) Key() string {
	return d.DocumentID + "_" + d.ChunkID
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (d *VectorDocument) Clone() *VectorDocument {
	if d == nil {
		return nil
	}
	out := &VectorDocument{
		DocumentID: d.DocumentID,
		ChunkID:    d.ChunkID,
		Text:       d.Text,
	}
	if d.Embedding != nil {
		out.Embedding = make([]float32, len(d.Embedding))
		copy(out.Embedding, d.Embedding)
	}
	out.Metadata = CopyMetadata(d.Metadata)
	return out
}

func CopyMetadata(src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
