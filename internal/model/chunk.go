package model

// Chunk is a bounded slice of a cleaned source text. Indices count characters.
type Chunk struct {
	Text       string                 `json:"text"`
	ChunkID    string                 `json:"chunk_id"`
	StartIndex int                    `json:"start_index"`
	EndIndex   int                    `json:"end_index"`
	Metadata   map[string]interface{} `json:"metadata"`
}
