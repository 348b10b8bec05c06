package model

type RetrievalResult struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

type Answer struct {
	Answer          string            `json:"answer"`
	SourceDocuments []RetrievalResult `json:"source_documents"`
}

type IngestResult struct {
	DocumentID string   `json:"document_id"`
	NumChunks  int      `json:"num_chunks"`
	Chunks     []string `json:"chunks"`
}
