package vectorstore

// Chunk is one embedded slice of a source document, addressed by a stable ID
// so re-indexing the same file upserts instead of duplicating.
type Chunk struct {
	ID          string // sha256(subject|file|index), hex
	Subject     string
	SourceFile  string
	Index       int
	StartOffset int
	EndOffset   int
	Text        string
	Vector      []float32
}

// Hit is a single similarity-search result.
type Hit struct {
	Content    string
	Metadata   map[string]any
	Similarity float32 // cosine similarity, higher is closer
}
