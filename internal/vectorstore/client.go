// Package vectorstore wraps the Qdrant client with the collection-per-subject
// layout used by the indexer and the query engine.
//
// Physical collection names are versioned (subject__<timestamp>); the active
// collection for a subject is tracked by the index metadata store, which lets
// a forced re-index build a fresh collection and swap it in atomically while
// readers keep hitting the old one.
package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/quizforge/quizforge/internal/log"
)

// Payload keys stored with every point.
const (
	payloadText        = "text"
	payloadSubject     = "subject"
	payloadSourceFile  = "source_file"
	payloadChunkIndex  = "chunk_index"
	payloadStartOffset = "start_offset"
	payloadEndOffset   = "end_offset"
	payloadIndexedAt   = "indexed_at"
)

// Client manages per-subject chunk collections in Qdrant.
// Safe for concurrent use; the underlying gRPC client is concurrency-safe.
type Client struct {
	qc     *qdrant.Client
	logger log.Logger
}

// Connect dials Qdrant and returns a Client. The connection is persistent;
// callers own it and must Close() on shutdown.
func Connect(host string, port int, logger log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	qc, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", host, port, err)
	}

	return &Client{qc: qc, logger: logger}, nil
}

// Close releases the Qdrant connection.
func (c *Client) Close() error {
	return c.qc.Close()
}

// ListCollections returns the names of all collections. Used both as a
// connectivity probe at startup and for stats reporting.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	names, err := c.qc.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return names, nil
}

// EnsureCollection creates the named collection with cosine distance if it
// does not exist yet. Returns true when the collection already existed.
func (c *Client) EnsureCollection(ctx context.Context, name string, dim int) (bool, error) {
	exists, err := c.qc.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("checking collection %q: %w", name, err)
	}
	if exists {
		return true, nil
	}

	if err := c.qc.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dim), // #nosec G115 -- dim validated by config
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	}); err != nil {
		return false, fmt.Errorf("creating collection %q: %w", name, err)
	}

	c.logger.Debug("created collection", "name", name, "dim", dim)
	return false, nil
}

// DropCollection deletes a collection. Missing collections are not an error
// at the Qdrant level, so drop is idempotent.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	if err := c.qc.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("dropping collection %q: %w", name, err)
	}
	c.logger.Debug("dropped collection", "name", name)
	return nil
}

// UpsertChunks writes a batch of embedded chunks into the collection.
// Point IDs are derived deterministically from chunk IDs, so re-running the
// indexer over an unchanged file replaces points instead of duplicating them.
func (c *Client) UpsertChunks(ctx context.Context, collection string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	now := time.Now().UTC().Format(time.RFC3339)

	for i, ch := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(ch.ID)),
			Vectors: qdrant.NewVectors(ch.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadText:        ch.Text,
				payloadSubject:     ch.Subject,
				payloadSourceFile:  ch.SourceFile,
				payloadChunkIndex:  int64(ch.Index),
				payloadStartOffset: int64(ch.StartOffset),
				payloadEndOffset:   int64(ch.EndOffset),
				payloadIndexedAt:   now,
			}),
		}
	}

	if _, err := c.qc.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting %d chunks into %q: %w", len(chunks), collection, err)
	}

	return nil
}

// DeleteBySourceFile removes every point that came from one source file.
// The indexer calls this before re-upserting a changed file so chunks beyond
// the new chunk count do not linger.
func (c *Client) DeleteBySourceFile(ctx context.Context, collection, sourceFile string) error {
	if _, err := c.qc.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadSourceFile, sourceFile)},
		}),
	}); err != nil {
		return fmt.Errorf("deleting points for %q in %q: %w", sourceFile, collection, err)
	}
	return nil
}

// Search runs a similarity query against one collection. Results come back
// sorted by descending similarity with scores below minScore excluded.
// Qdrant reports cosine similarity directly, so no distance inversion is needed.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, k int, minScore float32) ([]Hit, error) {
	limit := uint64(k) // #nosec G115 -- k validated by callers
	points, err := c.qc.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		ScoreThreshold: &minScore,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection %q: %w", collection, err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, scoredPointToHit(p))
	}

	// Qdrant returns results ordered, but merged multi-collection callers
	// rely on the contract, so enforce it here.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })

	return hits, nil
}

// PointID maps a chunk ID to a deterministic UUID accepted by Qdrant.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// scoredPointToHit converts a Qdrant scored point into a Hit, flattening the
// payload into plain Go values.
func scoredPointToHit(p *qdrant.ScoredPoint) Hit {
	md := make(map[string]any, len(p.Payload))
	for key, v := range p.Payload {
		md[key] = convertValue(v)
	}

	content := ""
	if text, ok := md[payloadText].(string); ok {
		content = text
	}
	delete(md, payloadText)

	return Hit{
		Content:    content,
		Metadata:   md,
		Similarity: p.Score,
	}
}

// convertValue unwraps a qdrant.Value into the corresponding Go value.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_ListValue:
		out := make([]any, len(val.ListValue.Values))
		for i, lv := range val.ListValue.Values {
			out[i] = convertValue(lv)
		}
		return out
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(val.StructValue.Fields))
		for k, nv := range val.StructValue.Fields {
			out[k] = convertValue(nv)
		}
		return out
	}
	return nil
}
