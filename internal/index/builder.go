// Package index builds and maintains per-subject vector collections from a
// directory of plain-text documents. Indexing is incremental: file content
// checksums are persisted between runs and unchanged files are never
// re-embedded. A forced rebuild writes into a fresh versioned collection and
// swaps it in only after the build succeeds, so readers are never exposed to
// a partially built index.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quizforge/quizforge/internal/log"
	"github.com/quizforge/quizforge/internal/vectorstore"
)

// ErrNoDocuments is returned when a subject directory contains no indexable
// files.
var ErrNoDocuments = errors.New("no indexable documents found")

// Embedder turns text into an embedding vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore is the slice of the vector store the builder needs.
type ChunkStore interface {
	EnsureCollection(ctx context.Context, name string, dim int) (bool, error)
	DropCollection(ctx context.Context, name string) error
	DeleteBySourceFile(ctx context.Context, collection, sourceFile string) error
	UpsertChunks(ctx context.Context, collection string, chunks []vectorstore.Chunk) error
}

// Options configures a Builder.
type Options struct {
	// DocumentsDir is the root directory; each subdirectory is a subject.
	DocumentsDir string
	// ChunkSize and ChunkOverlap are in runes.
	ChunkSize    int
	ChunkOverlap int
	// EmbeddingDim must match the embedder's output dimension.
	EmbeddingDim int
	// Extensions limits which files are indexed. Empty means the defaults.
	Extensions []string
	// Concurrency bounds how many subjects IndexAll processes in parallel.
	// Zero means sequential.
	Concurrency int
}

// Builder indexes subject directories into per-subject collections.
type Builder struct {
	store    ChunkStore
	meta     *MetaStore
	embedder Embedder
	opts     Options
	exts     map[string]bool
	logger   log.Logger

	// now is swappable for tests; versioned collection names embed it.
	now func() time.Time
}

// Result reports what one IndexSubject run did.
type Result struct {
	Subject        string
	Skipped        bool
	ChunksIndexed  int
	ProcessedFiles []string
	FailedFiles    []string
}

// NewBuilder wires a Builder. The metadata store and chunk store must outlive
// the builder.
func NewBuilder(store ChunkStore, meta *MetaStore, embedder Embedder, opts Options, logger log.Logger) *Builder {
	if logger == nil {
		logger = log.NewNop()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 0
	}

	return &Builder{
		store:    store,
		meta:     meta,
		embedder: embedder,
		opts:     opts,
		exts:     normalizeExtensions(opts.Extensions),
		logger:   logger,
		now:      time.Now,
	}
}

// DiscoverSubjects lists the subject directories under DocumentsDir, sorted.
func (b *Builder) DiscoverSubjects() ([]string, error) {
	entries, err := os.ReadDir(b.opts.DocumentsDir)
	if err != nil {
		return nil, fmt.Errorf("reading documents directory %s: %w", b.opts.DocumentsDir, err)
	}

	var subjects []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			subjects = append(subjects, e.Name())
		}
	}
	sort.Strings(subjects)
	return subjects, nil
}

// IndexSubject indexes one subject directory.
//
// Without force, files whose checksum matches the stored one are skipped; if
// nothing changed the run is a no-op with Skipped set and no writes issued.
// Changed files have their old points deleted and are re-embedded into the
// active collection.
//
// With force, everything is re-embedded into a new versioned collection which
// replaces the active one only after the build finishes; the previous
// collection is then dropped.
func (b *Builder) IndexSubject(ctx context.Context, subject string, force bool) (*Result, error) {
	files, err := b.discoverFiles(subject)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("subject %q: %w", subject, ErrNoDocuments)
	}

	if force {
		return b.rebuild(ctx, subject, files)
	}
	return b.update(ctx, subject, files)
}

// IndexAll indexes every discovered subject. Per-subject failures are logged
// and collected; the call fails only when no subject indexes successfully.
func (b *Builder) IndexAll(ctx context.Context, force bool) ([]*Result, error) {
	subjects, err := b.DiscoverSubjects()
	if err != nil {
		return nil, err
	}
	if len(subjects) == 0 {
		return nil, fmt.Errorf("directory %s: %w", b.opts.DocumentsDir, ErrNoDocuments)
	}

	results := make([]*Result, len(subjects))
	failures := make([]error, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	if b.opts.Concurrency > 0 {
		g.SetLimit(b.opts.Concurrency)
	} else {
		g.SetLimit(1)
	}

	for i, subject := range subjects {
		g.Go(func() error {
			res, err := b.IndexSubject(gctx, subject, force)
			if err != nil {
				b.logger.Error("subject indexing failed", "subject", subject, "error", err)
				failures[i] = fmt.Errorf("subject %q: %w", subject, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := results[:0]
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, errors.Join(failures...)
	}
	return out, nil
}

// update performs an incremental index into the subject's active collection.
func (b *Builder) update(ctx context.Context, subject string, files []string) (*Result, error) {
	stored, err := b.meta.Checksums(ctx, subject)
	if err != nil {
		return nil, err
	}

	type pending struct {
		file    string
		content string
		sum     string
	}

	var changed []pending
	for _, file := range files {
		content, err := extractText(filepath.Join(b.opts.DocumentsDir, subject, file))
		if err != nil {
			b.logger.Warn("skipping unreadable file", "subject", subject, "file", file, "error", err)
			continue
		}
		sum := contentChecksum(content)
		if stored[file] == sum {
			continue
		}
		changed = append(changed, pending{file: file, content: content, sum: sum})
	}

	if len(changed) == 0 {
		b.logger.Info("index up to date", "subject", subject, "files", len(files))
		return &Result{Subject: subject, Skipped: true}, nil
	}

	collection, err := b.meta.ActiveCollection(ctx, subject)
	if err != nil {
		return nil, err
	}
	fresh := collection == ""
	if fresh {
		collection = b.collectionName(subject)
	}
	if _, err := b.store.EnsureCollection(ctx, collection, b.opts.EmbeddingDim); err != nil {
		return nil, err
	}

	res := &Result{Subject: subject}
	for _, p := range changed {
		if _, known := stored[p.file]; known {
			if err := b.store.DeleteBySourceFile(ctx, collection, p.file); err != nil {
				b.logger.Error("stale chunk cleanup failed", "subject", subject, "file", p.file, "error", err)
				res.FailedFiles = append(res.FailedFiles, p.file)
				continue
			}
		}

		n, err := b.indexContent(ctx, collection, subject, p.file, p.content)
		if err != nil {
			b.logger.Error("file indexing failed", "subject", subject, "file", p.file, "error", err)
			res.FailedFiles = append(res.FailedFiles, p.file)
			continue
		}
		if err := b.meta.SetChecksum(ctx, subject, p.file, p.sum, n); err != nil {
			return nil, err
		}

		res.ChunksIndexed += n
		res.ProcessedFiles = append(res.ProcessedFiles, p.file)
	}

	if len(res.ProcessedFiles) == 0 {
		return nil, fmt.Errorf("subject %q: all %d changed files failed to index", subject, len(changed))
	}

	if fresh {
		if err := b.meta.SetActiveCollection(ctx, subject, collection, b.now()); err != nil {
			return nil, err
		}
	} else if err := b.meta.Touch(ctx, subject, b.now()); err != nil {
		return nil, err
	}

	b.logger.Info("index updated",
		"subject", subject,
		"files", len(res.ProcessedFiles),
		"chunks", res.ChunksIndexed,
		"failed", len(res.FailedFiles))
	return res, nil
}

// rebuild embeds every file into a new versioned collection, swaps it in, and
// drops the previous collection. The old collection stays live until the swap.
func (b *Builder) rebuild(ctx context.Context, subject string, files []string) (*Result, error) {
	old, err := b.meta.ActiveCollection(ctx, subject)
	if err != nil {
		return nil, err
	}

	collection := b.collectionName(subject)
	if _, err := b.store.EnsureCollection(ctx, collection, b.opts.EmbeddingDim); err != nil {
		return nil, err
	}

	type indexed struct {
		file   string
		sum    string
		chunks int
	}

	res := &Result{Subject: subject}
	var done []indexed
	for _, file := range files {
		content, err := extractText(filepath.Join(b.opts.DocumentsDir, subject, file))
		if err != nil {
			b.logger.Warn("skipping unreadable file", "subject", subject, "file", file, "error", err)
			res.FailedFiles = append(res.FailedFiles, file)
			continue
		}

		n, err := b.indexContent(ctx, collection, subject, file, content)
		if err != nil {
			b.logger.Error("file indexing failed", "subject", subject, "file", file, "error", err)
			res.FailedFiles = append(res.FailedFiles, file)
			continue
		}

		done = append(done, indexed{file: file, sum: contentChecksum(content), chunks: n})
		res.ChunksIndexed += n
		res.ProcessedFiles = append(res.ProcessedFiles, file)
	}

	if len(done) == 0 {
		// Nothing made it in; clean up the empty build and keep the old
		// collection serving.
		if err := b.store.DropCollection(ctx, collection); err != nil {
			b.logger.Warn("abandoned build cleanup failed", "collection", collection, "error", err)
		}
		return nil, fmt.Errorf("subject %q: all %d files failed to index", subject, len(files))
	}

	// Swap: checksums first, then the collection pointer, then drop the old
	// build. A crash between steps leaves a consistent view either way.
	if err := b.meta.ClearChecksums(ctx, subject); err != nil {
		return nil, err
	}
	for _, d := range done {
		if err := b.meta.SetChecksum(ctx, subject, d.file, d.sum, d.chunks); err != nil {
			return nil, err
		}
	}
	if err := b.meta.SetActiveCollection(ctx, subject, collection, b.now()); err != nil {
		return nil, err
	}

	if old != "" && old != collection {
		if err := b.store.DropCollection(ctx, old); err != nil {
			b.logger.Warn("old collection cleanup failed", "collection", old, "error", err)
		}
	}

	b.logger.Info("index rebuilt",
		"subject", subject,
		"collection", collection,
		"files", len(res.ProcessedFiles),
		"chunks", res.ChunksIndexed,
		"failed", len(res.FailedFiles))
	return res, nil
}

// indexContent chunks, embeds, and upserts one document. Returns the number
// of chunks written.
func (b *Builder) indexContent(ctx context.Context, collection, subject, file, content string) (int, error) {
	pieces := Split(content, b.opts.ChunkSize, b.opts.ChunkOverlap)
	if len(pieces) == 0 {
		return 0, nil
	}

	chunks := make([]vectorstore.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		vec, err := b.embedder.EmbedText(ctx, piece.Text)
		if err != nil {
			return 0, fmt.Errorf("embedding chunk %d of %s: %w", i, file, err)
		}

		chunks = append(chunks, vectorstore.Chunk{
			ID:          chunkID(subject, file, i),
			Subject:     subject,
			SourceFile:  file,
			Index:       i,
			StartOffset: piece.Start,
			EndOffset:   piece.End,
			Text:        piece.Text,
			Vector:      vec,
		})
	}

	if err := b.store.UpsertChunks(ctx, collection, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// discoverFiles lists indexable files (by extension) in the subject
// directory, sorted by name. Nested directories are not descended into.
func (b *Builder) discoverFiles(subject string) ([]string, error) {
	dir := filepath.Join(b.opts.DocumentsDir, subject)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading subject directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if b.exts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// collectionName produces a fresh versioned collection name for a subject.
func (b *Builder) collectionName(subject string) string {
	return fmt.Sprintf("%s__%d", sanitizeSubject(subject), b.now().UnixNano())
}

// sanitizeSubject maps a subject directory name onto characters safe for a
// collection name.
func sanitizeSubject(subject string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(subject) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// chunkID is the stable identity of one chunk. The vector store hashes it
// into a point UUID, so unchanged chunks overwrite themselves on re-index.
func chunkID(subject, file string, index int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", subject, file, index))
	return hex.EncodeToString(sum[:])
}

// contentChecksum fingerprints extracted document content.
func contentChecksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
