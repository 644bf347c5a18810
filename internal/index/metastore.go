package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/quizforge/quizforge/internal/log"
)

// MetaStore persists indexing metadata in a local sqlite database so
// incremental re-runs survive process restarts. It holds two tables:
//
//	file_checksums — content checksum and chunk count per (subject, file)
//	subjects       — active collection name and last index time
//
// The subjects table doubles as the active-collection registry: a forced
// re-index writes into a fresh versioned collection and repoints the row in
// one UPDATE, so concurrent readers never observe a half-built collection.
type MetaStore struct {
	db     *sql.DB
	lock   *flock.Flock
	logger log.Logger
}

// SubjectRecord is one subject's aggregate indexing state.
type SubjectRecord struct {
	Subject       string
	Collection    string
	ChunkCount    int
	LastIndexedAt time.Time
}

const metaSchema = `
CREATE TABLE IF NOT EXISTS file_checksums (
	subject     TEXT NOT NULL,
	file        TEXT NOT NULL,
	checksum    TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (subject, file)
);
CREATE TABLE IF NOT EXISTS subjects (
	subject         TEXT PRIMARY KEY,
	collection      TEXT NOT NULL,
	last_indexed_at TIMESTAMP
);`

// OpenMetaStore opens (creating if necessary) the metadata database at path.
func OpenMetaStore(path string, logger log.Logger) (*MetaStore, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating metadata directory: %w", err)
		}
	}

	// SetMaxOpenConns(1) below only serializes writers inside this process;
	// a file lock guards against a second invocation on the same database.
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking metadata db at %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("metadata db at %s is in use by another process", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("opening metadata db at %s: %w", path, err)
	}

	// The indexer is the only writer; a single connection sidesteps
	// sqlite's writer lock contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(metaSchema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("creating metadata schema: %w", err)
	}

	return &MetaStore{db: db, lock: lock, logger: logger}, nil
}

// Close closes the underlying database and releases the process lock.
func (m *MetaStore) Close() error {
	err := m.db.Close()
	if uerr := m.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}

// Checksums returns the persisted file→checksum map for a subject.
func (m *MetaStore) Checksums(ctx context.Context, subject string) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT file, checksum FROM file_checksums WHERE subject = ?`, subject)
	if err != nil {
		return nil, fmt.Errorf("loading checksums for %q: %w", subject, err)
	}
	defer func() { _ = rows.Close() }()

	sums := make(map[string]string)
	for rows.Next() {
		var file, sum string
		if err := rows.Scan(&file, &sum); err != nil {
			return nil, fmt.Errorf("scanning checksum row: %w", err)
		}
		sums[file] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating checksum rows: %w", err)
	}

	return sums, nil
}

// SetChecksum upserts the checksum and chunk count for one file.
func (m *MetaStore) SetChecksum(ctx context.Context, subject, file, checksum string, chunkCount int) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO file_checksums (subject, file, checksum, chunk_count) VALUES (?, ?, ?, ?)
		 ON CONFLICT (subject, file) DO UPDATE SET
			checksum = excluded.checksum,
			chunk_count = excluded.chunk_count`,
		subject, file, checksum, chunkCount)
	if err != nil {
		return fmt.Errorf("saving checksum for %s/%s: %w", subject, file, err)
	}
	return nil
}

// ClearChecksums drops all checksums for a subject. Used by forced re-indexing
// before the fresh checksum map is written.
func (m *MetaStore) ClearChecksums(ctx context.Context, subject string) error {
	if _, err := m.db.ExecContext(ctx,
		`DELETE FROM file_checksums WHERE subject = ?`, subject); err != nil {
		return fmt.Errorf("clearing checksums for %q: %w", subject, err)
	}
	return nil
}

// ChunkCount sums the per-file chunk counts for a subject.
func (m *MetaStore) ChunkCount(ctx context.Context, subject string) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(chunk_count), 0) FROM file_checksums WHERE subject = ?`, subject).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks for %q: %w", subject, err)
	}
	return count, nil
}

// ActiveCollection returns the collection currently serving a subject, or
// empty string when the subject has never been indexed.
func (m *MetaStore) ActiveCollection(ctx context.Context, subject string) (string, error) {
	var collection string
	err := m.db.QueryRowContext(ctx,
		`SELECT collection FROM subjects WHERE subject = ?`, subject).Scan(&collection)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolving collection for %q: %w", subject, err)
	}
	return collection, nil
}

// SetActiveCollection upserts the subject row, atomically repointing readers
// at collection.
func (m *MetaStore) SetActiveCollection(ctx context.Context, subject, collection string, indexedAt time.Time) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO subjects (subject, collection, last_indexed_at) VALUES (?, ?, ?)
		 ON CONFLICT (subject) DO UPDATE SET
			collection = excluded.collection,
			last_indexed_at = excluded.last_indexed_at`,
		subject, collection, indexedAt.UTC())
	if err != nil {
		return fmt.Errorf("updating subject %q: %w", subject, err)
	}
	return nil
}

// Touch refreshes a subject's last-indexed timestamp after an incremental run.
func (m *MetaStore) Touch(ctx context.Context, subject string, indexedAt time.Time) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE subjects SET last_indexed_at = ? WHERE subject = ?`,
		indexedAt.UTC(), subject)
	if err != nil {
		return fmt.Errorf("touching subject %q: %w", subject, err)
	}
	return nil
}

// Subjects lists every indexed subject in alphabetical order.
func (m *MetaStore) Subjects(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT subject FROM subjects ORDER BY subject`)
	if err != nil {
		return nil, fmt.Errorf("listing subjects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subjects []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning subject row: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subject rows: %w", err)
	}

	return subjects, nil
}

// Records returns aggregate indexing state for stats reporting.
func (m *MetaStore) Records(ctx context.Context) ([]SubjectRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT s.subject, s.collection, COALESCE(SUM(f.chunk_count), 0), s.last_indexed_at
		FROM subjects s
		LEFT JOIN file_checksums f ON f.subject = s.subject
		GROUP BY s.subject, s.collection, s.last_indexed_at
		ORDER BY s.subject`)
	if err != nil {
		return nil, fmt.Errorf("listing subject records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []SubjectRecord
	for rows.Next() {
		var rec SubjectRecord
		var at sql.NullTime
		if err := rows.Scan(&rec.Subject, &rec.Collection, &rec.ChunkCount, &at); err != nil {
			return nil, fmt.Errorf("scanning subject record: %w", err)
		}
		if at.Valid {
			rec.LastIndexedAt = at.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subject records: %w", err)
	}

	return records, nil
}
