// Package store persists vector index snapshots as a SQLite database inside an
// index directory. A snapshot is written once per ingestion run and read once
// when the query process starts; it is never updated in place.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// FileName is the snapshot file written inside the index directory.
const FileName = "index.db"

// formatVersion is bumped whenever the snapshot schema changes incompatibly.
const formatVersion = 1

// ErrNotFound is returned by Load when the directory holds no snapshot.
var ErrNotFound = errors.New("store: index snapshot not found")

// Meta describes how a snapshot was built.
type Meta struct {
	// Provider is the embedding backend that produced the vectors.
	Provider string
	// Model is the embedding model identifier.
	Model string
	// Dimensions is the embedding vector length.
	Dimensions int
	// Source is the document source the index was built from.
	Source string
	// CreatedAt is when the snapshot was written.
	CreatedAt time.Time
}

// Entry is a single stored chunk with its embedding.
type Entry struct {
	// ID is the chunk identifier.
	ID string
	// Source is the origin URL of the chunk.
	Source string
	// Content is the chunk text.
	Content string
	// Metadata holds the chunk's key-value metadata.
	Metadata map[string]string
	// Vector is the chunk embedding.
	Vector []float32
}

// Snapshot is the full persisted content of an index.
type Snapshot struct {
	// Meta describes the embedding space and provenance.
	Meta Meta
	// Entries are the stored chunks in insertion order.
	Entries []Entry
}

// Path returns the snapshot file path for an index directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Save writes snap into dir, replacing any existing snapshot. The database is
// built in a temporary file and renamed over the old one, so a concurrent Load
// sees either the previous snapshot or the new one.
func Save(dir string, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}

	final := Path(dir)
	tmp := final + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: remove stale %s: %w", tmp, err)
	}

	if err := write(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("store: replace %s: %w", final, err)
	}
	return nil
}

// write creates a new database at path and fills it with snap.
func write(path string, snap *Snapshot) error {
	db, err := open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrate(ctx, db); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	meta := map[string]string{
		"format_version": strconv.Itoa(formatVersion),
		"provider":       snap.Meta.Provider,
		"model":          snap.Meta.Model,
		"dimensions":     strconv.Itoa(snap.Meta.Dimensions),
		"source":         snap.Meta.Source,
		"created_at":     snap.Meta.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("store: write meta %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (position, id, source, content, metadata, embedding) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range snap.Entries {
		md, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("store: encode metadata for %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, i, e.ID, e.Source, e.Content, string(md), encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("store: insert chunk %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Load reads the snapshot stored in dir.
func Load(dir string) (*Snapshot, error) {
	path := Path(dir)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("store: stat %s: %w", path, err)
	}

	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ctx := context.Background()
	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, source, content, metadata, embedding FROM chunks ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: query chunks: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{Meta: meta}
	for rows.Next() {
		var e Entry
		var md string
		var blob []byte
		if err := rows.Scan(&e.ID, &e.Source, &e.Content, &md, &blob); err != nil {
			return nil, fmt.Errorf("store: scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(md), &e.Metadata); err != nil {
			return nil, fmt.Errorf("store: decode metadata for %s: %w", e.ID, err)
		}
		if e.Vector, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("store: decode embedding for %s: %w", e.ID, err)
		}
		snap.Entries = append(snap.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: chunk rows: %w", err)
	}
	return snap, nil
}

// open opens the SQLite database at path with a single connection.
func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// migrate creates the snapshot schema.
func migrate(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS meta (
    key    TEXT PRIMARY KEY,
    value  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
    position   INTEGER PRIMARY KEY,
    id         TEXT    NOT NULL UNIQUE,
    source     TEXT    NOT NULL,
    content    TEXT    NOT NULL,
    metadata   TEXT    NOT NULL,  -- JSON object
    embedding  BLOB    NOT NULL   -- little-endian float32
);
`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// readMeta loads and validates the meta table.
func readMeta(ctx context.Context, db *sql.DB) (Meta, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, fmt.Errorf("store: query meta: %w", err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, fmt.Errorf("store: scan meta: %w", err)
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return Meta{}, fmt.Errorf("store: meta rows: %w", err)
	}

	if v := kv["format_version"]; v != strconv.Itoa(formatVersion) {
		return Meta{}, fmt.Errorf("store: unsupported snapshot format %q (want %d)", v, formatVersion)
	}

	m := Meta{
		Provider: kv["provider"],
		Model:    kv["model"],
		Source:   kv["source"],
	}
	if v := kv["dimensions"]; v != "" {
		if m.Dimensions, err = strconv.Atoi(v); err != nil {
			return Meta{}, fmt.Errorf("store: bad dimensions %q: %w", v, err)
		}
	}
	if v := kv["created_at"]; v != "" {
		if m.CreatedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return Meta{}, fmt.Errorf("store: bad created_at %q: %w", v, err)
		}
	}
	return m, nil
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
