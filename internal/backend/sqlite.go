// Package backend provides the storage backend adapters searched by
// the orchestrator: a SQLite file catalog, a bleve metadata index, a
// local filesystem walker, and an LRU caching decorator.
package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/seqscout/seqscout/internal/genomics"
)

// SQLiteBackend searches a SQLite catalog of genomics files. Paginated
// searches walk the catalog in rowid order and carry the last rowid as
// the continuation token, so pages never skip or repeat rows.
type SQLiteBackend struct {
	db   *sql.DB
	name string
	lock *storeLock
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS files (
	path          TEXT PRIMARY KEY,
	file_type     TEXT NOT NULL,
	size_bytes    INTEGER NOT NULL DEFAULT 0,
	storage_class TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT '',
	source_system TEXT NOT NULL DEFAULT '',
	tags          TEXT NOT NULL DEFAULT '{}',
	metadata      TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_files_type ON files(file_type);
`

// NewSQLiteBackend opens (or creates) a catalog at path. An empty path
// opens an in-memory catalog for testing.
func NewSQLiteBackend(name, path string) (*SQLiteBackend, error) {
	dsn := ":memory:"
	var lock *storeLock
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
		var err error
		if lock, err = acquireStoreLock(path); err != nil {
			return nil, err
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		lock.release()
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	// The modernc driver serializes on a single connection; multiple
	// connections to :memory: would each get their own database.
	db.SetMaxOpenConns(1)

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil || check != "ok" {
		db.Close()
		lock.release()
		return nil, fmt.Errorf("catalog integrity check failed: %q %v", check, err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		lock.release()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	if name == "" {
		name = "sqlite"
	}
	return &SQLiteBackend{db: db, name: name, lock: lock}, nil
}

// Name implements the backend interface.
func (s *SQLiteBackend) Name() string { return s.name }

// Close releases the database handle and the store lock.
func (s *SQLiteBackend) Close() error {
	err := s.db.Close()
	if lerr := s.lock.release(); err == nil {
		err = lerr
	}
	return err
}

// Add upserts files into the catalog.
func (s *SQLiteBackend) Add(ctx context.Context, files ...*genomics.GenomicsFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (path, file_type, size_bytes, storage_class, last_modified, source_system, tags, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			file_type = excluded.file_type,
			size_bytes = excluded.size_bytes,
			storage_class = excluded.storage_class,
			last_modified = excluded.last_modified,
			source_system = excluded.source_system,
			tags = excluded.tags,
			metadata = excluded.metadata`)
	if err != nil {
		return fmt.Errorf("prepare catalog insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		tags, err := json.Marshal(orEmpty(f.Tags))
		if err != nil {
			return fmt.Errorf("marshal tags for %s: %w", f.Path, err)
		}
		meta, err := json.Marshal(orEmpty(f.Metadata))
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", f.Path, err)
		}
		if _, err := stmt.ExecContext(ctx,
			f.Path, string(f.FileType), f.SizeBytes, f.StorageClass,
			f.LastModified.UTC().Format(time.RFC3339), f.SourceSystem,
			string(tags), string(meta),
		); err != nil {
			return fmt.Errorf("insert %s: %w", f.Path, err)
		}
	}
	return tx.Commit()
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// Search returns every catalog row matching the query.
func (s *SQLiteBackend) Search(ctx context.Context, q genomics.Query) ([]*genomics.GenomicsFile, error) {
	where, args := buildWhere(q)
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, file_type, size_bytes, storage_class, last_modified, source_system, tags, metadata, rowid
		 FROM files `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	defer rows.Close()

	var out []*genomics.GenomicsFile
	for rows.Next() {
		f, _, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SearchPaginated returns one page of matching rows in rowid order.
// The token is the last rowid examined; rows are scanned until the
// buffer fills or the catalog ends.
func (s *SQLiteBackend) SearchPaginated(ctx context.Context, q genomics.Query, page genomics.BackendPageRequest) (*genomics.BackendPage, error) {
	afterRowid := int64(0)
	if page.ContinuationToken != "" {
		v, err := strconv.ParseInt(page.ContinuationToken, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid catalog continuation token %q: %w", page.ContinuationToken, err)
		}
		afterRowid = v
	}
	bufferSize := page.BufferSize
	if bufferSize <= 0 {
		bufferSize = 100
	}

	where, args := buildWhere(q)
	cond := "rowid > ?"
	if where == "" {
		where = "WHERE " + cond
	} else {
		where += " AND " + cond
	}
	args = append(args, afterRowid)

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, file_type, size_bytes, storage_class, last_modified, source_system, tags, metadata, rowid
		 FROM files `+where+` ORDER BY rowid LIMIT ?`, append(args, bufferSize+1)...)
	if err != nil {
		return nil, fmt.Errorf("catalog page query: %w", err)
	}
	defer rows.Close()

	out := &genomics.BackendPage{}
	lastRowid := afterRowid
	for rows.Next() {
		f, rowid, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out.TotalScanned++
		if len(out.Results) >= bufferSize {
			// The extra row only proves there is more data.
			out.HasMoreResults = true
			out.TotalScanned--
			break
		}
		out.Results = append(out.Results, f)
		lastRowid = rowid
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out.HasMoreResults {
		out.NextContinuationToken = strconv.FormatInt(lastRowid, 10)
	}
	return out, nil
}

// buildWhere renders the type filter and term matching into SQL. Terms
// match the path or the serialized tags, case-insensitively.
func buildWhere(q genomics.Query) (string, []any) {
	var conds []string
	var args []any

	if q.FileType != "" && q.FileType != genomics.FileTypeUnknown {
		conds = append(conds, "file_type = ?")
		args = append(args, string(q.FileType))
	}
	for _, term := range q.Terms {
		t := strings.TrimSpace(term)
		if t == "" {
			continue
		}
		conds = append(conds, "(path LIKE ? OR tags LIKE ?)")
		like := "%" + t + "%"
		args = append(args, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanFile(rows *sql.Rows) (*genomics.GenomicsFile, int64, error) {
	var (
		f        genomics.GenomicsFile
		ft       string
		modified string
		tagsJSON string
		metaJSON string
		rowid    int64
	)
	if err := rows.Scan(
		&f.Path, &ft, &f.SizeBytes, &f.StorageClass, &modified,
		&f.SourceSystem, &tagsJSON, &metaJSON, &rowid,
	); err != nil {
		return nil, 0, fmt.Errorf("scan catalog row: %w", err)
	}

	f.FileType = genomics.FileType(ft)
	if t, err := time.Parse(time.RFC3339, modified); err == nil {
		f.LastModified = t
	}
	if err := json.Unmarshal([]byte(tagsJSON), &f.Tags); err != nil {
		return nil, 0, fmt.Errorf("decode tags for %s: %w", f.Path, err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &f.Metadata); err != nil {
		return nil, 0, fmt.Errorf("decode metadata for %s: %w", f.Path, err)
	}
	return &f, rowid, nil
}
