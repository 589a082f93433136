// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/docbase/pkg/types"
)

const (
	dbDirName    = "dbs"
	dbFilePrefix = "docbase."
)

func init() {
	RegisterBackend("sqlite", newSQLite)
}

// sqliteRegistry implements Registry on an embedded SQLite database.
// database/sql hands each concurrent caller its own pooled connection,
// and every mutating operation runs in a transaction, so no partial
// multi-statement write is observed by readers.
type sqliteRegistry struct {
	db     *sql.DB
	dir    string
	dbPath string
}

// newSQLite opens (or creates) the backing store for cfg. The database
// file name is derived from the registry identity, so distinct
// (name, dir) pairs never share a store.
func newSQLite(cfg types.RegistryConfig) (Registry, error) {
	stateDir := cfg.StateDir
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		stateDir = filepath.Join(home, ".config", "docbase")
	}

	dbDir := filepath.Join(stateDir, dbDirName)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFilePrefix+Identity(cfg.Name, cfg.Dir)+".db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &sqliteRegistry{db: db, dir: cfg.Dir, dbPath: dbPath}, nil
}

// InitTables bootstraps a fresh store: schema, one document row per file
// already under the corpus root (status success, treated as ingested),
// and a default-group membership for each. Running it against an
// initialized store is a no-op, so a directory is cataloged exactly once.
func (r *sqliteRegistry) InitTables(ctx context.Context) error {
	inited, err := r.tableInited(ctx)
	if err != nil {
		return err
	}
	if inited {
		return nil
	}

	if err := r.createSchema(ctx); err != nil {
		return err
	}

	var files []string
	err = filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		// A corpus directory that does not exist yet catalogs as empty.
		if os.IsNotExist(err) {
			files = nil
		} else {
			return fmt.Errorf("walking corpus directory %s: %w", r.dir, err)
		}
	}

	if err := r.AddFiles(ctx, files, AddOptions{Status: types.StatusSuccess}); err != nil {
		return err
	}
	if err := r.AddGroup(ctx, DefaultGroup); err != nil {
		return err
	}
	return r.AddFilesToGroup(ctx, files, DefaultGroup)
}

func (r *sqliteRegistry) tableInited(ctx context.Context) (bool, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name='documents'`,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking schema: %w", err)
	}
	return true, nil
}

func (r *sqliteRegistry) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			path TEXT NOT NULL,
			metadata TEXT,
			status TEXT,
			count INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS document_groups (
			group_id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS kb_group_documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL,
			group_name TEXT NOT NULL,
			classification TEXT,
			status TEXT,
			log TEXT,
			UNIQUE(doc_id, group_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_kb_group_documents_group
			ON kb_group_documents(group_name)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// withTx runs fn in a transaction that commits on success and rolls
// back on any failure.
func (r *sqliteRegistry) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *sqliteRegistry) ListFiles(ctx context.Context, opts ListOptions) ([]types.Document, error) {
	cols := "doc_id, path"
	if opts.Details {
		cols = "doc_id, filename, path, metadata, status, count"
	}

	query := "SELECT " + cols + " FROM documents"
	var args []any
	if opts.Status != "" && opts.Status != types.StatusAll {
		query += " WHERE status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var d types.Document
		if opts.Details {
			var metadata, status sql.NullString
			if err := rows.Scan(&d.DocID, &d.Filename, &d.Path, &metadata, &status, &d.Count); err != nil {
				return nil, fmt.Errorf("scanning document row: %w", err)
			}
			d.Metadata = metadata.String
			d.Status = types.Status(status.String)
		} else {
			if err := rows.Scan(&d.DocID, &d.Path); err != nil {
				return nil, fmt.Errorf("scanning document row: %w", err)
			}
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *sqliteRegistry) ListAllGroups(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT group_name FROM document_groups`)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		groups = append(groups, name)
	}
	return groups, rows.Err()
}

func (r *sqliteRegistry) AddGroup(ctx context.Context, name string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO document_groups (group_name) VALUES (?)`, name)
		if err != nil {
			return fmt.Errorf("adding group %s: %w", name, err)
		}
		return nil
	})
}

func (r *sqliteRegistry) ListGroupFiles(ctx context.Context, group string, opts ListOptions) ([]types.GroupFile, error) {
	query := `SELECT kb_group_documents.doc_id, documents.path, kb_group_documents.group_name,
		kb_group_documents.classification, kb_group_documents.status, kb_group_documents.log
		FROM kb_group_documents
		JOIN documents ON kb_group_documents.doc_id = documents.doc_id`

	var conds []string
	var args []any
	if group != "" {
		conds = append(conds, "kb_group_documents.group_name = ?")
		args = append(args, group)
	}
	if opts.Status != "" && opts.Status != types.StatusAll {
		conds = append(conds, "kb_group_documents.status = ?")
		args = append(args, string(opts.Status))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing group files: %w", err)
	}
	defer rows.Close()

	var files []types.GroupFile
	for rows.Next() {
		var f types.GroupFile
		var classification, status, log sql.NullString
		if err := rows.Scan(&f.DocID, &f.Path, &f.Group, &classification, &status, &log); err != nil {
			return nil, fmt.Errorf("scanning group file row: %w", err)
		}
		if opts.Details {
			f.Classification = classification.String
			f.Status = types.Status(status.String)
			f.Log = log.String
		} else {
			f = types.GroupFile{DocID: f.DocID, Path: f.Path}
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// AddFiles registers one document per path using INSERT OR IGNORE, so a
// path already in the catalog keeps its existing row. This makes
// concurrent duplicate-path ingestion race-safe: the first writer wins
// and later writers are no-ops.
func (r *sqliteRegistry) AddFiles(ctx context.Context, paths []string, opts AddOptions) error {
	status := opts.Status
	if status == "" {
		status = types.StatusWaiting
	}
	if !status.Storable() {
		return fmt.Errorf("invalid document status %q", status)
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		for i, path := range paths {
			metadata := ""
			if i < len(opts.Metadata) {
				metadata = opts.Metadata[i]
			}
			docID := DocID(path)
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO documents (doc_id, filename, path, metadata, status, count)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				docID, filepath.Base(path), path, metadata, string(status), 1)
			if err != nil {
				return fmt.Errorf("adding document: %w\n args are:\n    %v(%T), %v(%T), %v(%T), %v(%T)",
					err, docID, docID, filepath.Base(path), filepath.Base(path), path, path, metadata, metadata)
			}
		}
		return nil
	})
}

// patchableColumns lists the document columns UpdateFileMessage may set.
// doc_id and path are immutable once a document exists.
var patchableColumns = map[string]bool{
	"filename": true,
	"metadata": true,
	"status":   true,
	"count":    true,
}

func (r *sqliteRegistry) UpdateFileMessage(ctx context.Context, docID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !patchableColumns[col] {
			return fmt.Errorf("column %q is not patchable", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	setClauses := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		setClauses[i] = col + " = ?"
		args = append(args, fields[col])
	}
	args = append(args, docID)

	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"UPDATE documents SET "+strings.Join(setClauses, ", ")+" WHERE doc_id = ?", args...)
		if err != nil {
			return fmt.Errorf("updating document %s: %w", docID, err)
		}
		return nil
	})
}

func (r *sqliteRegistry) AddFilesToGroup(ctx context.Context, paths []string, group string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, path := range paths {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO kb_group_documents (doc_id, group_name, status)
				 VALUES (?, ?, ?)`,
				DocID(path), group, string(types.StatusWaiting))
			if err != nil {
				return fmt.Errorf("adding %s to group %s: %w", path, group, err)
			}
		}
		return nil
	})
}

func (r *sqliteRegistry) DeleteFiles(ctx context.Context, paths []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, path := range paths {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM documents WHERE doc_id = ?`, DocID(path)); err != nil {
				return fmt.Errorf("deleting document %s: %w", path, err)
			}
		}
		return nil
	})
}

func (r *sqliteRegistry) DeleteFilesFromGroup(ctx context.Context, paths []string, group string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, path := range paths {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM kb_group_documents WHERE doc_id = ? AND group_name = ?`,
				DocID(path), group); err != nil {
				return fmt.Errorf("deleting %s from group %s: %w", path, group, err)
			}
		}
		return nil
	})
}

func (r *sqliteRegistry) FileStatus(ctx context.Context, docID string) (types.Status, error) {
	var status sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM documents WHERE doc_id = ?`, docID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	if err != nil {
		return "", fmt.Errorf("reading status of %s: %w", docID, err)
	}
	return types.Status(status.String), nil
}

func (r *sqliteRegistry) UpdateFileStatus(ctx context.Context, docID string, status types.Status) error {
	if !status.Storable() {
		return fmt.Errorf("invalid document status %q", status)
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE documents SET status = ? WHERE doc_id = ?`, string(status), docID)
		if err != nil {
			return fmt.Errorf("updating status of %s: %w", docID, err)
		}
		return nil
	})
}

// UpdateGroupFileStatus updates all named memberships in one batch
// statement. A failure is wrapped with every argument's value and type,
// because malformed batch calls are otherwise painful to diagnose.
func (r *sqliteRegistry) UpdateGroupFileStatus(ctx context.Context, group string, docIDs []string, status types.Status) error {
	if len(docIDs) == 0 {
		return nil
	}
	if !status.Storable() {
		return fmt.Errorf("invalid membership status %q", status)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(docIDs)), ",")
	args := make([]any, 0, len(docIDs)+2)
	args = append(args, string(status), group)
	for _, id := range docIDs {
		args = append(args, id)
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE kb_group_documents SET status = ? WHERE group_name = ? AND doc_id IN (`+placeholders+`)`,
			args...)
		if err != nil {
			return fmt.Errorf("updating group file status: %w\n args are:\n    %v(%T), %v(%T), %v(%T)",
				err, status, status, group, group, docIDs, docIDs)
		}
		return nil
	})
}

// Release closes the connection and removes the backing store from disk,
// including the WAL sidecar files.
func (r *sqliteRegistry) Release(ctx context.Context) error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	for _, path := range []string{r.dbPath, r.dbPath + "-wal", r.dbPath + "-shm"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

func (r *sqliteRegistry) Close() error {
	return r.db.Close()
}
