// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry tracks documents and their processing status across
// named knowledge-base groups. The Registry interface is the storage
// contract; concrete backends register themselves with the resolver and
// are selected by name at open time.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/pdiddy/docbase/pkg/types"
)

// DefaultGroup is the knowledge-base group every registered file joins
// during the initial bootstrap.
const DefaultGroup = "__default__"

// ListOptions filter listing calls. The zero value means no row cap,
// no status filter, and minimal rows.
type ListOptions struct {
	// Limit caps the number of rows returned; 0 means no cap.
	Limit int

	// Status restricts rows to one state. Empty or StatusAll disables
	// the filter.
	Status types.Status

	// Details requests full rows. When false only identifier and path
	// are populated.
	Details bool
}

// AddOptions control document registration.
type AddOptions struct {
	// Metadata supplies one opaque blob per path, matched by index.
	// May be nil or shorter than the path list.
	Metadata []string

	// Status is the initial document status (default StatusWaiting).
	Status types.Status
}

// Registry is the catalog contract. One registry instance tracks one
// corpus directory within a single process; all mutations go through it.
type Registry interface {
	// InitTables is idempotent setup. On a fresh backing store it creates
	// the schema, registers every file under the corpus root with status
	// success, and attaches each to DefaultGroup. When the schema already
	// exists it does nothing.
	InitTables(ctx context.Context) error

	// ListFiles returns document rows, filtered per opts.
	ListFiles(ctx context.Context, opts ListOptions) ([]types.Document, error)

	// ListAllGroups returns every knowledge-base group name.
	ListAllGroups(ctx context.Context) ([]string, error)

	// AddGroup creates a group; adding an existing group is a no-op.
	AddGroup(ctx context.Context, name string) error

	// ListGroupFiles returns membership rows joined with the document
	// path. An empty group matches all groups. The status filter applies
	// to the membership status, not the document status.
	ListGroupFiles(ctx context.Context, group string, opts ListOptions) ([]types.GroupFile, error)

	// AddFiles registers documents for the given absolute paths. Paths
	// already known are left untouched.
	AddFiles(ctx context.Context, paths []string, opts AddOptions) error

	// UpdateFileMessage patches individual document columns by name.
	UpdateFileMessage(ctx context.Context, docID string, fields map[string]any) error

	// AddFilesToGroup creates memberships with status waiting. Existing
	// memberships are left untouched.
	AddFilesToGroup(ctx context.Context, paths []string, group string) error

	// DeleteFiles hard-deletes the document rows for the given paths.
	DeleteFiles(ctx context.Context, paths []string) error

	// DeleteFilesFromGroup hard-deletes the matching membership rows.
	DeleteFilesFromGroup(ctx context.Context, paths []string, group string) error

	// FileStatus reads one document's status.
	FileStatus(ctx context.Context, docID string) (types.Status, error)

	// UpdateFileStatus writes one document's status.
	UpdateFileStatus(ctx context.Context, docID string, status types.Status) error

	// UpdateGroupFileStatus sets the membership status for one or many
	// documents within a group in a single batch statement.
	UpdateGroupFileStatus(ctx context.Context, group string, docIDs []string, status types.Status) error

	// Release closes the registry and destroys its backing store.
	// Irreversible; intended for ephemeral or test-only registries.
	Release(ctx context.Context) error

	// Close releases resources without touching the backing store.
	Close() error
}

// ErrNotFound is returned when a lookup names a document the catalog
// does not hold.
var ErrNotFound = fmt.Errorf("document not found")

// DocID returns the deterministic document identifier for a path: the
// hex SHA-256 of the path string. The same path always yields the same
// identifier, across process restarts.
func DocID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

// Identity derives the stable backend identity for a (name, dir) pair.
// Backends use it to name their backing store, so distinct registries
// never collide on disk.
func Identity(name, dir string) string {
	sum := sha256.Sum256([]byte(name + "@+@" + dir))
	return hex.EncodeToString(sum[:])
}

// validate rejects bad configuration before any I/O happens.
func validate(cfg types.RegistryConfig) error {
	if !filepath.IsAbs(cfg.Dir) {
		return fmt.Errorf("registry directory must be an absolute path, got %q", cfg.Dir)
	}
	return nil
}
