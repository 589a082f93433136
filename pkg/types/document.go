// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Status tracks the processing state of a document or of one
// document-group membership.
type Status string

const (
	// StatusAll is a filter value only; it is never stored in a row.
	StatusAll Status = "all"

	StatusWaiting  Status = "waiting"
	StatusWorking  Status = "working"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusDeleting Status = "deleting"
	StatusDeleted  Status = "deleted"
)

// storableStatuses lists the states a row may actually hold.
var storableStatuses = map[Status]bool{
	StatusWaiting:  true,
	StatusWorking:  true,
	StatusSuccess:  true,
	StatusFailed:   true,
	StatusDeleting: true,
	StatusDeleted:  true,
}

// Storable reports whether s may be written to a document or membership row.
func (s Status) Storable() bool {
	return storableStatuses[s]
}

// ValidFilter reports whether s is usable as a listing filter, which is
// every storable status plus StatusAll.
func (s Status) ValidFilter() bool {
	return s == StatusAll || s.Storable()
}

// Document holds one row of the document catalog. A document is identified
// by the SHA-256 of its absolute path, so the same path always maps to the
// same row across restarts.
type Document struct {
	// DocID is the deterministic identifier derived from Path.
	DocID string `json:"doc_id" yaml:"doc_id"`

	// Filename is the base name of the file.
	Filename string `json:"filename" yaml:"filename"`

	// Path is the absolute path the document was registered under.
	Path string `json:"path" yaml:"path"`

	// Metadata is an opaque blob supplied by the caller at registration.
	Metadata string `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Status is the document-level processing state.
	Status Status `json:"status" yaml:"status"`

	// Count is the document reference count.
	Count int `json:"count" yaml:"count"`
}

// GroupFile joins one document to one knowledge-base group. Its Status is
// independent of the document's own status: a document can be mid-processing
// in one group while already finalized in another.
type GroupFile struct {
	DocID string `json:"doc_id" yaml:"doc_id"`
	Path  string `json:"path" yaml:"path"`

	// Group is the knowledge-base group name.
	Group string `json:"group" yaml:"group"`

	// Classification is a free-form tag scoped to this membership.
	Classification string `json:"classification,omitempty" yaml:"classification,omitempty"`

	// Status is the membership-level processing state.
	Status Status `json:"status" yaml:"status"`

	// Log holds free-text processing notes for this membership.
	Log string `json:"log,omitempty" yaml:"log,omitempty"`
}
