// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docbase/pkg/types"
)

// ExportSnapshot is the on-disk shape of a catalog export.
type ExportSnapshot struct {
	Documents []types.Document `json:"documents" yaml:"documents"`
	Groups    []ExportGroup    `json:"groups" yaml:"groups"`
}

// ExportGroup holds one group and its memberships.
type ExportGroup struct {
	Name  string            `json:"name" yaml:"name"`
	Files []types.GroupFile `json:"files" yaml:"files"`
}

// Snapshot reads the full catalog through any backend. It is the
// backend-agnostic half of ExportYAML, shared with tests.
func Snapshot(ctx context.Context, r Registry) (*ExportSnapshot, error) {
	docs, err := r.ListFiles(ctx, ListOptions{Details: true})
	if err != nil {
		return nil, fmt.Errorf("exporting documents: %w", err)
	}

	groups, err := r.ListAllGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporting groups: %w", err)
	}

	snap := &ExportSnapshot{Documents: docs}
	for _, name := range groups {
		files, err := r.ListGroupFiles(ctx, name, ListOptions{Details: true})
		if err != nil {
			return nil, fmt.Errorf("exporting group %s: %w", name, err)
		}
		snap.Groups = append(snap.Groups, ExportGroup{Name: name, Files: files})
	}
	return snap, nil
}

// ExportYAML writes the full catalog to path as YAML.
func ExportYAML(ctx context.Context, r Registry, path string) error {
	snap, err := Snapshot(ctx, r)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
