// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractTar expands a tar upload into the cache directory, keeping only
// members with a recognized suffix. A malformed archive fails this task
// alone; sibling tasks in the batch are unaffected.
func (p *Pipeline) extractTar(f File, cacheDir string) ([]string, error) {
	var names []string
	tr := tar.NewReader(f.Content)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive %s: %w", f.Name, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if !p.recognized(hdr.Name) {
			continue
		}
		if err := p.writeMember(cacheDir, hdr.Name, tr); err != nil {
			return nil, fmt.Errorf("extracting %s from %s: %w", hdr.Name, f.Name, err)
		}
		names = append(names, hdr.Name)
	}
	return names, nil
}

// extractZip expands a zip upload into the cache directory with the same
// member filter as extractTar. Zip needs random access, so the content
// is buffered first.
func (p *Pipeline) extractZip(f File, cacheDir string) ([]string, error) {
	data, err := io.ReadAll(f.Content)
	if err != nil {
		return nil, fmt.Errorf("reading archive %s: %w", f.Name, err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", f.Name, err)
	}

	var names []string
	for _, member := range zr.File {
		if member.FileInfo().IsDir() {
			continue
		}
		if !p.recognized(member.Name) {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s in %s: %w", member.Name, f.Name, err)
		}
		werr := p.writeMember(cacheDir, member.Name, rc)
		rc.Close()
		if werr != nil {
			return nil, fmt.Errorf("extracting %s from %s: %w", member.Name, f.Name, werr)
		}
		names = append(names, member.Name)
	}
	return names, nil
}

// writeMember writes one archive member under cacheDir, preserving its
// relative path. Member names that escape the cache directory are
// rejected.
func (p *Pipeline) writeMember(cacheDir, name string, r io.Reader) error {
	path := filepath.Join(cacheDir, filepath.FromSlash(name))
	if !strings.HasPrefix(path, filepath.Clean(cacheDir)+string(os.PathSeparator)) {
		return fmt.Errorf("member name %q escapes the cache directory", name)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating member directory: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
