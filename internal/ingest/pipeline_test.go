// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
)

// --- test helpers ---

func makeTar(t *testing.T, members map[string]string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		content := members[name]
		hdr := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func makeZip(t *testing.T, members map[string]string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(members[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func destFiles(t *testing.T, dest string) []string {
	t.Helper()
	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

// --- plain files ---

func TestSavePlainFile(t *testing.T) {
	dest := t.TempDir()
	p, err := NewPipeline(dest)
	if err != nil {
		t.Fatal(err)
	}

	result, err := p.Save([]File{{Name: "a.txt", Content: strings.NewReader("hello")}})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(result.NewlyAdded, []string{"a.txt"}) {
		t.Errorf("NewlyAdded = %v, want [a.txt]", result.NewlyAdded)
	}
	if len(result.AlreadyExists) != 0 || len(result.Overwritten) != 0 || result.HasFailures() {
		t.Errorf("unexpected result: %+v", result)
	}

	data, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("destination content = %q, want hello", data)
	}
}

func TestSaveDropsUnrecognizedFile(t *testing.T) {
	dest := t.TempDir()
	p, err := NewPipeline(dest)
	if err != nil {
		t.Fatal(err)
	}

	result, err := p.Save([]File{{Name: "tool.exe", Content: strings.NewReader("MZ")}})
	if err != nil {
		t.Fatal(err)
	}

	if result.Total() != 0 || result.HasFailures() {
		t.Errorf("unexpected result for unrecognized file: %+v", result)
	}
	if files := destFiles(t, dest); len(files) != 0 {
		t.Errorf("destination holds %v, want nothing", files)
	}
}

func TestSaveCustomFileTypes(t *testing.T) {
	dest := t.TempDir()
	p, err := NewPipeline(dest, WithFileTypes([]string{".md"}))
	if err != nil {
		t.Fatal(err)
	}

	result, err := p.Save([]File{
		{Name: "notes.md", Content: strings.NewReader("# notes")},
		{Name: "a.txt", Content: strings.NewReader("dropped now")},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(sorted(result.NewlyAdded), []string{"notes.md"}) {
		t.Errorf("NewlyAdded = %v, want [notes.md]", result.NewlyAdded)
	}
}

// --- collision policy ---

func TestCollisionPolicy(t *testing.T) {
	tests := []struct {
		name         string
		override     bool
		wantList     func(Result) []string
		wantContents string
	}{
		{
			name:         "override disabled keeps destination bytes",
			override:     false,
			wantList:     func(r Result) []string { return r.AlreadyExists },
			wantContents: "original",
		},
		{
			name:         "override enabled replaces destination bytes",
			override:     true,
			wantList:     func(r Result) []string { return r.Overwritten },
			wantContents: "updated",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := t.TempDir()
			if err := os.WriteFile(filepath.Join(dest, "a.txt"), []byte("original"), 0o644); err != nil {
				t.Fatal(err)
			}

			p, err := NewPipeline(dest, WithOverride(tt.override))
			if err != nil {
				t.Fatal(err)
			}

			result, err := p.Save([]File{{Name: "a.txt", Content: strings.NewReader("updated")}})
			if err != nil {
				t.Fatal(err)
			}

			if got := tt.wantList(result); !reflect.DeepEqual(got, []string{"a.txt"}) {
				t.Errorf("classification list = %v, want [a.txt] (result %+v)", got, result)
			}
			if len(result.NewlyAdded) != 0 {
				t.Errorf("NewlyAdded = %v, want empty", result.NewlyAdded)
			}

			data, err := os.ReadFile(filepath.Join(dest, "a.txt"))
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.wantContents {
				t.Errorf("destination content = %q, want %q", data, tt.wantContents)
			}
		})
	}
}

// --- archives ---

func TestArchiveMemberFiltering(t *testing.T) {
	dest := t.TempDir()
	p, err := NewPipeline(dest)
	if err != nil {
		t.Fatal(err)
	}

	archive := makeTar(t, map[string]string{
		"b.txt": "keep me",
		"b.exe": "drop me",
	})
	result, err := p.Save([]File{{Name: "b.tar", Content: archive}})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(result.NewlyAdded, []string{"b.txt"}) {
		t.Errorf("NewlyAdded = %v, want [b.txt]", result.NewlyAdded)
	}
	if files := destFiles(t, dest); !reflect.DeepEqual(files, []string{"b.txt"}) {
		t.Errorf("destination holds %v, want only b.txt", files)
	}
}

func TestZipArchive(t *testing.T) {
	dest := t.TempDir()
	p, err := NewPipeline(dest)
	if err != nil {
		t.Fatal(err)
	}

	archive := makeZip(t, map[string]string{
		"c.json": `{"ok":true}`,
		"c.bin":  "nope",
	})
	result, err := p.Save([]File{{Name: "c.zip", Content: archive}})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(result.NewlyAdded, []string{"c.json"}) {
		t.Errorf("NewlyAdded = %v, want [c.json]", result.NewlyAdded)
	}
}

func TestNestedArchiveEntryFlattened(t *testing.T) {
	dest := t.TempDir()
	p, err := NewPipeline(dest)
	if err != nil {
		t.Fatal(err)
	}

	archive := makeTar(t, map[string]string{"docs/deep/c.txt": "nested"})
	result, err := p.Save([]File{{Name: "c.tar", Content: archive}})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(result.NewlyAdded, []string{"docs_deep_c.txt"}) {
		t.Errorf("NewlyAdded = %v, want [docs_deep_c.txt]", result.NewlyAdded)
	}
	data, err := os.ReadFile(filepath.Join(dest, "docs_deep_c.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "nested" {
		t.Errorf("flattened file content = %q", data)
	}
}

func TestCorruptArchiveFailsOnlyItsOwnTask(t *testing.T) {
	dest := t.TempDir()
	p, err := NewPipeline(dest)
	if err != nil {
		t.Fatal(err)
	}

	result, err := p.Save([]File{
		{Name: "broken.tar", Content: strings.NewReader("this is not a tar archive at all")},
		{Name: "a.txt", Content: strings.NewReader("fine")},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Failed) != 1 || result.Failed[0].Name != "broken.tar" {
		t.Fatalf("Failed = %+v, want one entry for broken.tar", result.Failed)
	}
	if result.Failed[0].Err == nil {
		t.Error("failed entry should carry the task error")
	}
	if !reflect.DeepEqual(result.NewlyAdded, []string{"a.txt"}) {
		t.Errorf("NewlyAdded = %v, want sibling a.txt to survive", result.NewlyAdded)
	}
}

func TestArchiveEntryEscapingCacheRejected(t *testing.T) {
	dest := t.TempDir()
	p, err := NewPipeline(dest)
	if err != nil {
		t.Fatal(err)
	}

	archive := makeTar(t, map[string]string{"../evil.txt": "escape"})
	result, err := p.Save([]File{{Name: "evil.tar", Content: archive}})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Failed) != 1 {
		t.Fatalf("Failed = %+v, want the escaping archive rejected", result.Failed)
	}
	if _, err := os.Stat(filepath.Join(dest, "evil.txt")); !os.IsNotExist(err) {
		t.Error("escaping member must not be written outside the cache")
	}
}

// --- end to end ---

func TestEndToEnd(t *testing.T) {
	dest := t.TempDir()
	p, err := NewPipeline(dest)
	if err != nil {
		t.Fatal(err)
	}

	archive := makeTar(t, map[string]string{
		"b.txt": "from archive",
		"b.exe": "binary",
	})
	result, err := p.Save([]File{
		{Name: "a.txt", Content: strings.NewReader("plain")},
		{Name: "b.tar", Content: archive},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := sorted(result.NewlyAdded); !reflect.DeepEqual(got, []string{"a.txt", "b.txt"}) {
		t.Errorf("NewlyAdded = %v, want [a.txt b.txt]", got)
	}
	if len(result.AlreadyExists) != 0 || len(result.Overwritten) != 0 || result.HasFailures() {
		t.Errorf("unexpected classifications: %+v", result)
	}

	if files := destFiles(t, dest); !reflect.DeepEqual(files, []string{"a.txt", "b.txt"}) {
		t.Errorf("destination holds %v, want exactly [a.txt b.txt]", files)
	}

	if _, err := os.Stat(filepath.Join(dest, cacheDirName)); !os.IsNotExist(err) {
		t.Error("scratch cache directory must not exist after the batch")
	}
}

func TestSaveStaleCacheDiscarded(t *testing.T) {
	dest := t.TempDir()
	cache := filepath.Join(dest, cacheDirName)
	if err := os.MkdirAll(cache, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cache, "stale.txt"), []byte("leftover"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := NewPipeline(dest)
	if err != nil {
		t.Fatal(err)
	}
	result, err := p.Save([]File{{Name: "fresh.txt", Content: strings.NewReader("fresh")}})
	if err != nil {
		t.Fatal(err)
	}

	// The stale cache entry from a previous interrupted batch is gone, not promoted.
	if !reflect.DeepEqual(result.NewlyAdded, []string{"fresh.txt"}) {
		t.Errorf("NewlyAdded = %v, want [fresh.txt]", result.NewlyAdded)
	}
	if files := destFiles(t, dest); !reflect.DeepEqual(files, []string{"fresh.txt"}) {
		t.Errorf("destination holds %v, want only fresh.txt", files)
	}
}

func TestSaveLargeBatchBoundedPool(t *testing.T) {
	dest := t.TempDir()
	p, err := NewPipeline(dest, WithPoolSize(2))
	if err != nil {
		t.Fatal(err)
	}

	var files []File
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("file-%02d.txt", i)
		files = append(files, File{Name: name, Content: strings.NewReader(name)})
	}
	result, err := p.Save(files)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.NewlyAdded) != 20 {
		t.Errorf("got %d newly added, want 20", len(result.NewlyAdded))
	}
}
