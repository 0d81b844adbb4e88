package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Layout maps items onto the download tree:
//
//	<root>/<id>/<id>.json    manifest record
//	<root>/<id>/<file>       media files
//	<root>/<id>/*.txt        sidecars (tweet text), never media
type Layout struct {
	root string
}

func NewLayout(root string) *Layout {
	return &Layout{root: root}
}

// Root returns the download directory
func (l *Layout) Root() string {
	return l.root
}

// ItemDir returns the directory holding an item's files
func (l *Layout) ItemDir(id string) string {
	return filepath.Join(l.root, id)
}

// ManifestPath returns the path of an item's manifest record
func (l *Layout) ManifestPath(id string) string {
	return filepath.Join(l.ItemDir(id), id+".json")
}

// ListMedia returns the names of media files present for an item, leaving
// out the manifest record and text sidecars. Errors from the filesystem,
// including a missing directory, are returned unchanged so callers can
// tell them apart with os.IsNotExist.
func (l *Layout) ListMedia(id string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(l.ItemDir(id))
	if err != nil {
		return nil, err
	}

	manifestName := id + ".json"
	files := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == manifestName || strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		files[name] = struct{}{}
	}
	return files, nil
}

// HasFile reports whether an item's directory contains name
func (l *Layout) HasFile(id, name string) bool {
	info, err := os.Stat(filepath.Join(l.ItemDir(id), name))
	return err == nil && !info.IsDir()
}

// ItemIDs lists item directories under the root. Only all-digit names
// count as items; anything else (state directories, logs) is ignored.
// The result is sorted numerically.
func (l *Layout) ItemIDs() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && IsNumericID(entry.Name()) {
			ids = append(ids, entry.Name())
		}
	}
	SortIDs(ids)
	return ids, nil
}

// SaveFile writes r into the item's directory via a temporary file and
// rename, so an interrupted download never leaves a file that looks complete.
func (l *Layout) SaveFile(id, name string, r io.Reader) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid file name %q", name)
	}

	dir := l.ItemDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create item directory: %w", err)
	}

	out, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filepath.Join(dir, name)); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// IsNumericID reports whether s is a non-empty run of ASCII digits
func IsNumericID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SortIDs orders numeric ids by value without parsing them, since tweet
// ids can exceed what fits comfortably in a float.
func SortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := strings.TrimLeft(ids[i], "0"), strings.TrimLeft(ids[j], "0")
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
}
