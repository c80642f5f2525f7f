// Package storage persists uploaded artifacts on local disk and hands back
// opaque references.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Dir stores files under a single directory. The returned reference is the
// file path; callers treat it as opaque.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Store(data []byte, name string) (string, error) {
	// Timestamp prefix keeps same-named uploads from clobbering each other.
	filename := fmt.Sprintf("%d_%s", time.Now().Unix(), filepath.Base(name))
	path := filepath.Join(d.root, filename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}
