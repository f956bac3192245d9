package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirArtifacts stores model artifacts as flat files under one directory.
type DirArtifacts struct {
	dir string
}

// NewDirArtifacts creates an artifact store rooted at dir.
func NewDirArtifacts(dir string) *DirArtifacts {
	return &DirArtifacts{dir: dir}
}

// Save writes an artifact, creating the directory if needed.
func (a *DirArtifacts) Save(name string, data []byte) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("artifacts: failed to create %s: %w", a.dir, err)
	}
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("artifacts: failed to write %s: %w", name, err)
	}
	return nil
}

// Load reads an artifact by name.
func (a *DirArtifacts) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, name))
	if err != nil {
		return nil, fmt.Errorf("artifacts: failed to read %s: %w", name, err)
	}
	return data, nil
}
