// Package poll decides whether a project needs a build: it compares the
// fetched tip of the configured branch against the last revision a build
// consumed, persisted across daemon restarts.
package poll

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// RevisionStore persists the last built revision per project.
type RevisionStore interface {
	// Last returns the last built revision for the project, or the empty
	// string when no build has ever recorded one.
	Last(project string) (string, error)

	// SetLast records the revision the project was last built from.
	SetLast(project, revision string) error
}

// FileStore keeps one JSON state file per project under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it when missing.
func NewFileStore(dir string) (*FileStore, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}

	return &FileStore{dir: dir}, nil
}

type projectState struct {
	LastBuiltRevision string `json:"last_built_revision"`
}

func (s *FileStore) path(project string) string {
	return filepath.Join(s.dir, project+".json")
}

// Last reads the recorded revision for the project. A missing state file is
// not an error: the project simply has no build history yet.
func (s *FileStore) Last(project string) (string, error) {
	data, err := os.ReadFile(s.path(project))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("read state for %s: %w", project, err)
	}

	var state projectState

	err = json.Unmarshal(data, &state)
	if err != nil {
		return "", fmt.Errorf("parse state for %s: %w", project, err)
	}

	return state.LastBuiltRevision, nil
}

// SetLast writes the revision atomically via a rename.
func (s *FileStore) SetLast(project, revision string) error {
	data, err := json.Marshal(projectState{LastBuiltRevision: revision})
	if err != nil {
		return fmt.Errorf("encode state for %s: %w", project, err)
	}

	tmp := s.path(project) + ".tmp"

	err = os.WriteFile(tmp, data, 0o644)
	if err != nil {
		return fmt.Errorf("write state for %s: %w", project, err)
	}

	err = os.Rename(tmp, s.path(project))
	if err != nil {
		return fmt.Errorf("commit state for %s: %w", project, err)
	}

	return nil
}
