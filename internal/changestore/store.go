// Package changestore archives the changelog produced by each checkout, one
// LZ4-compressed file per build, so change history survives daemon restarts
// and can be rendered later without touching the workspace.
package changestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/forgeline/gitgate/pkg/changelog"
)

// ErrNoChangelog is returned when a project has no archived changelog yet.
var ErrNoChangelog = errors.New("no changelog recorded")

const (
	archiveSuffix   = ".changelog.lz4"
	timestampFormat = "20060102T150405.000000000"
)

// Store keeps per-project changelog archives under a root directory.
type Store struct {
	root string
}

// New creates a Store rooted at dir, creating it when missing.
func New(dir string) (*Store, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create changelog dir %s: %w", dir, err)
	}

	return &Store{root: dir}, nil
}

// Write archives the change set for the project, stamped with the current
// time, and returns the archive path.
func (s *Store) Write(project string, set changelog.Set) (string, error) {
	dir := filepath.Join(s.root, project)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return "", fmt.Errorf("create project dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, time.Now().UTC().Format(timestampFormat)+archiveSuffix)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create changelog archive: %w", err)
	}

	zw := lz4.NewWriter(file)

	err = changelog.WriteRaw(zw, set)
	if err != nil {
		file.Close()

		return "", fmt.Errorf("write changelog archive: %w", err)
	}

	err = zw.Close()
	if err != nil {
		file.Close()

		return "", fmt.Errorf("flush changelog archive: %w", err)
	}

	err = file.Close()
	if err != nil {
		return "", fmt.Errorf("close changelog archive: %w", err)
	}

	return path, nil
}

// Latest reads back the most recent archive for the project, together with
// the time it was written.
func (s *Store) Latest(project string) (changelog.Set, time.Time, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, project))
	if errors.Is(err, os.ErrNotExist) {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrNoChangelog, project)
	}

	if err != nil {
		return nil, time.Time{}, fmt.Errorf("list changelog archives: %w", err)
	}

	var names []string

	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), archiveSuffix) {
			names = append(names, entry.Name())
		}
	}

	if len(names) == 0 {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrNoChangelog, project)
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)

	name := names[len(names)-1]

	written, err := time.Parse(timestampFormat, strings.TrimSuffix(name, archiveSuffix))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse archive timestamp %s: %w", name, err)
	}

	set, err := s.read(filepath.Join(s.root, project, name))
	if err != nil {
		return nil, time.Time{}, err
	}

	return set, written, nil
}

func (s *Store) read(path string) (changelog.Set, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open changelog archive: %w", err)
	}
	defer file.Close()

	set, err := changelog.Parse(lz4.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("read changelog archive %s: %w", path, err)
	}

	return set, nil
}
