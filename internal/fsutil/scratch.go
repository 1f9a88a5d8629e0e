package fsutil

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
)

// ErrInvalidName is returned for scratch names that are empty or would leave
// the scratch directory.
var ErrInvalidName = errors.New("invalid scratch name")

// Scratch is a private per-request working directory. Remove deletes it and
// everything in it; it is safe to call more than once.
type Scratch struct {
	fs  FileSystem
	dir string
}

// NewScratch creates root/id. id must be a single path element.
func NewScratch(fsys FileSystem, root, id string) (*Scratch, error) {
	if !validName(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, id)
	}
	dir := filepath.Join(root, id)
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Scratch{fs: fsys, dir: dir}, nil
}

// Dir returns the scratch directory.
func (s *Scratch) Dir() string { return s.dir }

// Path returns the path of name inside the scratch directory.
func (s *Scratch) Path(name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

// Create creates name inside the scratch directory and returns its path.
func (s *Scratch) Create(name string) (io.WriteCloser, string, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, "", err
	}
	w, err := s.fs.Create(path)
	if err != nil {
		return nil, "", err
	}
	return w, path, nil
}

// Remove deletes the scratch directory.
func (s *Scratch) Remove() error {
	return s.fs.RemoveAll(s.dir)
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}
