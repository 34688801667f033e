package persist

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// DirPerm is the permission of created directories.
	DirPerm fs.FileMode = 0o755

	// FilePerm is the permission of written files.
	FilePerm fs.FileMode = 0o644
)

// Renderer serializes a document.
type Renderer interface {
	Render(w io.Writer) error
}

// Store writes files under caller supplied paths. It keeps no state
// between calls and is safe for concurrent use on distinct paths.
type Store struct {
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store.
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// EnsureDir creates path and any missing parents. It succeeds when path is
// already a directory and fails with ErrNotDirectory when it is a file.
func (s *Store) EnsureDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%s: %w", path, ErrNotDirectory)
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if err := os.MkdirAll(path, DirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	s.logger.Debug("directory created", "path", path)
	return nil
}

// WriteFile writes data to path, replacing any existing file.
func (s *Store) WriteFile(path string, data []byte) error {
	_, err := s.WriteStream(path, bytes.NewReader(data))
	return err
}

// WriteStream copies r into path and returns the number of bytes written.
// The target is only replaced once r has been read to EOF.
func (s *Store) WriteStream(path string, r io.Reader) (int64, error) {
	var n int64
	err := s.writeAtomic(path, func(w io.Writer) error {
		var err error
		n, err = io.Copy(w, r)
		return err
	})
	if err != nil {
		return n, err
	}
	s.logger.Debug("file written", "path", path, "bytes", n)
	return n, nil
}

// WriteMarkup renders doc into path.
func (s *Store) WriteMarkup(path string, doc Renderer) error {
	if err := s.writeAtomic(path, doc.Render); err != nil {
		return err
	}
	s.logger.Debug("markup written", "path", path)
	return nil
}

// writeAtomic runs fill against a temporary file in path's directory and
// renames it to path when fill and close both succeed.
func (s *Store) writeAtomic(path string, fill func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if err = fill(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmpName, FilePerm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
