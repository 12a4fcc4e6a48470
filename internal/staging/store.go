// Package staging implements the local holding area for downloaded resources
// awaiting upload. It is a flat directory: one regular file per staged
// resource, named by its filename. Hidden files are in-flight writes and are
// never reported as staged.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

const (
	dirPerm    = 0o755
	tempPrefix = ".staging-"
)

// ErrExists is returned by Write when the name is already staged.
var ErrExists = errors.New("staging: file already exists")

// StagedFile is a file sitting in the staging directory.
type StagedFile struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Store is the staging directory.
type Store struct {
	fs billy.Filesystem
}

// Open returns a Store rooted at dir on the local disk, creating the
// directory if it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	return New(osfs.New(dir)), nil
}

// New returns a Store over an arbitrary billy filesystem.
func New(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// Exists reports whether name is staged.
func (s *Store) Exists(name string) (bool, error) {
	_, err := s.fs.Stat(name)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat %s: %w", name, err)
	}
}

// Stat returns the staged file called name.
func (s *Store) Stat(name string) (StagedFile, error) {
	info, err := s.fs.Stat(name)
	if err != nil {
		return StagedFile{}, fmt.Errorf("failed to stat %s: %w", name, err)
	}

	return s.stagedFile(info), nil
}

// List returns the staged files, sorted by name.
func (s *Store) List() ([]StagedFile, error) {
	return s.scan(func(name string) bool { return !strings.HasPrefix(name, ".") })
}

// TempFiles returns in-flight write files, typically left over by an
// interrupted run.
func (s *Store) TempFiles() ([]StagedFile, error) {
	return s.scan(func(name string) bool { return strings.HasPrefix(name, tempPrefix) })
}

func (s *Store) scan(keep func(name string) bool) ([]StagedFile, error) {
	infos, err := s.fs.ReadDir("")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list staging directory: %w", err)
	}

	files := make([]StagedFile, 0, len(infos))

	for _, info := range infos {
		if !info.Mode().IsRegular() || !keep(info.Name()) {
			continue
		}

		files = append(files, s.stagedFile(info))
	}

	return files, nil
}

// Open opens a staged file for reading.
func (s *Store) Open(name string) (billy.File, error) {
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}

	return f, nil
}

// ReadAll loads a staged file into memory.
func (s *Store) ReadAll(name string) ([]byte, error) {
	f, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	return data, nil
}

// Write stages the content of r under name. The content is written to a
// hidden temp file first and renamed into place once complete, so name never
// refers to a partial file. Write never overwrites an existing file.
func (s *Store) Write(name string, r io.Reader) (int64, error) {
	exists, err := s.Exists(name)
	if err != nil {
		return 0, err
	}

	if exists {
		return 0, fmt.Errorf("%s: %w", name, ErrExists)
	}

	tmp, err := s.fs.TempFile("", tempPrefix+name+".")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}

	tmpName := filepath.Base(tmp.Name())

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = s.fs.Remove(tmpName)

		return n, fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := s.fs.Rename(tmpName, name); err != nil {
		_ = s.fs.Remove(tmpName)

		return n, fmt.Errorf("failed to move %s into place: %w", name, err)
	}

	return n, nil
}

// Remove deletes a staged file.
func (s *Store) Remove(name string) error {
	if err := s.fs.Remove(name); err != nil {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}

	return nil
}

func (s *Store) stagedFile(info os.FileInfo) StagedFile {
	return StagedFile{
		Name:    info.Name(),
		Path:    s.fs.Join(s.fs.Root(), info.Name()),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}
