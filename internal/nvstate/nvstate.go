// Package nvstate persists the opaque climate engine state between runs.
//
// The on-disk layout mirrors a small EEPROM image: one length byte followed
// by the blob. A length byte that does not match the expected blob size
// means no valid state is stored.
package nvstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrNoState is returned by Load when nothing valid is stored.
var ErrNoState = errors.New("nvstate: no valid state stored")

// Store is a blob store for one fixed-size state.
type Store interface {
	// Load returns the stored blob or ErrNoState.
	Load() ([]byte, error)

	// Save replaces the stored blob.
	Save(blob []byte) error

	// Erase invalidates the stored blob.
	Erase() error
}

// FileStore keeps the state image in a file.
type FileStore struct {
	fs   afero.Fs
	path string
	size int
}

// NewFileStore creates a store for blobs of exactly size bytes (at most 255)
// in the file at path.
func NewFileStore(fs afero.Fs, path string, size int) (*FileStore, error) {
	if size <= 0 || size > 0xFF {
		return nil, fmt.Errorf("nvstate: blob size %d does not fit the length byte", size)
	}
	return &FileStore{fs: fs, path: path, size: size}, nil
}

// Path returns the image file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) imageLen() int {
	return 1 + s.size
}

// Load reads the blob from the image.
func (s *FileStore) Load() ([]byte, error) {
	image, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("read state image: %w", err)
	}
	if len(image) < s.imageLen() || int(image[0]) != s.size {
		return nil, ErrNoState
	}
	return append([]byte(nil), image[1:s.imageLen()]...), nil
}

// Save writes the length byte and the blob.
func (s *FileStore) Save(blob []byte) error {
	if len(blob) != s.size {
		return fmt.Errorf("nvstate: blob is %d bytes, want %d", len(blob), s.size)
	}
	image := make([]byte, s.imageLen())
	image[0] = byte(s.size)
	copy(image[1:], blob)
	return s.write(image)
}

// Erase zeroes the image, length byte included.
func (s *FileStore) Erase() error {
	return s.write(make([]byte, s.imageLen()))
}

func (s *FileStore) write(image []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, image, 0o644); err != nil {
		return fmt.Errorf("write state image: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state image: %w", err)
	}
	return nil
}

// Discard is a Store that keeps nothing; it disables persistence.
type Discard struct{}

func (Discard) Load() ([]byte, error) { return nil, ErrNoState }

func (Discard) Save([]byte) error { return nil }

func (Discard) Erase() error { return nil }
