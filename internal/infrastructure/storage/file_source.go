package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/erp/shopsync/internal/domain/integration"
)

// FileImageSource serves images from a directory. References are paths
// relative to the root; escaping the root is rejected.
type FileImageSource struct {
	root    string
	maxSize int64
}

// NewFileImageSource creates a source rooted at dir
func NewFileImageSource(dir string) (*FileImageSource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve image dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("image dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("image dir %s is not a directory", abs)
	}
	return &FileImageSource{root: abs, maxSize: DefaultMaxImageSize}, nil
}

// Fetch reads the file named by ref
func (s *FileImageSource) Fetch(_ context.Context, ref string) ([]byte, string, error) {
	rel := strings.TrimLeft(strings.TrimSpace(ref), "/")
	if rel == "" {
		return nil, "", ErrEmptyReference
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return nil, "", fmt.Errorf("image %q is outside %s", ref, s.root)
	}

	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: %s", ErrImageNotFound, rel)
	}
	if err != nil {
		return nil, "", err
	}
	if info.Size() > s.maxSize {
		return nil, "", fmt.Errorf("%w: %s is %d bytes", ErrImageTooLarge, rel, info.Size())
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, "", fmt.Errorf("read image %s: %w", rel, err)
	}
	return data, filepath.Base(full), nil
}

var _ integration.ImageSource = (*FileImageSource)(nil)
