package gpadmin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage removes stored uploads. gpas3.Storage serves S3 compatible
// buckets; LocalStorage serves a directory.
type FileStorage interface {
	Delete(ctx context.Context, key string) error
}

// LocalStorage keeps files below Root on the local disk
type LocalStorage struct {
	Root string
}

// NewLocalStorage creates a storage rooted at dir
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{Root: dir}
}

// Delete removes the file stored under key. Missing files are not an error.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	root := filepath.Clean(s.Root)
	full := filepath.Join(root, filepath.FromSlash(key))
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return NewError(ErrorTypeInvalidArgument, fmt.Sprintf("key %q escapes storage root", key))
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return NewErrorWithCause(ErrorTypeInternal, "failed to delete file", err)
	}
	return nil
}
