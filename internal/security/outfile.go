// Package security confines file writes that carry secret material.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PrivateFileMode is applied to every file CreatePrivate returns
const PrivateFileMode os.FileMode = 0600

var (
	ErrEmptyPath  = errors.New("empty path not allowed")
	ErrNotRegular = errors.New("output path exists and is not a regular file")
)

// CreatePrivate opens path for writing, truncating it, with owner-only permissions.
// The file is opened through an os.Root on its parent directory and an existing
// symlink, directory or device at path is refused, so the write cannot land
// anywhere but the named file.
func CreatePrivate(path string) (*os.File, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	dir, name := filepath.Split(absPath)
	if name == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open output directory: %w", err)
	}
	defer root.Close()

	if info, err := root.Lstat(name); err == nil && !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	f, err := root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, PrivateFileMode)
	if err != nil {
		return nil, err
	}

	// O_CREATE leaves the mode of an existing file alone
	if err := f.Chmod(PrivateFileMode); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to restrict permissions: %w", err)
	}
	return f, nil
}
