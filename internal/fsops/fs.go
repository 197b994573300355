// Package fsops routes every filesystem mutation through one seam.
//
// Config deployment needs two guarantees: a destination is either fully
// replaced or untouched (temp file + rename), and an existing destination is
// preserved as a backup copy before it is replaced. Both live here so the
// executor never touches the filesystem directly.
package fsops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FS is the filesystem surface the executor and config deployment use.
type FS interface {
	// Stat follows symlinks.
	Stat(path string) (os.FileInfo, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// Copy copies a file or directory tree from src to dst, preserving
	// file modes.
	Copy(src, dst string) error

	// AtomicWrite writes data to path atomically using temp file + rename.
	AtomicWrite(path string, data []byte, perm os.FileMode) error

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// Exists reports whether a path exists.
	Exists(path string) (bool, error)

	// Backup copies path to path+suffix and returns the backup path. The
	// original file is left in place.
	Backup(path, suffix string) (string, error)
}

// RealFS implements FS using actual OS operations.
type RealFS struct{}

// NewRealFS creates a new RealFS.
func NewRealFS() *RealFS {
	return &RealFS{}
}

func (fs *RealFS) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (fs *RealFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (fs *RealFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Exists reports whether a path exists without following symlinks, so a
// dangling symlink still counts as present and is not silently overwritten.
func (fs *RealFS) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Copy copies a file or directory from src to dst. Symlinked sources are
// followed so the target content is copied, not the link.
func (fs *RealFS) Copy(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if srcInfo.IsDir() {
		return fs.copyDir(src, dst)
	}
	return fs.copyFile(src, dst, srcInfo.Mode())
}

func (fs *RealFS) copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		_ = srcFile.Close()
	}()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer func() {
		_ = dstFile.Close()
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	return dstFile.Sync()
}

func (fs *RealFS) copyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source directory: %w", err)
	}
	if err := os.MkdirAll(dst, srcInfo.Mode()); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read source directory: %w", err)
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := fs.copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("failed to get entry info: %w", err)
		}
		if err := fs.copyFile(srcPath, dstPath, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}

// AtomicWrite writes data to path atomically using temp file + rename. The
// temp file lives in the destination directory so the rename never crosses
// filesystems.
func (fs *RealFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".setupwiz-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	tmpFile = nil
	return nil
}

// Backup copies path to path+suffix, preserving the original file and its
// mode. An existing backup at the target path is overwritten.
func (fs *RealFS) Backup(path, suffix string) (string, error) {
	if suffix == "" {
		return "", fmt.Errorf("backup suffix is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat backup source: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("refusing to back up directory %q", path)
	}

	backupPath := path + suffix
	if err := fs.copyFile(path, backupPath, info.Mode()); err != nil {
		return "", err
	}
	return backupPath, nil
}
