// Package storage owns the on-disk layout shared by every stage and the
// atomic write primitive all outputs go through.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteAtomic writes the output of fn to a pending file in the target
// directory, syncs it and renames it over path. On any error the pending
// file is removed and path is left untouched.
func WriteAtomic(path string, fn func(w io.Writer) error) error {
	pf, err := pending(path)
	if err != nil {
		return err
	}
	defer pf.Cleanup()

	if err := fn(pf); err != nil {
		return err
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// WriteAtomicFile is WriteAtomic for writers that need a file path rather
// than an io.Writer (the NetCDF writer). fn receives the pending file's
// unique path, which it may truncate and rewrite.
func WriteAtomicFile(path string, fn func(tmpPath string) error) error {
	pf, err := pending(path)
	if err != nil {
		return err
	}
	defer pf.Cleanup()

	if err := fn(pf.Name()); err != nil {
		return err
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func pending(path string) (*renameio.PendingFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return nil, fmt.Errorf("create temp for %s: %w", path, err)
	}
	return pf, nil
}

// Checksum returns the hex SHA-256 of a file and its size.
func Checksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Exists reports whether path exists and is a regular file, with its size.
func Exists(path string) (bool, int64) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false, 0
	}
	return true, info.Size()
}
