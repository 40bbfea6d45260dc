package processor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrBackupMissing is returned when a backup cannot be verified after copying
var ErrBackupMissing = errors.New("backup missing or incomplete")

// BackupPath maps a file under root to its location in backupDir, keeping
// the relative directory structure. Files outside root are placed at the top
// of backupDir.
func BackupPath(root, backupDir, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(path)
	}
	return filepath.Join(backupDir, rel)
}

// Backup copies src to dst and verifies the copy. An existing backup is kept
// as is: it holds the earliest original. A partial copy is never left at dst.
func Backup(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	if info, err := os.Stat(dst); err == nil {
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s: %w", dst, ErrBackupMissing)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := copyFile(src, dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}

	info, err := os.Stat(dst)
	if err != nil || info.Size() != srcInfo.Size() {
		os.Remove(dst)
		return fmt.Errorf("%s: %w", dst, ErrBackupMissing)
	}
	return nil
}

// copyFile writes src to a temporary file beside dst, syncs it and renames
// it into place
func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".backup-*")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	tmpPath := tmp.Name()

	fail := func(step string, err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to %s backup: %w", step, err)
	}

	if _, err := io.Copy(tmp, in); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close backup: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move backup into place: %w", err)
	}
	return nil
}

// replaceFile renames tmp over path, keeping path's permissions
func replaceFile(tmp, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat original: %w", err)
	}
	if err := os.Chmod(tmp, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace original: %w", err)
	}
	return nil
}
