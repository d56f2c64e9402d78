package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to a temporary file and then renames it to the target file.
// AtomicWriteFile 将数据写入临时文件，然后将其重命名为目标文件。
func AtomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmpFile, err := os.CreateTemp(dir, "atomic-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(perm); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpFile.Name(), filename)
}

// EnsureFile creates an empty file (and its parent directory) when it does not exist yet.
// An existing file is left untouched.
// EnsureFile 在文件不存在时创建空文件（及其父目录）。
func EnsureFile(filePath string) error {
	safePath := filepath.Clean(filePath)
	if err := os.MkdirAll(filepath.Dir(safePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", safePath, err)
	}
	f, err := os.OpenFile(safePath, os.O_CREATE|os.O_WRONLY, 0644) // #nosec G304 // path is cleaned
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", safePath, err)
	}
	return f.Close()
}

// RemoveIfExists deletes a file, treating a missing file as success.
// RemoveIfExists 删除文件，文件不存在视为成功。
func RemoveIfExists(filePath string) error {
	err := os.Remove(filepath.Clean(filePath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
