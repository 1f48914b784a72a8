package io

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrNotOpened     = errors.New("file not opened")
	ErrReadMismatch  = errors.New("read bytes mismatch")
	ErrWriteMismatch = errors.New("written bytes mismatch")
)

type FileReader struct {
	path   string
	file   *os.File
	opened bool

	exists bool
}

func NewFileReader(path string) *FileReader {

	_, err := os.Stat(path)

	freader := &FileReader{
		path:   path,
		exists: err == nil,
	}

	return freader
}

func (f *FileReader) Path() string {
	return f.path
}

func (f *FileReader) Exists() bool {
	return f.exists
}

// Open opens the file for reading, or truncates it for writing.
func (f *FileReader) Open(readOnly bool) (topErr error) {

	var perm os.FileMode = 0644

	if readOnly {
		f.file, topErr = os.OpenFile(f.path, os.O_RDONLY, perm)
	} else {
		f.file, topErr = os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	}

	if topErr == nil {
		f.opened = true
		f.exists = true
	}

	return topErr
}

func (f *FileReader) Close() error {
	if !f.opened {
		return nil
	}

	f.opened = false
	return f.file.Close()
}

func (f *FileReader) Size() (int64, error) {
	if !f.opened {
		return 0, ErrNotOpened
	}

	info, err := f.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (f *FileReader) ReadAt(out []byte, off int) error {
	if !f.opened {
		return ErrNotOpened
	}

	readBytes, err := f.file.ReadAt(out, int64(off))
	if readBytes != len(out) {
		if err != nil {
			return fmt.Errorf("%w: %w", ErrReadMismatch, err)
		}
		return ErrReadMismatch
	}

	return nil
}

func (f *FileReader) WriteAt(in []byte, off int) error {
	if !f.opened {
		return ErrNotOpened
	}

	writtenBytes, err := f.file.WriteAt(in, int64(off))
	if writtenBytes != len(in) {
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWriteMismatch, err)
		}
		return ErrWriteMismatch
	}

	return err
}

func (f *FileReader) Sync() error {
	if !f.opened {
		return ErrNotOpened
	}
	return f.file.Sync()
}

// ReadFile loads the whole file at path.
func ReadFile(path string) ([]byte, error) {
	fileManager := NewFileReader(path)
	if err := fileManager.Open(true); err != nil {
		return nil, err
	}
	defer fileManager.Close()

	size, err := fileManager.Size()
	if err != nil {
		return nil, err
	}

	out := make([]byte, size)
	if err := fileManager.ReadAt(out, 0); err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	return out, nil
}

// WriteFile replaces the file at path with data. The content goes to a
// sibling temporary file first and is renamed over path once synced, so a
// reader never sees a partial image.
func WriteFile(path string, data []byte) error {
	if err := CreateDirIfNotExists(filepath.Dir(path)); err != nil {
		return err
	}

	tmp := path + ".partial"
	fileManager := NewFileReader(tmp)
	if err := fileManager.Open(false); err != nil {
		return err
	}

	writeErr := fileManager.WriteAt(data, 0)
	if writeErr == nil {
		writeErr = fileManager.Sync()
	}
	closeErr := fileManager.Close()

	if writeErr != nil || closeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("unable to write %s: %w", path, errors.Join(writeErr, closeErr))
	}

	return os.Rename(tmp, path)
}

// RemoveFile deletes path. A missing file is not an error.
func RemoveFile(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func CreateDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
