package pm

import (
	"context"
	"fmt"
	"os"
)

// Source provides random access to the bytes of an archive.
type Source interface {
	// ReadRange returns exactly length bytes starting at offset.
	ReadRange(ctx context.Context, offset, length uint64) ([]byte, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context, offset, length uint64) ([]byte, error)

func (f SourceFunc) ReadRange(ctx context.Context, offset, length uint64) ([]byte, error) {
	return f(ctx, offset, length)
}

// FileSource reads ranges of a local file.
type FileSource struct {
	file *os.File
}

func OpenFile(filePath string) (*FileSource, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	return &FileSource{file: file}, nil
}

func (s *FileSource) ReadRange(ctx context.Context, offset, length uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buffer := make([]byte, length)
	if _, err := s.file.ReadAt(buffer, int64(offset)); err != nil {
		return nil, fmt.Errorf("read %v bytes at %v: %w", length, offset, err)
	}
	return buffer, nil
}

func (s *FileSource) Close() error {
	return s.file.Close()
}
