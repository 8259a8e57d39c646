package repository

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jeremiahbratton/image-uploader/internal/domain"
)

// FileStorage holds uploaded file bytes under a flat namespace of generated
// filenames. Implementations: local disk (default) and S3.
type FileStorage interface {
	Save(ctx context.Context, filename string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, filename string) (io.ReadCloser, error)
}

type diskStorage struct {
	dir string
	log *zap.Logger
}

func NewDiskStorage(dir string, log *zap.Logger) FileStorage {
	return &diskStorage{
		dir: dir,
		log: log,
	}
}

func (s *diskStorage) Save(_ context.Context, filename string, body io.Reader, size int64, _ string) error {
	// Generated filenames never contain separators; Base guards against a
	// caller passing one through anyway.
	path := filepath.Join(s.dir, filepath.Base(filename))

	file, err := os.Create(path)
	if err != nil {
		s.log.Error("Failed to create file",
			zap.String("path", path),
			zap.Error(err))
		return err
	}

	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		// A half-written file must not survive: the record for it will
		// never be created.
		if rmErr := os.Remove(path); rmErr != nil {
			s.log.Warn("Failed to remove partial file",
				zap.String("path", path),
				zap.Error(rmErr))
		}
		s.log.Error("Failed to write file",
			zap.String("path", path),
			zap.Error(err))
		return err
	}

	if err := file.Close(); err != nil {
		return err
	}

	s.log.Info("File stored on disk",
		zap.String("path", path),
		zap.Int64("size", size))

	return nil
}

func (s *diskStorage) Open(_ context.Context, filename string) (io.ReadCloser, error) {
	path := filepath.Join(s.dir, filepath.Base(filename))

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrFileNotFound
		}
		return nil, err
	}

	return file, nil
}
