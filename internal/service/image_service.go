package service

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeremiahbratton/image-uploader/internal/config"
	"github.com/jeremiahbratton/image-uploader/internal/domain"
	"github.com/jeremiahbratton/image-uploader/internal/repository"
)

// uploadMount is the URL segment under which stored files are served.
// Record locations are always "<uploadMount>/<generated filename>".
const uploadMount = "uploads"

type ImageService interface {
	UploadImage(ctx context.Context, file io.Reader, originalName, mimeType string, size int64) (*domain.ImageRecord, error)
	ListImages(ctx context.Context) ([]domain.ImageRecord, error)
	OpenImage(ctx context.Context, filename string) (io.ReadCloser, error)
}

type imageService struct {
	storage  repository.FileStorage
	metadata repository.MetadataRepository
	cfg      *config.Config
	allowed  map[string]struct{}
	log      *zap.Logger
}

func NewImageService(storage repository.FileStorage, metadata repository.MetadataRepository, cfg *config.Config, log *zap.Logger) ImageService {
	allowed := make(map[string]struct{}, len(cfg.App.AllowedTypes))
	for _, t := range cfg.App.AllowedTypes {
		allowed[strings.ToLower(t)] = struct{}{}
	}

	return &imageService{
		storage:  storage,
		metadata: metadata,
		cfg:      cfg,
		allowed:  allowed,
		log:      log,
	}
}

// UploadImage runs the intake pipeline for one file: validate the declared
// size and MIME type, stream the bytes to storage under a generated
// filename, then create the metadata record. Validation failures happen
// before any byte is written. A storage failure leaves no record behind; a
// record failure leaves the already-written file behind (uploads are not
// transactional across the two stores).
func (s *imageService) UploadImage(ctx context.Context, file io.Reader, originalName, mimeType string, size int64) (*domain.ImageRecord, error) {
	if size > s.cfg.App.MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrFileTooLarge, size, s.cfg.App.MaxUploadSize)
	}

	if err := s.checkMimeType(mimeType); err != nil {
		return nil, err
	}

	filename := generateFilename(originalName)

	if err := s.storage.Save(ctx, filename, file, size, mimeType); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreFile, err)
	}

	record := domain.ImageRecord{
		Name:     originalName,
		Location: path.Join("/", uploadMount, filename),
		MimeType: mimeType,
	}

	created, err := s.metadata.CreateRecord(ctx, record)
	if err != nil {
		// The file stays on disk; nothing references it and nothing
		// cleans it up. Logged so orphans can be traced.
		s.log.Error("Record creation failed after file write",
			zap.String("filename", filename),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistRecord, err)
	}

	s.log.Info("Image uploaded",
		zap.String("id", created.ID),
		zap.String("name", created.Name),
		zap.String("location", created.Location),
		zap.Int64("size", size))

	return created, nil
}

// ListImages returns every record in the store, newest first. An empty
// store yields an empty slice, not an error.
func (s *imageService) ListImages(ctx context.Context) ([]domain.ImageRecord, error) {
	records, err := s.metadata.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrListRecords, err)
	}

	if records == nil {
		records = []domain.ImageRecord{}
	}

	return records, nil
}

func (s *imageService) OpenImage(ctx context.Context, filename string) (io.ReadCloser, error) {
	return s.storage.Open(ctx, filename)
}

func (s *imageService) checkMimeType(mimeType string) error {
	if _, ok := s.allowed[strings.ToLower(mimeType)]; !ok {
		return fmt.Errorf("%w: %q is not an allowed image type", domain.ErrUnsupportedMediaType, mimeType)
	}
	return nil
}

// generateFilename derives a collision-resistant storage filename from the
// upload time, a random draw and the original extension. No shared state,
// so concurrent requests never contend; a physical collision would need two
// requests in the same millisecond to draw the same number out of 1e9.
func generateFilename(originalName string) string {
	ext := sanitizeExt(filepath.Ext(originalName))
	return fmt.Sprintf("%d-%d%s", time.Now().UnixMilli(), rand.Int63n(1_000_000_000), ext)
}

// sanitizeExt lower-cases the extension and strips anything that is not
// alphanumeric or a dot, so the generated name is always a safe path
// segment no matter what the client called the file.
func sanitizeExt(ext string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(ext) {
		if r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
