package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeremiahbratton/image-uploader/internal/config"
	"github.com/jeremiahbratton/image-uploader/internal/domain"
)

type fakeStorage struct {
	mu      sync.Mutex
	saved   map[string][]byte
	saveErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{saved: map[string][]byte{}}
}

func (f *fakeStorage) Save(_ context.Context, filename string, body io.Reader, _ int64, _ string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.saved[filename] = data
	f.mu.Unlock()
	return nil
}

func (f *fakeStorage) Open(_ context.Context, filename string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.saved[filename]
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeMetadata struct {
	created   []domain.ImageRecord
	createErr error
	records   []domain.ImageRecord
	listErr   error
}

func (f *fakeMetadata) CreateRecord(_ context.Context, record domain.ImageRecord) (*domain.ImageRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	record.ID = "rec1"
	record.Created = "2024-01-01 10:00:00.000Z"
	record.Updated = "2024-01-01 10:00:00.000Z"
	f.created = append(f.created, record)
	return &record, nil
}

func (f *fakeMetadata) ListRecords(_ context.Context) ([]domain.ImageRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func (f *fakeMetadata) Health(_ context.Context) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			UploadDir:     "./uploads",
			MaxUploadSize: 10 * 1024 * 1024,
			AllowedTypes:  []string{"image/jpeg", "image/jpg", "image/png", "image/gif"},
		},
	}
}

func TestUploadImage(t *testing.T) {
	storage := newFakeStorage()
	metadata := &fakeMetadata{}
	svc := NewImageService(storage, metadata, testConfig(), zap.NewNop())

	content := []byte("fake png bytes")
	record, err := svc.UploadImage(context.Background(), bytes.NewReader(content), "cat.png", "image/png", int64(len(content)))
	require.NoError(t, err)

	assert.Equal(t, "rec1", record.ID)
	assert.Equal(t, "cat.png", record.Name)
	assert.Equal(t, "image/png", record.MimeType)
	assert.Regexp(t, `^/uploads/\d+-\d+\.png$`, record.Location)

	filename := strings.TrimPrefix(record.Location, "/uploads/")
	require.Contains(t, storage.saved, filename)
	assert.Equal(t, content, storage.saved[filename], "stored bytes must match the input")
}

func TestUploadImageRejectsUnsupportedType(t *testing.T) {
	storage := newFakeStorage()
	metadata := &fakeMetadata{}
	svc := NewImageService(storage, metadata, testConfig(), zap.NewNop())

	_, err := svc.UploadImage(context.Background(), strings.NewReader("hello"), "notes.txt", "text/plain", 5)
	require.ErrorIs(t, err, domain.ErrUnsupportedMediaType)

	assert.Empty(t, storage.saved, "no bytes may be written for a rejected type")
	assert.Empty(t, metadata.created)
}

func TestUploadImageRejectsEmptyMimeType(t *testing.T) {
	storage := newFakeStorage()
	svc := NewImageService(storage, &fakeMetadata{}, testConfig(), zap.NewNop())

	_, err := svc.UploadImage(context.Background(), strings.NewReader("hello"), "cat.png", "", 5)
	require.ErrorIs(t, err, domain.ErrUnsupportedMediaType)
	assert.Empty(t, storage.saved)
}

func TestUploadImageRejectsOversizedFile(t *testing.T) {
	storage := newFakeStorage()
	metadata := &fakeMetadata{}
	svc := NewImageService(storage, metadata, testConfig(), zap.NewNop())

	_, err := svc.UploadImage(context.Background(), strings.NewReader("x"), "big.png", "image/png", 10*1024*1024+1)
	require.ErrorIs(t, err, domain.ErrFileTooLarge)

	assert.Empty(t, storage.saved, "no bytes may be written for an oversized file")
	assert.Empty(t, metadata.created)
}

func TestUploadImageAtSizeLimit(t *testing.T) {
	storage := newFakeStorage()
	svc := NewImageService(storage, &fakeMetadata{}, testConfig(), zap.NewNop())

	_, err := svc.UploadImage(context.Background(), strings.NewReader("x"), "edge.png", "image/png", 10*1024*1024)
	require.NoError(t, err)
}

func TestUploadImageStorageFailure(t *testing.T) {
	storage := newFakeStorage()
	storage.saveErr = errors.New("disk full")
	metadata := &fakeMetadata{}
	svc := NewImageService(storage, metadata, testConfig(), zap.NewNop())

	_, err := svc.UploadImage(context.Background(), strings.NewReader("x"), "cat.png", "image/png", 1)
	require.ErrorIs(t, err, domain.ErrStoreFile)

	assert.Empty(t, metadata.created, "a failed write must not produce a record")
}

func TestUploadImageMetadataFailure(t *testing.T) {
	storage := newFakeStorage()
	metadata := &fakeMetadata{createErr: errors.New("store down")}
	svc := NewImageService(storage, metadata, testConfig(), zap.NewNop())

	_, err := svc.UploadImage(context.Background(), strings.NewReader("x"), "cat.png", "image/png", 1)
	require.ErrorIs(t, err, domain.ErrPersistRecord)

	// The file write is not rolled back when the record fails.
	assert.Len(t, storage.saved, 1)
}

func TestListImages(t *testing.T) {
	metadata := &fakeMetadata{
		records: []domain.ImageRecord{
			{ID: "b", Name: "later.png", Created: "2024-01-02 10:00:00.000Z"},
			{ID: "a", Name: "earlier.png", Created: "2024-01-01 10:00:00.000Z"},
		},
	}
	svc := NewImageService(newFakeStorage(), metadata, testConfig(), zap.NewNop())

	records, err := svc.ListImages(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].ID, "newest record stays first")
	assert.Equal(t, "a", records[1].ID)
}

func TestListImagesEmptyStore(t *testing.T) {
	svc := NewImageService(newFakeStorage(), &fakeMetadata{}, testConfig(), zap.NewNop())

	records, err := svc.ListImages(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records, "empty store must yield an empty slice, not nil")
	assert.Empty(t, records)
}

func TestListImagesStoreFailure(t *testing.T) {
	metadata := &fakeMetadata{listErr: errors.New("connection refused")}
	svc := NewImageService(newFakeStorage(), metadata, testConfig(), zap.NewNop())

	_, err := svc.ListImages(context.Background())
	require.ErrorIs(t, err, domain.ErrListRecords)
}

func TestGenerateFilenamePreservesExtension(t *testing.T) {
	assert.Regexp(t, `^\d+-\d+\.png$`, generateFilename("cat.png"))
	assert.Regexp(t, `^\d+-\d+\.jpeg$`, generateFilename("holiday photo.JPEG"))
	assert.Regexp(t, `^\d+-\d+$`, generateFilename("noextension"))
}

func TestGenerateFilenameSanitizesExtension(t *testing.T) {
	name := generateFilename("weird.p n/g")
	assert.NotContains(t, name, " ")
	assert.NotContains(t, name, "/")
}

func TestGenerateFilenameUniqueness(t *testing.T) {
	const n = 1000

	var mu sync.Mutex
	var wg sync.WaitGroup
	names := make(map[string]struct{}, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := generateFilename("cat.png")
			mu.Lock()
			names[name] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, names, n, "concurrent generations must not collide")
}
