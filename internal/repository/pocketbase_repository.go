package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jeremiahbratton/image-uploader/internal/config"
	"github.com/jeremiahbratton/image-uploader/internal/domain"
)

// MetadataRepository persists and queries image metadata records in the
// external store. Records come back with the store-assigned id and
// created/updated timestamps.
type MetadataRepository interface {
	CreateRecord(ctx context.Context, record domain.ImageRecord) (*domain.ImageRecord, error)
	ListRecords(ctx context.Context) ([]domain.ImageRecord, error)
	Health(ctx context.Context) error
}

const listPageSize = 200

type pocketbaseRepository struct {
	baseURL    string
	collection string
	client     *http.Client
	log        *zap.Logger
}

func NewPocketBaseRepository(cfg *config.StoreConfig, log *zap.Logger) MetadataRepository {
	return &pocketbaseRepository{
		baseURL:    cfg.BaseURL,
		collection: cfg.Collection,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

type createRecordRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	MimeType string `json:"mime_type"`
}

type listRecordsResponse struct {
	Page       int                  `json:"page"`
	PerPage    int                  `json:"perPage"`
	TotalPages int                  `json:"totalPages"`
	TotalItems int                  `json:"totalItems"`
	Items      []domain.ImageRecord `json:"items"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (r *pocketbaseRepository) CreateRecord(ctx context.Context, record domain.ImageRecord) (*domain.ImageRecord, error) {
	payload, err := json.Marshal(createRecordRequest{
		Name:     record.Name,
		Location: record.Location,
		MimeType: record.MimeType,
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/collections/%s/records", r.baseURL, r.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Error("Failed to reach metadata store",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, r.storeError(resp)
	}

	var created domain.ImageRecord
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode create response: %w", err)
	}

	r.log.Info("Image record created",
		zap.String("id", created.ID),
		zap.String("location", created.Location))

	return &created, nil
}

// ListRecords fetches the whole collection newest-first. The store itself
// paginates, so pages are walked until TotalPages is reached.
func (r *pocketbaseRepository) ListRecords(ctx context.Context) ([]domain.ImageRecord, error) {
	records := []domain.ImageRecord{}

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("perPage", strconv.Itoa(listPageSize))
		query.Set("sort", "-created")

		endpoint := fmt.Sprintf("%s/api/collections/%s/records?%s", r.baseURL, r.collection, query.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		resp, err := r.client.Do(req)
		if err != nil {
			r.log.Error("Failed to reach metadata store",
				zap.String("endpoint", endpoint),
				zap.Error(err))
			return nil, err
		}

		var body listRecordsResponse
		if resp.StatusCode != http.StatusOK {
			storeErr := r.storeError(resp)
			resp.Body.Close()
			return nil, storeErr
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to decode list response: %w", err)
		}
		resp.Body.Close()

		records = append(records, body.Items...)

		if page >= body.TotalPages {
			break
		}
	}

	return records, nil
}

func (r *pocketbaseRepository) Health(ctx context.Context) error {
	endpoint := r.baseURL + "/api/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metadata store health check returned %d", resp.StatusCode)
	}

	return nil
}

func (r *pocketbaseRepository) storeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return fmt.Errorf("metadata store returned %d: %s", resp.StatusCode, body.Message)
	}

	return fmt.Errorf("metadata store returned %d", resp.StatusCode)
}
