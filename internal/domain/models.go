package domain

import "errors"

// ImageRecord is the metadata record kept in the store for one uploaded
// file. ID, Created and Updated are assigned by the store on creation and
// never change afterwards.
type ImageRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	MimeType string `json:"mime_type"`
	Created  string `json:"created"`
	Updated  string `json:"updated"`
}

var (
	ErrNoFileProvided       = errors.New("no file uploaded")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrFileTooLarge         = errors.New("file too large")
	ErrStoreFile            = errors.New("failed to store file")
	ErrPersistRecord        = errors.New("failed to persist image record")
	ErrListRecords          = errors.New("failed to list image records")
	ErrFileNotFound         = errors.New("file not found")
)
