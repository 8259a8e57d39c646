package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Storage StorageConfig
	S3      S3Config
	App     AppConfig
}

type ServerConfig struct {
	Host string
	Port string
}

// StoreConfig points at the PocketBase instance holding image metadata.
type StoreConfig struct {
	BaseURL    string
	Collection string
}

type StorageConfig struct {
	// Backend selects where uploaded bytes land: "disk" or "s3".
	Backend string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
}

type AppConfig struct {
	UploadDir     string
	MaxUploadSize int64
	AllowedTypes  []string
}

func Load() (*Config, error) {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "3000")
	viper.SetDefault("POCKETBASE_URL", "http://localhost:8080")
	viper.SetDefault("POCKETBASE_COLLECTION", "images")
	viper.SetDefault("STORAGE_BACKEND", "disk")
	viper.SetDefault("S3_ENDPOINT", "")
	viper.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	viper.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	viper.SetDefault("S3_USE_SSL", false)
	viper.SetDefault("S3_BUCKET_NAME", "images")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("APP_UPLOAD_DIR", "./uploads")
	viper.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10MiB
	viper.SetDefault("APP_ALLOWED_TYPES", []string{"image/jpeg", "image/jpg", "image/png", "image/gif"})

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("SERVER_HOST"),
			Port: viper.GetString("SERVER_PORT"),
		},
		Store: StoreConfig{
			BaseURL:    viper.GetString("POCKETBASE_URL"),
			Collection: viper.GetString("POCKETBASE_COLLECTION"),
		},
		Storage: StorageConfig{
			Backend: viper.GetString("STORAGE_BACKEND"),
		},
		S3: S3Config{
			Endpoint:        viper.GetString("S3_ENDPOINT"),
			AccessKeyID:     viper.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: viper.GetString("S3_SECRET_ACCESS_KEY"),
			UseSSL:          viper.GetBool("S3_USE_SSL"),
			BucketName:      viper.GetString("S3_BUCKET_NAME"),
			Region:          viper.GetString("S3_REGION"),
		},
		App: AppConfig{
			UploadDir:     viper.GetString("APP_UPLOAD_DIR"),
			MaxUploadSize: viper.GetInt64("APP_MAX_UPLOAD_SIZE"),
			AllowedTypes:  viper.GetStringSlice("APP_ALLOWED_TYPES"),
		},
	}

	if cfg.Storage.Backend != "disk" && cfg.Storage.Backend != "s3" {
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	// The upload directory only matters for the disk backend. Creating it
	// here is idempotent, existing directories are left alone.
	if cfg.Storage.Backend == "disk" {
		if err := os.MkdirAll(cfg.App.UploadDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory %s: %w", cfg.App.UploadDir, err)
		}
	}

	return cfg, nil
}
