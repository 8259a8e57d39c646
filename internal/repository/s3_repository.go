package repository

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/jeremiahbratton/image-uploader/internal/config"
	"github.com/jeremiahbratton/image-uploader/internal/domain"
)

// s3Storage is the alternative FileStorage backend for deployments that
// keep uploads in an S3-compatible bucket (MinIO in development) instead of
// the local filesystem. File serving still goes through GET /uploads, so
// record locations look the same either way.
type s3Storage struct {
	client *s3.Client
	cfg    *config.S3Config
	log    *zap.Logger
}

func NewS3Storage(cfg *config.S3Config, log *zap.Logger) (FileStorage, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
				Source:            aws.EndpointSourceCustom,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	storage := &s3Storage{
		client: client,
		cfg:    cfg,
		log:    log,
	}

	if err := storage.ensureBucketExists(context.Background()); err != nil {
		log.Warn("Failed to ensure bucket exists", zap.Error(err))
	}

	return storage, nil
}

func (s *s3Storage) ensureBucketExists(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.cfg.BucketName),
	})
	if err == nil {
		return nil
	}

	s.log.Info("Creating bucket", zap.String("bucket", s.cfg.BucketName))

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.cfg.BucketName),
		CreateBucketConfiguration: &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.cfg.Region),
		},
	})
	if err != nil {
		return err
	}

	// MinIO needs a moment before the bucket accepts writes.
	time.Sleep(1 * time.Second)

	return nil
}

func (s *s3Storage) Save(ctx context.Context, filename string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.BucketName),
		Key:           aws.String(filename),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		s.log.Error("Failed to upload file to S3",
			zap.String("key", filename),
			zap.Error(err))
		return err
	}

	s.log.Info("File uploaded to S3",
		zap.String("key", filename),
		zap.Int64("size", size))

	return nil
}

func (s *s3Storage) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.BucketName),
		Key:    aws.String(filename),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, domain.ErrFileNotFound
		}
		s.log.Error("Failed to download file from S3",
			zap.String("key", filename),
			zap.Error(err))
		return nil, err
	}

	return output.Body, nil
}
