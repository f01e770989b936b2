// Package storage handles S3/MinIO operations for violation photo previews.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/trafficlens/photo-review/backend/internal/config"
)

// PhotoStore stores material previews and hands out presigned URLs
type PhotoStore struct {
	client             *s3.Client
	presignClient      *s3.PresignClient
	bucket             string
	presignedURLExpiry time.Duration
}

// NewPhotoStore creates a new photo store with an S3/MinIO client
func NewPhotoStore(cfg *config.StorageConfig) (*PhotoStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is not configured")
	}

	var endpointURL string
	if strings.HasPrefix(cfg.Endpoint, "http://") || strings.HasPrefix(cfg.Endpoint, "https://") {
		endpointURL = cfg.Endpoint
	} else {
		protocol := "http"
		if cfg.UseSSL {
			protocol = "https"
		}
		endpointURL = protocol + "://" + cfg.Endpoint
	}

	client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
		BaseEndpoint: aws.String(endpointURL),
		UsePathStyle: true, // Required for MinIO
	})

	expiry := cfg.PresignedURLExpiry
	if expiry == 0 {
		expiry = 15 * time.Minute
	}

	return &PhotoStore{
		client:             client,
		presignClient:      s3.NewPresignClient(client),
		bucket:             cfg.Bucket,
		presignedURLExpiry: expiry,
	}, nil
}

// UploadPreview stores a preview image under previews/<materialID> and
// returns its storage key.
func (s *PhotoStore) UploadPreview(ctx context.Context, materialID, contentType string, data []byte) (string, error) {
	key := "previews/" + materialID
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload preview: %w", err)
	}
	return key, nil
}

// PresignURL returns a time-limited GET URL for a stored object
func (s *PhotoStore) PresignURL(ctx context.Context, key string) (string, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignedURLExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign URL: %w", err)
	}
	return req.URL, nil
}

// DeletePreviews removes stored previews for the given material IDs.
// Missing objects are not an error.
func (s *PhotoStore) DeletePreviews(ctx context.Context, materialIDs []string) error {
	if len(materialIDs) == 0 {
		return nil
	}

	objects := make([]types.ObjectIdentifier, len(materialIDs))
	for i, id := range materialIDs {
		objects[i] = types.ObjectIdentifier{Key: aws.String("previews/" + id)}
	}

	_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete previews: %w", err)
	}
	return nil
}

// DecodeDataURL splits a base64 data URL into its content type and
// decoded bytes. Returns false when the value is not a data URL.
func DecodeDataURL(value string) (contentType string, data []byte, ok bool) {
	if !strings.HasPrefix(value, "data:") {
		return "", nil, false
	}
	rest := value[len("data:"):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", nil, false
	}
	contentType = rest[:sep]
	decoded, err := base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return "", nil, false
	}
	return contentType, decoded, true
}
