package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mealsnap/backend/config"
)

// S3PutObjectAPI is the slice of the S3 client the asset store uses
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AssetStore uploads normalized meal images and resolves their public URLs.
// Orphaned objects (uploads whose later pipeline stages fail) are not
// cleaned up.
type AssetStore struct {
	client S3PutObjectAPI
	bucket string
}

// NewAssetStore creates an asset store backed by the configured S3 bucket
func NewAssetStore(s3cfg *config.S3Config) *AssetStore {
	return &AssetStore{
		client: s3cfg.Client,
		bucket: s3cfg.BucketName,
	}
}

// Upload stores a normalized image under a collision-resistant key and
// returns its public URL.
func (s *AssetStore) Upload(ctx context.Context, img *NormalizedImage) (string, error) {
	key := fmt.Sprintf("meal-images/%d-%s", time.Now().UnixNano(), sanitizeObjectName(img.Name))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(img.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	if s.bucket == "" {
		return "", ErrURLResolution
	}
	publicURL := fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
	log.Printf("[AssetStore] uploaded %s", publicURL)

	return publicURL, nil
}

// sanitizeObjectName strips path components and whitespace so the original
// file name stays readable inside the object key
func sanitizeObjectName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.ReplaceAll(base, " ", "-")
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "upload"
	}
	return base
}
