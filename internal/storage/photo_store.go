// Package storage wraps the S3-compatible object store that holds profile
// photos.  The rest of the service only ever sees the public URL returned
// by Upload; the bytes themselves never reach the database.
package storage

import (
	"bytes"
	"context"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// PhotoStore uploads profile photos to an S3-compatible bucket and builds
// the public URL stored on the user row.
type PhotoStore struct {
	client        *s3.Client
	bucket        string
	publicURLBase string
}

// NewPhotoStoreFromEnv builds a PhotoStore from S3_* environment
// variables.  Returns nil when the endpoint or bucket is unset so callers
// can treat photo upload as an optional feature.
func NewPhotoStoreFromEnv(publicURLBase string) *PhotoStore {
	endpoint := os.Getenv("S3_ENDPOINT")
	bucket := os.Getenv("S3_BUCKET")
	if endpoint == "" || bucket == "" {
		return nil
	}
	client := s3.New(s3.Options{
		Region: envOr("S3_REGION", "us-east-1"),
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			os.Getenv("S3_ACCESS_KEY_ID"),
			os.Getenv("S3_SECRET_ACCESS_KEY"),
			"",
		)),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})
	return &PhotoStore{
		client:        client,
		bucket:        bucket,
		publicURLBase: strings.TrimRight(publicURLBase, "/"),
	}
}

// Upload stores the photo under a UUID key (the original filename only
// contributes its extension, which blocks path traversal) and returns the
// media URL to persist on the user.
func (s *PhotoStore) Upload(ctx context.Context, originalName, contentType string, data []byte) (string, error) {
	ext := strings.ToLower(path.Ext(originalName))
	key := uuid.NewString() + ext
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=86400"),
	})
	if err != nil {
		return "", err
	}
	return s.publicURLBase + "/api/media/users/" + key, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
