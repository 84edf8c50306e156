package remote

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/glekoz/ticket-images/internal/models"
)

// Store uploads image bytes to an S3-compatible object store and
// hands back an opaque "bucket/object" reference.
type Store struct {
	client *minio.Client
	bucket string
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewStore(ctx context.Context, opts Options) (*Store, error) {
	loc := "remote.NewStore"
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, models.NewError(loc, opts.Endpoint, err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, models.NewError(loc, opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, models.NewError(loc, opts.Bucket, err)
		}
	}
	return &Store{client: client, bucket: opts.Bucket}, nil
}

func (s *Store) Upload(ctx context.Context, data []byte) (string, error) {
	loc := "remote.Store.Upload"
	if len(data) == 0 {
		return "", models.NewError(loc, "empty payload", models.ErrInvalidInput)
	}
	objectName := uuid.New().String()
	contentType := http.DetectContentType(data)
	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", models.NewError(loc, objectName, err)
	}
	return fmt.Sprintf("%s/%s", s.bucket, objectName), nil
}
