// Package assets fetches the schema SQL script from S3 or a local directory.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/bootstrap"
)

var (
	_ bootstrap.AssetStore = (*S3Store)(nil)
	_ bootstrap.AssetStore = (*DirStore)(nil)
)

// S3Store reads objects with GetObject.
type S3Store struct {
	client s3iface.S3API
}

// NewS3Store returns an S3Store backed by client.
func NewS3Store(client s3iface.S3API) *S3Store {
	return &S3Store{client: client}
}

// Fetch returns the object body. A missing key or bucket wraps
// bootstrap.ErrNotFound.
func (s *S3Store) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get s3://%s/%s: %w: %v", bucket, key, bootstrap.ErrNotFound, err)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	return body, nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
		return true
	default:
		return false
	}
}

// DirStore treats the bucket as a local directory. schemactl uses it to
// apply a script from disk.
type DirStore struct{}

// Fetch reads key below the directory named by bucket.
func (DirStore) Fetch(_ context.Context, bucket, key string) ([]byte, error) {
	path := filepath.Join(bucket, filepath.FromSlash(key))
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, bootstrap.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return body, nil
}
