package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sei-platform/seibackend/logger"
)

const presignExpiry = 15 * time.Minute

// S3Config holds the construction parameters of an S3Storage.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional; enables a custom endpoint (e.g. MinIO)
	PathStyle bool
}

// S3Storage implements Store on an S3-compatible bucket. Relative paths are object keys
// of the form "<prefix>/<filename>".
type S3Storage struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	prefixMap map[AssetType]string
	log       *logger.Logger
}

// NewS3Storage loads the default AWS credential chain and builds the client.
func NewS3Storage(ctx context.Context, cfg S3Config, prefixes map[AssetType]string, log *logger.Logger) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	log.Info("media store initialized", "driver", "s3", "bucket", cfg.Bucket, "region", region)
	return newS3StorageWithClient(client, cfg.Bucket, prefixes, log), nil
}

func newS3StorageWithClient(client *s3.Client, bucket string, prefixes map[AssetType]string, log *logger.Logger) *S3Storage {
	return &S3Storage{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    bucket,
		prefixMap: prefixes,
		log:       log,
	}
}

func (s *S3Storage) Save(ctx context.Context, assetType AssetType, filename string, contentType string, data io.Reader) (string, error) {
	prefix, ok := s.prefixMap[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' is not configured", assetType)
	}
	if filename == "" || strings.Contains(filename, "/") {
		return "", fmt.Errorf("invalid filename '%s' for S3Storage.Save", filename)
	}
	key := path.Join(prefix, filename)

	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: data}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to put object '%s': %w", key, err)
	}
	s.log.Debug("saved asset", "bucket", s.bucket, "key", key)
	return key, nil
}

func (s *S3Storage) Get(ctx context.Context, relativePath string) (io.ReadCloser, Info, error) {
	key, err := cleanKey(relativePath)
	if err != nil {
		return nil, Info{}, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nil, Info{}, fmt.Errorf("%w: '%s'", ErrNotFound, relativePath)
		}
		return nil, Info{}, fmt.Errorf("failed to get object '%s': %w", key, err)
	}
	info := Info{ContentType: aws.ToString(out.ContentType), ModTime: aws.ToTime(out.LastModified)}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	return out.Body, info, nil
}

func (s *S3Storage) Delete(ctx context.Context, relativePath string) error {
	key, err := cleanKey(relativePath)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return fmt.Errorf("failed to delete object '%s': %w", key, err)
	}
	return nil
}

func (s *S3Storage) PresignURL(ctx context.Context, relativePath string) (string, error) {
	key, err := cleanKey(relativePath)
	if err != nil {
		return "", err
	}
	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key}, func(po *s3.PresignOptions) {
		po.Expires = presignExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign '%s': %w", key, err)
	}
	return out.URL, nil
}

func cleanKey(relativePath string) (string, error) {
	key := strings.TrimPrefix(path.Clean("/"+relativePath), "/")
	if key == "" {
		return "", fmt.Errorf("invalid path: empty key for '%s'", relativePath)
	}
	return key, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
