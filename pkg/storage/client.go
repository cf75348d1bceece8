// Package storage ships copies of the mount table to S3 so a bad edit can be
// recovered from off the host.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mgreiner/update-fstab-uuid/internal/log"
	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
)

// Client provides S3 backup operations
type Client struct {
	s3Client *s3.Client
	bucket   string
}

// NewClient creates a new S3 client using the default credential chain
func NewClient(ctx context.Context, bucket, region string) (*Client, error) {
	logger := log.WithComponent("storage")
	logger.Debug().Str("bucket", bucket).Str("region", region).Msg("s3_client_init")

	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		logger.Error().Err(err).Msg("aws_config_load_failed")
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return &Client{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucket,
	}, nil
}

// UploadResult contains upload metadata
type UploadResult struct {
	Key    string
	SHA256 string
	Size   int64
}

// Upload stores data under key. The SHA-256 of the content is attached as
// object metadata.
func (c *Client) Upload(ctx context.Context, key string, data []byte) (*UploadResult, error) {
	logger := log.WithComponent("storage")
	logger.Debug().Str("bucket", c.bucket).Str("key", key).Msg("s3_upload_start")

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain; charset=utf-8"),
		Metadata:    map[string]string{"sha256": checksum},
	})
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("s3_put_object_failed")
		return nil, errors.Wrap(err, "failed to upload table backup")
	}

	logger.Info().Str("key", key).Int("bytes", len(data)).Str("sha256", checksum[:16]+"...").
		Msg("s3_upload_complete")

	return &UploadResult{Key: key, SHA256: checksum, Size: int64(len(data))}, nil
}

// ListObjects lists all objects in the bucket with a given prefix
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			logger := log.WithComponent("storage")
			logger.Error().Err(err).Str("prefix", prefix).Msg("s3_list_failed")
			return nil, errors.Wrap(err, "failed to list objects")
		}

		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	return keys, nil
}

// BackupKey builds the object key for a table backup:
// <prefix>/<host>/<UTC timestamp>-<run id>.fstab
func BackupKey(prefix, host, runID string, at time.Time) string {
	name := at.UTC().Format("20060102T150405Z") + "-" + runID + ".fstab"
	return path.Join(strings.Trim(prefix, "/"), hostComponent(host), name)
}

// HostPrefix is the key prefix holding every backup of one host.
func HostPrefix(prefix, host string) string {
	return path.Join(strings.Trim(prefix, "/"), hostComponent(host)) + "/"
}

func hostComponent(host string) string {
	host = strings.ReplaceAll(host, "/", "_")
	if host == "" {
		return "unknown-host"
	}
	return host
}
