package sync

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// objectPutter is the subset of *s3.Client used by S3Destination.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination writes the JSONL export to an S3-compatible bucket.
type S3Destination struct {
	client objectPutter
	bucket string
	key    string

	// snapshotPrefix, when set, also keeps a timestamped copy of every
	// export under that prefix.
	snapshotPrefix string
	now            func() time.Time
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint, snapshotPrefix string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return newS3Destination(s3.NewFromConfig(cfg, s3opts...), bucket, key, snapshotPrefix), nil
}

func newS3Destination(client objectPutter, bucket, key, snapshotPrefix string) *S3Destination {
	return &S3Destination{
		client:         client,
		bucket:         bucket,
		key:            key,
		snapshotPrefix: snapshotPrefix,
		now:            time.Now,
	}
}

func (d *S3Destination) String() string {
	return "s3://" + d.bucket + "/" + d.key
}

// Write uploads data as the configured object key, then as a snapshot when
// a snapshot prefix is configured.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	if err := d.put(ctx, d.key, data); err != nil {
		return err
	}
	if d.snapshotPrefix == "" {
		return nil
	}
	snapshot := path.Join(d.snapshotPrefix, d.now().UTC().Format("20060102T150405Z")+".jsonl")
	return d.put(ctx, snapshot, data)
}

func (d *S3Destination) put(ctx context.Context, key string, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}
