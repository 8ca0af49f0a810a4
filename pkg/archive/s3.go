// Package archive delivers batches of records to object storage, playing
// the part of the delivery stream's destination bucket.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/siqueiraa/FraudFlow/pkg/config"
	"github.com/siqueiraa/FraudFlow/pkg/metrics"
)

// Kind selects the key prefix a batch is written under.
type Kind string

const (
	KindEnriched Kind = "enriched"
	KindFailed   Kind = "processing-failed"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 writes each batch as one newline-delimited object.
type S3 struct {
	uploader uploader
	bucket   string
	prefix   string
	now      func() time.Time
}

// NewS3 builds the client from cfg. Static credentials are used when an
// access key is configured, otherwise the default AWS chain.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3, error) {
	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3(manager.NewUploader(client), cfg.Bucket, cfg.Prefix), nil
}

func newS3(u uploader, bucket, prefix string) *S3 {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3{uploader: u, bucket: bucket, prefix: prefix, now: time.Now}
}

// Key returns the object key for a batch written at t:
// <prefix><kind>/yyyy/mm/dd/HH/<uuid>.jsonl
func (a *S3) Key(kind Kind, t time.Time) string {
	return fmt.Sprintf("%s%s/%s/%s.jsonl", a.prefix, kind, t.UTC().Format("2006/01/02/15"), uuid.NewString())
}

// Archive uploads records as one object. Records missing a trailing newline
// get one. An empty batch writes nothing.
func (a *S3) Archive(ctx context.Context, kind Kind, records [][]byte) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, r := range records {
		buf.Write(r)
		if len(r) == 0 || r[len(r)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}

	key := a.Key(kind, a.now())
	res, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	metrics.ArchivedRecords.WithLabelValues(string(kind)).Add(float64(len(records)))
	log.Printf("[Archive] uploaded %d %s record(s) to %s", len(records), kind, res.Location)
	return nil
}
