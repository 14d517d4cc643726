package s3archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fndlabs/foundation/internal/pkg/config"
)

// Archiver stores raw webhook payloads in an S3 bucket for audit and replay.
// Archiving is best-effort: failures are logged and never surfaced to the
// provider, the ledger row is the authoritative record.
type Archiver struct {
	s3Client *s3.Client
	bucket   string
}

// New creates an archiver, or nil when no bucket is configured. A nil
// Archiver is safe to use; Archive becomes a no-op.
func New(cfg config.S3Archive) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Infof("[S3Archive] Payload archive enabled for bucket %s", cfg.Bucket)
	return &Archiver{s3Client: s3Client, bucket: cfg.Bucket}, nil
}

// Archive uploads one raw payload under webhooks/{provider}/{event-id}.json.
// Runs in the request path after ledger recording, so it gets a short
// deadline of its own.
func (a *Archiver) Archive(ctx context.Context, provider, providerEventID string, payload []byte) {
	if a == nil {
		return
	}
	key := fmt.Sprintf("webhooks/%s/%s.json", provider, providerEventID)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		log.Errorf("[S3Archive] Failed to archive %s: %v", key, err)
		return
	}
	log.Debugf("[S3Archive] Archived %s (%d bytes)", key, len(payload))
}
