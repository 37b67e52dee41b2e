package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the object-store connection settings for the fallback queue.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	Queue     string
}

// ConfigFromEnv reads the queue configuration from OPTIBOT_QUEUE_* variables.
// An empty endpoint means no fallback queue is configured; callers check
// Configured() before validating.
func ConfigFromEnv() Config {
	return Config{
		Endpoint:  os.Getenv("OPTIBOT_QUEUE_ENDPOINT"),
		AccessKey: os.Getenv("OPTIBOT_QUEUE_ACCESS_KEY"),
		SecretKey: os.Getenv("OPTIBOT_QUEUE_SECRET_KEY"),
		Region:    envOr("OPTIBOT_QUEUE_REGION", "us-east-1"),
		UseSSL:    os.Getenv("OPTIBOT_QUEUE_USE_SSL") == "true",
		Bucket:    envOr("OPTIBOT_QUEUE_BUCKET", "optibot-jobs"),
		Queue:     envOr("OPTIBOT_QUEUE_NAME", "deferred"),
	}
}

// Configured reports whether a fallback queue endpoint is set at all.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// Validate checks that a configured queue has everything it needs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.TrimSpace(c.Queue) == "" {
		return errors.New("queue name is required")
	}
	return nil
}

// ObjectQueue implements Enqueuer on top of an S3-compatible object store.
// Each job becomes one JSON object under the queue prefix.
type ObjectQueue struct {
	client *minio.Client
	bucket string
	queue  string
	region string
}

// NewObjectQueue connects to the configured object store.
func NewObjectQueue(cfg Config) (*ObjectQueue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("queue config: %w", err)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	return &ObjectQueue{
		client: client,
		bucket: cfg.Bucket,
		queue:  cfg.Queue,
		region: cfg.Region,
	}, nil
}

// Enqueue serializes job and writes it under the queue prefix. The object key
// embeds the repository and a nanosecond timestamp so concurrent producers
// never collide.
func (q *ObjectQueue) Enqueue(ctx context.Context, job Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := q.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", q.bucket, err)
	}

	key := fmt.Sprintf("%s/%s-%s-%d.json", q.queue, job.Owner, job.Name, job.EnqueuedAt.UnixNano())
	_, err = q.client.PutObject(ctx, q.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put job object %s: %w", key, err)
	}
	return nil
}

func (q *ObjectQueue) ensureBucket(ctx context.Context) error {
	exists, err := q.client.BucketExists(ctx, q.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return q.client.MakeBucket(ctx, q.bucket, minio.MakeBucketOptions{Region: q.region})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
