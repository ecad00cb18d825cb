package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jmylchreest/wallet-engine/internal/version"
)

// ObjectGetter is the part of the S3 client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3Client builds a client for AWS or any S3-compatible store. A custom
// endpoint switches to path-style addressing.
func NewS3Client(ctx context.Context, cfg *Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.StorageRegion),
		awsconfig.WithAppID(version.Get().AppID()),
	}
	if cfg.StorageAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.StorageAccessKey, cfg.StorageSecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.StorageEndpoint == "" {
			return
		}
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
	}), nil
}

// S3LoaderConfig describes the object an S3Loader watches.
type S3LoaderConfig struct {
	Client       ObjectGetter
	Bucket       string
	Key          string
	CacheTTL     time.Duration // minimum time between checks, default 5m
	ErrorBackoff time.Duration // pause after a failed check, default 1m
	Logger       *slog.Logger
}

// S3Object is the outcome of a check that reached the store.
type S3Object struct {
	Data      []byte
	ETag      string
	Unchanged bool
}

// S3Loader polls a single object using conditional GETs. Decoding is the
// caller's job.
type S3Loader struct {
	client  ObjectGetter
	bucket  string
	key     string
	ttl     time.Duration
	backoff time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	etag      string
	checkedAt time.Time
	failedAt  time.Time
	busy      bool
}

// NewS3Loader applies defaults to cfg and returns a loader.
func NewS3Loader(cfg S3LoaderConfig) *S3Loader {
	l := &S3Loader{
		client:  cfg.Client,
		bucket:  cfg.Bucket,
		key:     cfg.Key,
		ttl:     cmpOr(cfg.CacheTTL, 5*time.Minute),
		backoff: cmpOr(cfg.ErrorBackoff, time.Minute),
		logger:  cfg.Logger,
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.logger = l.logger.With("bucket", cfg.Bucket, "key", cfg.Key)
	return l
}

func cmpOr(d, fallback time.Duration) time.Duration {
	if d == 0 {
		return fallback
	}
	return d
}

// Due reports whether a Fetch now would contact the store.
func (l *S3Loader) Due() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dueLocked(time.Now())
}

func (l *S3Loader) dueLocked(now time.Time) bool {
	switch {
	case l.client == nil || l.busy:
		return false
	case !l.failedAt.IsZero() && now.Sub(l.failedAt) < l.backoff:
		return false
	case l.checkedAt.IsZero():
		return true
	}
	return now.Sub(l.checkedAt) > l.ttl
}

// Fetch checks the object if it is Due. It returns nil when no check was
// made or the object does not exist.
func (l *S3Loader) Fetch(ctx context.Context) (*S3Object, error) {
	l.mu.Lock()
	if !l.dueLocked(time.Now()) {
		l.mu.Unlock()
		return nil, nil
	}
	l.busy = true
	known := l.etag
	l.mu.Unlock()

	obj, err := l.get(ctx, known)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.busy = false
	l.checkedAt = time.Now()
	if err != nil {
		l.failedAt = l.checkedAt
		l.logger.Error("s3 object check failed", "error", err, "retry_after", l.backoff)
		return nil, err
	}
	l.failedAt = time.Time{}
	if obj != nil && !obj.Unchanged {
		l.etag = obj.ETag
	}
	return obj, nil
}

func (l *S3Loader) get(ctx context.Context, known string) (*S3Object, error) {
	in := &s3.GetObjectInput{Bucket: aws.String(l.bucket), Key: aws.String(l.key)}
	if known != "" {
		in.IfNoneMatch = aws.String(`"` + known + `"`)
	}

	resp, err := l.client.GetObject(ctx, in)
	var missing *types.NoSuchKey
	var apiErr interface{ ErrorCode() string }
	switch {
	case err == nil:
	case errors.As(err, &missing):
		l.logger.Warn("s3 object not found")
		return nil, nil
	case errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotModified":
		l.logger.Debug("s3 object unchanged", "etag", known)
		return &S3Object{ETag: known, Unchanged: true}, nil
	default:
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	obj := &S3Object{Data: data, ETag: strings.Trim(aws.ToString(resp.ETag), `"`)}
	l.logger.Debug("s3 object fetched", "etag", obj.ETag, "previous_etag", known, "size", len(data))
	return obj, nil
}
