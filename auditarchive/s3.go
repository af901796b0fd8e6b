// Package auditarchive ships goToken audit events to S3-compatible object
// storage as newline-delimited JSON batches.
package auditarchive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/internal/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ObjectPutter is the subset of *s3.Client used by S3Sink.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ClientConfig describes how to reach the bucket. Empty credentials fall back
// to the default AWS provider chain.
type ClientConfig struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PathStyle is needed by MinIO and most self-hosted S3 endpoints.
	PathStyle bool
}

// NewClient builds an S3 client from cfg.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

// Config controls batching.
type Config struct {
	Bucket string
	Prefix string
	// BatchSize is the number of events per object. Default 500.
	BatchSize int
	// FlushInterval uploads a partial batch periodically. Zero disables the
	// timer; Close still flushes.
	FlushInterval time.Duration
	// MaxPending caps buffered events while uploads fail. Default 10*BatchSize.
	MaxPending int
	Logger     *slog.Logger
}

// S3Sink is a goToken.AuditSink. Emit is called from the engine's audit
// dispatcher goroutine, so a full batch uploads inline.
type S3Sink struct {
	client ObjectPutter
	cfg    Config
	log    logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	buf     bytes.Buffer
	pending int
	dropped uint64

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

var _ goToken.AuditSink = (*S3Sink)(nil)

// NewS3Sink returns a sink writing to cfg.Bucket through client.
func NewS3Sink(client ObjectPutter, cfg Config) (*S3Sink, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = 10 * cfg.BatchSize
	}

	s := &S3Sink{
		client: client,
		cfg:    cfg,
		log:    logging.NewSlogLogger(cfg.Logger).With("component", "auditarchive"),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	if cfg.FlushInterval > 0 {
		s.wg.Add(1)
		go s.loop()
	}
	return s, nil
}

func (s *S3Sink) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Flush(context.Background()); err != nil {
				s.log.Warn(context.Background(), "audit archive flush failed", "error", err)
			}
		case <-s.stop:
			return
		}
	}
}

// Emit buffers event and uploads once BatchSize events are pending.
func (s *S3Sink) Emit(ctx context.Context, event goToken.AuditEvent) {
	line, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	if s.pending >= s.cfg.MaxPending {
		s.dropped++
		s.mu.Unlock()
		return
	}
	s.buf.Write(line)
	s.buf.WriteByte('\n')
	s.pending++
	full := s.pending >= s.cfg.BatchSize
	s.mu.Unlock()

	if full {
		if err := s.Flush(ctx); err != nil {
			s.log.Warn(ctx, "audit archive upload failed", "error", err)
		}
	}
}

// Flush uploads everything buffered as one object. On failure the events
// stay buffered for the next attempt.
func (s *S3Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == 0 {
		return nil
	}

	body := bytes.Clone(s.buf.Bytes())
	key := s.objectKey()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	s.buf.Reset()
	s.pending = 0
	return nil
}

// Close stops the flush timer and uploads what is left.
func (s *S3Sink) Close(ctx context.Context) error {
	s.once.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
	return s.Flush(ctx)
}

// Dropped reports events discarded because MaxPending was reached.
func (s *S3Sink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *S3Sink) objectKey() string {
	now := s.now().UTC()
	name := fmt.Sprintf("%s-%s.jsonl", now.Format("20060102T150405.000Z"), uuid.NewString())
	return path.Join(s.cfg.Prefix, now.Format("2006/01/02"), name)
}
