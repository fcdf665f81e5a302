package incident

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// PutObjectAPI is the subset of the S3 client used by the recorder.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Recorder uploads gzipped incident documents to an S3 bucket.
type s3Recorder struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Recorder creates an S3-backed recorder using the default AWS
// credential chain.
func NewS3Recorder(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (Recorder, error) {
	logger = logger.With().Str("component", "incident-s3-recorder").Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("S3 incident recorder initialised")

	return newS3Recorder(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func newS3Recorder(client PutObjectAPI, bucket, prefix string, logger zerolog.Logger) *s3Recorder {
	return &s3Recorder{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

func (r *s3Recorder) Record(ctx context.Context, inc *Incident) error {
	data, err := encode(inc)
	if err != nil {
		return err
	}

	key := r.prefix + objectName(inc)
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(r.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(data),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("bucket", r.bucket).
			Str("key", key).
			Msg("failed to put incident object")
		return fmt.Errorf("failed to put incident to S3 (bucket=%s, key=%s): %w", r.bucket, key, err)
	}

	r.logger.Info().
		Str("bucket", r.bucket).
		Str("key", key).
		Str("incident_id", inc.ID.String()).
		Msg("incident uploaded to S3")

	return nil
}

// fallbackRecorder tries S3 first, then the local file system.
type fallbackRecorder struct {
	s3Recorder   Recorder
	fileRecorder Recorder
	logger       zerolog.Logger
}

// NewFallbackRecorder creates a recorder that writes to S3 and falls back to
// fileRecorder when the upload fails. A nil s3Recorder uses files only.
func NewFallbackRecorder(s3Recorder, fileRecorder Recorder, logger zerolog.Logger) Recorder {
	return &fallbackRecorder{
		s3Recorder:   s3Recorder,
		fileRecorder: fileRecorder,
		logger:       logger.With().Str("component", "incident-fallback-recorder").Logger(),
	}
}

func (r *fallbackRecorder) Record(ctx context.Context, inc *Incident) error {
	if r.s3Recorder != nil {
		err := r.s3Recorder.Record(ctx, inc)
		if err == nil {
			return nil
		}
		r.logger.Warn().
			Err(err).
			Str("incident_id", inc.ID.String()).
			Msg("failed to record incident in S3, falling back to local file system")
	}

	return r.fileRecorder.Record(ctx, inc)
}
