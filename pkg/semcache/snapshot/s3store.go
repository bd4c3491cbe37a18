package snapshot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the optional S3-backed snapshot store, adapted from
// the host application's S3 logging callback setup.
type S3Config struct {
	BucketName  string
	Key         string // object key snapshots are written to/read from
	Region      string
	AccessKeyID string
	SecretKey   string
	Endpoint    string // custom endpoint, for MinIO-compatible stores
}

// S3Store saves and loads a single snapshot object in S3.
type S3Store struct {
	cfg    S3Config
	client *s3.Client
}

// NewS3Store builds an S3Store from cfg, loading AWS credentials from the
// environment unless AccessKeyID/SecretKey are set explicitly.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.BucketName == "" || cfg.Key == "" {
		return nil, fmt.Errorf("snapshot: s3 bucket_name and key are required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Store{cfg: cfg, client: s3.NewFromConfig(awsCfg, s3Opts...)}, nil
}

// Save writes payload to the configured bucket/key.
func (s *S3Store) Save(ctx context.Context, payload Payload) error {
	data, err := Bytes(payload)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.BucketName),
		Key:         aws.String(s.cfg.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("snapshot: put object: %w", err)
	}
	return nil
}

// Load reads and decodes the snapshot currently stored at bucket/key.
func (s *S3Store) Load(ctx context.Context) (Payload, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.BucketName),
		Key:    aws.String(s.cfg.Key),
	})
	if err != nil {
		return Payload{}, fmt.Errorf("snapshot: get object: %w", err)
	}
	defer out.Body.Close()
	return Read(out.Body)
}
