package s3store

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Seams for tests.
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) error {
		_, err := c.PutObject(ctx, in)
		return err
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

type Options struct {
	Bucket     string
	Region     string
	Endpoint   string // MinIO or other S3-compatible endpoint; empty for AWS
	AccessKey  string
	SecretKey  string
	PresignTTL time.Duration
}

// Store uploads generated images and hands back presigned GET URLs.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	opts    Options
}

func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3store: bucket is required")
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 24 * time.Hour
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Store{client: client, presign: s3.NewPresignClient(client), opts: opts}, nil
}

func objectKey(contentType string) (string, error) {
	id, err := common.NewULID()
	if err != nil {
		return "", err
	}
	ext := "bin"
	if _, sub, ok := strings.Cut(contentType, "/"); ok && sub != "" {
		ext = sub
	}
	d := time.Now().UTC()
	return fmt.Sprintf("generated/%d/%02d/%02d/%s.%s", d.Year(), d.Month(), d.Day(), strings.ToLower(id), ext), nil
}

func (s *Store) PutImage(ctx context.Context, data []byte, contentType string) (string, error) {
	key, err := objectKey(contentType)
	if err != nil {
		return "", err
	}
	bucket := s.opts.Bucket
	if err := putObject(s.client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}); err != nil {
		return "", fmt.Errorf("s3store: put %s: %w", key, err)
	}

	req, err := presignGetObject(s.presign, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.opts.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("s3store: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Health checks that the bucket is reachable.
func (s *Store) Health(ctx context.Context) error {
	bucket := s.opts.Bucket
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucket})
	return err
}

func (s *Store) ServiceName() string { return "artifacts" }
