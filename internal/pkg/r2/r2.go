package r2

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Options struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Key             string
	Endpoint        string // overrides https://<account>.r2.cloudflarestorage.com
}

// Storage keeps a single backup object in a Cloudflare R2 bucket.
type Storage struct {
	client *s3.Client
	bucket string
	key    string

	httpClient *http.Client
	opts       Options
}

func New(ctx context.Context, opts Options) (*Storage, error) {
	if opts.Bucket == "" || opts.Key == "" {
		return nil, fmt.Errorf("r2: bucket and key are required")
	}
	if opts.Endpoint == "" {
		if opts.AccountID == "" {
			return nil, fmt.Errorf("r2: account id or endpoint is required")
		}
		opts.Endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID)
	}

	s := &Storage{bucket: opts.Bucket, key: opts.Key, opts: opts}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) connect(ctx context.Context) error {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.opts.AccessKeyID, s.opts.SecretAccessKey, "",
		)),
	}
	if s.httpClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(s.httpClient))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("failed to load R2 config: %w", err)
	}

	s.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.opts.Endpoint)
		o.UsePathStyle = true
	})
	return nil
}

// UseDefaultClient rebuilds the S3 client on top of http.DefaultClient.
func (s *Storage) UseDefaultClient(ctx context.Context) error {
	s.httpClient = http.DefaultClient
	return s.connect(ctx)
}

func (s *Storage) Save(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}

// Load returns the stored object, or nil when it does not exist.
func (s *Storage) Load(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var respErr *awshttp.ResponseError
		if errors.As(err, &noSuchKey) || (errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to download from R2: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read R2 object: %w", err)
	}
	return data, nil
}
