package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var ErrReportNotFound = errors.New("report not found")

// ReportStore keeps exported report documents.
type ReportStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Open(ctx context.Context, name string) ([]byte, error)
}

type localReportStore struct {
	basePath string
}

func NewLocalReportStore(basePath string) (ReportStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	return &localReportStore{basePath: basePath}, nil
}

func (s *localReportStore) Save(_ context.Context, name string, data []byte) (string, error) {
	if err := validateReportName(name); err != nil {
		return "", err
	}

	filePath := filepath.Join(s.basePath, name)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	return filePath, nil
}

func (s *localReportStore) Open(_ context.Context, name string) ([]byte, error) {
	if err := validateReportName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.basePath, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	return data, nil
}

type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// R2 and most compatible providers ignore the region, but the SDK still
// needs one to sign requests.
const compatibleRegion = "auto"

// region leaves an unset region to the SDK's own chain (AWS_REGION, shared
// config) unless a custom endpoint is in use.
func (o S3Options) region() string {
	if o.Region == "" && o.Endpoint != "" {
		return compatibleRegion
	}
	return o.Region
}

type s3ReportStore struct {
	client *s3.Client
	bucket string
}

// NewS3ReportStore stores reports in an S3-compatible bucket. A custom
// endpoint (e.g. https://<account>.r2.cloudflarestorage.com) selects R2 or
// another compatible provider.
func NewS3ReportStore(ctx context.Context, opts S3Options) (ReportStore, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region := opts.region(); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("error creating aws config: %w", err)
	}
	if awsCfg.Region == "" {
		return nil, fmt.Errorf("no region for bucket %q: set S3_REGION or AWS_REGION", opts.Bucket)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &s3ReportStore{client: client, bucket: opts.Bucket}, nil
}

func (s *s3ReportStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := validateReportName(name); err != nil {
		return "", err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(DocxContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, name), nil
}

func (s *s3ReportStore) Open(ctx context.Context, name string) ([]byte, error) {
	if err := validateReportName(name); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	return data, nil
}

// ReportFileName is the store key of an analysis export.
func ReportFileName(id string) string {
	return fmt.Sprintf("cv_analysis_%s.docx", id)
}

func validateReportName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid report name: %q", name)
	}
	return nil
}
