package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/banking/regional-compliance/internal/config"
	"github.com/banking/regional-compliance/internal/crypto"
	"github.com/banking/regional-compliance/internal/domain"
)

// ObjectPutter is the part of the S3 client the archive uses
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// FilingArchive keeps an immutable copy of every filed report
type FilingArchive struct {
	client  ObjectPutter
	bucket  string
	keyring *crypto.Keyring // nil stores plaintext JSON
}

// NewClient creates an S3 client, honouring a custom endpoint for MinIO/Localstack
func NewClient(ctx context.Context, cfg appConfig.S3Config) (*s3.Client, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           cfg.Endpoint,
				SigningRegion: cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithEndpointResolverWithOptions(customResolver),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for MinIO
	}), nil
}

// NewFilingArchive creates an archive writing to bucket. A non-nil keyring
// seals each object with the current key.
func NewFilingArchive(client ObjectPutter, bucket string, keyring *crypto.Keyring) *FilingArchive {
	return &FilingArchive{client: client, bucket: bucket, keyring: keyring}
}

// ObjectKey returns where a filed report is stored. The acknowledgment
// number is part of the key, so re-filing the same report overwrites the
// same object.
func ObjectKey(report *domain.ComplianceReport, sealed bool) string {
	ack := report.AcknowledgmentNumber
	if ack == "" {
		ack = "unacknowledged"
	}
	key := fmt.Sprintf("filings/%s/%d/%02d/%s/%s.json",
		strings.ToLower(report.Jurisdiction),
		report.FilingDate.Year(), report.FilingDate.Month(),
		report.ReportID, ack)
	if sealed {
		key += ".sealed"
	}
	return key
}

// Submit archives the report
func (a *FilingArchive) Submit(ctx context.Context, report *domain.ComplianceReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report for archive: %w", err)
	}

	metadata := map[string]string{
		"report-type": string(report.Type),
		"provider":    report.Provider,
	}
	contentType := "application/json"
	sealed := a.keyring != nil
	if sealed {
		var version int
		data, version, err = a.keyring.Seal(data)
		if err != nil {
			return fmt.Errorf("failed to seal report: %w", err)
		}
		metadata["key-version"] = strconv.Itoa(version)
		contentType = "application/octet-stream"
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(ObjectKey(report, sealed)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to upload report to s3: %w", err)
	}
	return nil
}
