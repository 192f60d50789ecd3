// Package archive uploads the eligibility commitment of every provisioned
// election to an S3 compatible bucket, so the leaf set can be audited
// independently of the node.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Rdilshan/e-voting-web-sub000/log"
	"github.com/Rdilshan/e-voting-web-sub000/types"
)

// Archive stores election commitments.
type Archive interface {
	PutCommitment(ctx context.Context, commitment *types.Commitment) (string, error)
}

// S3Config holds the configuration of the S3 archive.
type S3Config struct {
	Enabled   bool
	Endpoint  string // host of an S3 compatible service, empty for AWS
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	PublicACL bool
}

// NewDefaultS3Config returns a disabled configuration with default values.
func NewDefaultS3Config() *S3Config {
	return &S3Config{
		Region: "us-east-1",
		Prefix: "commitments",
	}
}

// ObjectAPI is the subset of the S3 client used by the archive.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Archive implements Archive on S3.
type S3Archive struct {
	client ObjectAPI
	config *S3Config
}

// NewS3Archive creates the S3 client for cfg.
func NewS3Archive(ctx context.Context, cfg *S3Config) (*S3Archive, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("s3 archive not enabled")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		if cfg.AccessKey == "" || cfg.SecretKey == "" {
			return nil, fmt.Errorf("s3 access key and secret key must be set together")
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String("https://" + cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3ArchiveWithClient(client, cfg), nil
}

// NewS3ArchiveWithClient returns an archive over an existing client.
func NewS3ArchiveWithClient(client ObjectAPI, cfg *S3Config) *S3Archive {
	return &S3Archive{client: client, config: cfg}
}

// ObjectKey returns the key of the commitment of an election.
func (a *S3Archive) ObjectKey(electionID types.ElectionID) string {
	return path.Join(a.config.Prefix, electionID.String()+".json")
}

// PutCommitment uploads the commitment as JSON and returns its object key.
func (a *S3Archive) PutCommitment(ctx context.Context, commitment *types.Commitment) (string, error) {
	body, err := json.Marshal(commitment)
	if err != nil {
		return "", fmt.Errorf("encode commitment: %w", err)
	}
	key := a.ObjectKey(commitment.ElectionID)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}
	if a.config.PublicACL {
		input.ACL = s3types.ObjectCannedACLPublicRead
	}
	if _, err := a.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload commitment %s: %w", key, err)
	}
	log.Infow("commitment archived", "bucket", a.config.Bucket, "key", key, "leaves", len(commitment.Leaves))
	return key, nil
}

// Commitment downloads the archived commitment of an election.
func (a *S3Archive) Commitment(ctx context.Context, electionID types.ElectionID) (*types.Commitment, error) {
	key := a.ObjectKey(electionID)
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download commitment %s: %w", key, err)
	}
	defer func() {
		if err := out.Body.Close(); err != nil {
			log.Warnw("failed to close object body", "error", err.Error())
		}
	}()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read commitment %s: %w", key, err)
	}
	commitment := &types.Commitment{}
	if err := json.Unmarshal(data, commitment); err != nil {
		return nil, fmt.Errorf("invalid commitment %s: %w", key, err)
	}
	return commitment, nil
}
