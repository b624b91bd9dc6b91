package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	storagetypes "github.com/nckslvrmn/stash/internal/storage/types"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps each secret as a JSON object. Create-once relies on
// conditional writes (If-None-Match: *).
type S3Store struct {
	client S3API
	bucket string
}

func NewS3Store(ctx context.Context, region, bucket string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

func objectKey(id string) *string {
	return aws.String("secrets/" + id + ".json")
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}

func (s *S3Store) Write(ctx context.Context, secret *storagetypes.Secret) error {
	data, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("failed to encode secret: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  objectKey(secret.ID),
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String("application/json"),
		IfNoneMatch:          aws.String("*"),
		ACL:                  types.ObjectCannedACLPrivate,
		ServerSideEncryption: types.ServerSideEncryptionAwsKms,
	})
	if isPreconditionFailed(err) {
		return storagetypes.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to upload secret to S3: %w", err)
	}

	return nil
}

func (s *S3Store) ReadByID(ctx context.Context, id string) (*storagetypes.Secret, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    objectKey(id),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download secret from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read the S3 object content: %w", err)
	}

	var secret storagetypes.Secret
	if err := json.Unmarshal(data, &secret); err != nil {
		return nil, fmt.Errorf("invalid secret object: %w", err)
	}

	return &secret, nil
}

func (s *S3Store) DeleteByID(ctx context.Context, id string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    objectKey(id),
	})
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat secret in S3: %w", err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    objectKey(id),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete secret from S3: %w", err)
	}

	return true, nil
}
