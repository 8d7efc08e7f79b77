// Package gpas3 stores admin uploads in an S3 compatible bucket
package gpas3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/lemmego/gpadmin"
)

// Config describes the bucket uploads live in
type Config struct {
	Bucket          string `json:"bucket" yaml:"bucket" mapstructure:"bucket"`
	Region          string `json:"region" yaml:"region" mapstructure:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token" mapstructure:"session_token"`
	PathStyleAccess bool   `json:"path_style_access" yaml:"path_style_access" mapstructure:"path_style_access"`
	// Prefix is prepended to every key
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
}

// DeleteObjectAPI is the part of *s3.Client the storage needs
type DeleteObjectAPI interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Storage implements gpadmin.FileStorage on a bucket
type Storage struct {
	client DeleteObjectAPI
	bucket string
	prefix string
}

// New wraps an existing client
func New(client DeleteObjectAPI, bucket, prefix string) *Storage {
	return &Storage{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewFromConfig builds an S3 client with static credentials. A custom
// endpoint (MinIO, R2, ...) implies path style addressing.
func NewFromConfig(cfg Config) (*Storage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, gpadmin.NewError(gpadmin.ErrorTypeConfiguration, "s3 storage needs a bucket and a region")
	}

	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyleAccess,
	}
	if cfg.AccessKeyID != "" {
		if cfg.SecretAccessKey == "" {
			return nil, gpadmin.NewError(gpadmin.ErrorTypeConfiguration, "s3 secret_access_key is required with access_key_id")
		}
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	}
	if endpoint := strings.TrimSuffix(strings.TrimSpace(cfg.Endpoint), "/"); endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}

	return New(s3.New(opts), cfg.Bucket, cfg.Prefix), nil
}

// ObjectKey returns the bucket key of a storage key
func (s *Storage) ObjectKey(key string) string {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// Delete removes the object stored under key. Missing objects are not an
// error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	objectKey := s.ObjectKey(key)
	if objectKey == "" || objectKey == s.prefix+"/" {
		return gpadmin.NewError(gpadmin.ErrorTypeInvalidArgument, fmt.Sprintf("invalid object key %q", key))
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err == nil {
		return nil
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeInternal, fmt.Sprintf("delete s3 object %q", objectKey), err)
}

var _ gpadmin.FileStorage = (*Storage)(nil)
