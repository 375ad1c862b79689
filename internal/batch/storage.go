// Package batch writes record batch files for Singer BATCH messages to local
// disk or S3.
package batch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Storage creates batch files and reports the URL a target reads them from.
type Storage interface {
	Create(ctx context.Context, name string) (io.WriteCloser, string, error)
}

// NewStorage picks the storage for a file:// or s3:// root.
func NewStorage(ctx context.Context, root string) (Storage, error) {
	u, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("invalid batch storage root %q: %w", root, err)
	}
	switch u.Scheme {
	case "file":
		return NewFileStorage(filepath.Join(u.Host, filepath.FromSlash(u.Path)))
	case "s3":
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		return NewS3Storage(s3.NewFromConfig(cfg), u.Host, strings.TrimPrefix(u.Path, "/")), nil
	}
	return nil, fmt.Errorf("unsupported batch storage scheme %q", u.Scheme)
}

// FileStorage writes batch files under a local directory.
type FileStorage struct {
	dir string
}

// NewFileStorage creates dir when missing.
func NewFileStorage(dir string) (*FileStorage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create batch directory %s: %w", abs, err)
	}
	return &FileStorage{dir: abs}, nil
}

func (s *FileStorage) Create(_ context.Context, name string) (io.WriteCloser, string, error) {
	p := filepath.Join(s.dir, name)
	f, err := os.Create(p)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create batch file: %w", err)
	}
	return f, (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(), nil
}

// PutObjectAPI is the part of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Storage uploads batch files to a bucket.
type S3Storage struct {
	client PutObjectAPI
	bucket string
	prefix string
}

func NewS3Storage(client PutObjectAPI, bucket, prefix string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket, prefix: prefix}
}

// Create spools the file to a local temporary file; Close uploads it.
func (s *S3Storage) Create(ctx context.Context, name string) (io.WriteCloser, string, error) {
	tmp, err := os.CreateTemp("", "tap-mssql-batch-*")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create spool file: %w", err)
	}
	key := path.Join(s.prefix, name)
	return &s3Upload{ctx: ctx, storage: s, key: key, tmp: tmp}, fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

type s3Upload struct {
	ctx     context.Context
	storage *S3Storage
	key     string
	tmp     *os.File
}

func (u *s3Upload) Write(p []byte) (int, error) {
	return u.tmp.Write(p)
}

func (u *s3Upload) Close() error {
	defer os.Remove(u.tmp.Name())
	defer u.tmp.Close()

	if _, err := u.tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind spool file: %w", err)
	}
	_, err := u.storage.client.PutObject(u.ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.storage.bucket),
		Key:    aws.String(u.key),
		Body:   u.tmp,
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", u.storage.bucket, u.key, err)
	}
	return nil
}
