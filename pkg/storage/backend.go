// Package storage writes rendered reports to a local directory or an S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid object key")

// BlobStore defines the interface for report destinations.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

const s3Scheme = "s3://"

// IsS3 reports whether dest names an S3 location.
func IsS3(dest string) bool {
	return strings.HasPrefix(dest, s3Scheme)
}

// Open resolves a destination. "s3://bucket/prefix" targets S3, anything else
// is a local directory. The returned prefix is prepended to report keys.
func Open(dest string, cfg aws.Config) (BlobStore, string, error) {
	if rest, ok := strings.CutPrefix(dest, s3Scheme); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, "", fmt.Errorf("%w: missing bucket in %q", ErrInvalidKey, dest)
		}
		return NewS3Store(cfg, bucket), strings.Trim(prefix, "/"), nil
	}
	if dest == "" {
		dest = "."
	}
	return NewLocalStore(dest), "", nil
}

// ReportKey names a rendered report, e.g. "costs/20240315T120000Z-7d.json".
func ReportKey(prefix, kind, label string, at time.Time, ext string) string {
	name := fmt.Sprintf("%s-%s.%s", at.UTC().Format("20060102T150405Z"), label, ext)
	return path.Join(prefix, kind, name)
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.TrimSpace(key))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return k, nil
}
