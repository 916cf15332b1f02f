// Package storage stores listing images on the configured disk.
//
//	disk, err := storage.Open(ctx)
//	err = disk.Put(ctx, "listings/abc.jpeg", r, "image/jpeg")
//	url := disk.URL("listings/abc.jpeg")
//
// Two drivers exist: "local" (served by the app under /storage/) and "s3"
// (any S3-compatible endpoint).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/shashiranjanraj/phonedeals/config"
)

var ErrInvalidPath = errors.New("storage: invalid path")

// Disk is implemented by every driver.
type Disk interface {
	Put(ctx context.Context, path string, r io.Reader, contentType string) error
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes path. Missing files are not an error.
	Delete(ctx context.Context, path string) error
	URL(path string) string
}

// Open returns the disk selected by STORAGE_DISK.
func Open(ctx context.Context) (Disk, error) {
	switch name := config.StorageDefault(); name {
	case "local":
		return NewLocal(config.StorageLocalRoot(), config.StorageURL())
	case "s3":
		return NewS3(ctx, S3Options{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
			BaseURL:  config.StorageS3URL(),
		})
	default:
		return nil, fmt.Errorf("storage: unknown disk %q", name)
	}
}

// clean normalises a slash path and rejects anything escaping the disk root.
func clean(p string) (string, error) {
	c := path.Clean("/" + strings.TrimSpace(p))
	c = strings.TrimPrefix(c, "/")
	if c == "" || c == "." || strings.Contains(p, "..") {
		return "", ErrInvalidPath
	}
	return c, nil
}
