// Package blobstore allocates presigned upload slots for the reference
// backend, either against its own in-memory object store or against S3.
package blobstore

import (
	"context"
	"errors"

	"upqueue/internal/models"
)

var (
	ErrUnknownKey = errors.New("blobstore: unknown object key")
	ErrNotFound   = errors.New("blobstore: object not found")
)

// Allocator hands out upload destinations and resolves uploaded objects.
type Allocator interface {
	Presign(ctx context.Context, count int) ([]models.SlotLink, error)
	Exists(ctx context.Context, key string) (bool, error)
	DownloadURL(ctx context.Context, key string) (string, error)
}
