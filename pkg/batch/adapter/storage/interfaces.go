// Package storage defines object storage connections and resolves them by name
// from the surfin.adapter.storage configuration.
package storage

import (
	"context"
	"io"

	storageConfig "github.com/forlulz/spring-batch/pkg/batch/adapter/storage/config"
)

// StorageExecutor defines generic storage operations.
// An empty bucket selects the connection's configured bucket.
type StorageExecutor interface {
	// Upload writes data to objectName. contentType is the MIME type of the data.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens objectName. The caller closes the reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for each object under prefix. An error from fn stops the listing.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes objectName. A missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection is a named, closable storage backend.
type StorageConnection interface {
	StorageExecutor
	Close() error
	Type() string
	Name() string
}

// StorageProvider creates connections of one storage type.
type StorageProvider interface {
	// Type is the value of the type setting this provider serves.
	Type() string
	// Connect opens a connection described by cfg.
	Connect(ctx context.Context, cfg storageConfig.StorageConfig, name string) (StorageConnection, error)
}

// ProviderGroup is the fx value group collecting StorageProviders.
const ProviderGroup = "storage_providers"
