// Package objectstore archives generated audio in a NATS JetStream object store.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const contentTypeWAV = "audio/wav"

// ErrObjectNotFound is returned by Download for unknown keys.
var ErrObjectNotFound = errors.New("object not found in archive")

// Archive implements core.ObjectStore on top of a JetStream object store bucket.
type Archive struct {
	bucket string
	store  nats.ObjectStore
}

// New binds to bucketName, creating it on first use.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*Archive, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: "Generated voice-clone audio.",
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &Archive{bucket: bucketName, store: store}, nil
}

// Bucket returns the bucket name.
func (a *Archive) Bucket() string {
	return a.bucket
}

// Download reads the object stored under key.
func (a *Archive) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.store.Get(key, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrObjectNotFound, key)
		}

		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, a.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload stores data under key.
func (a *Archive) Upload(ctx context.Context, key string, data []byte) error {
	return a.put(ctx, key, bytes.NewReader(data))
}

// UploadFile streams the file at path into the archive under key.
func (a *Archive) UploadFile(ctx context.Context, key, path string) error {
	file, err := os.Open(path) // #nosec G304 -- path is a generated output file
	if err != nil {
		return fmt.Errorf("failed to open %s for archiving: %w", path, err)
	}
	defer file.Close()

	return a.put(ctx, key, file)
}

func (a *Archive) put(ctx context.Context, key string, reader io.Reader) error {
	_, err := a.store.Put(&nats.ObjectMeta{
		Name:     key,
		Metadata: map[string]string{"content-type": contentTypeWAV},
	}, reader, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, a.bucket, err)
	}

	return nil
}
