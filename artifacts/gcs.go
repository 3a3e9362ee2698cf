package artifacts

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSMirror copies artifacts to a Cloud Storage bucket
type GCSMirror struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSMirror connects to bucket. Without credentialsJSON the application
// default credentials are used.
func NewGCSMirror(ctx context.Context, bucket, prefix string, credentialsJSON []byte) (*GCSMirror, error) {
	var opts []option.ClientOption
	if len(credentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init storage client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %w", bucket, err)
	}
	return &GCSMirror{client: client, bucket: bucket, prefix: prefix}, nil
}

func (m *GCSMirror) Put(ctx context.Context, name string, data []byte) error {
	object := path.Join(m.prefix, filepath.ToSlash(name))
	wc := m.client.Bucket(m.bucket).Object(object).NewWriter(ctx)
	wc.ContentType = "application/pdf"

	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("upload %s: %w", object, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", object, err)
	}
	return nil
}

func (m *GCSMirror) Close() error {
	return m.client.Close()
}
