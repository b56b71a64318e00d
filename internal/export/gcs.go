package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Uploader copies export files to a Google Cloud Storage bucket.
type Uploader struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewUploader creates a GCS uploader. An empty credentialsFile uses
// application default credentials.
func NewUploader(ctx context.Context, bucket, prefix, credentialsFile string, opts ...option.ClientOption) (*Uploader, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &Uploader{client: client, bucket: bucket, prefix: prefix}, nil
}

// Upload stores the local file under the configured prefix and returns its gs:// URI.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	name := path.Join(u.prefix, filepath.Base(localPath))
	w := u.client.Bucket(u.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentTypeFor(localPath)

	if _, err := io.Copy(w, file); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", u.bucket, name), nil
}

// Close releases the storage client.
func (u *Uploader) Close() error {
	return u.client.Close()
}

func contentTypeFor(p string) string {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(p), "."))
	if err != nil {
		return "application/octet-stream"
	}
	return f.ContentType()
}
