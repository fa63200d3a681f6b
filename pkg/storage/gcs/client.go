// Package gcs stores generated assets in one Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/acari-app/acari-backend/pkg/config"
	"github.com/acari-app/acari-backend/pkg/logger"
)

const (
	storageHost    = "https://storage.googleapis.com"
	requestTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

var errNotReady = errors.New("gcs client not initialized")

// Client uploads generated logos, QR codes and other assets and serves them
// from publicBase.
type Client struct {
	objects    *storage.ObjectsService
	bucket     string
	publicBase string
}

// NewClient resolves credentials from inline JSON, a key file, or the
// ambient Application Default Credentials, then checks bucket access.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	creds, err := credentials(ctx, gcp)
	if err != nil {
		return nil, err
	}
	client, err := newClient(ctx, cfg, option.WithCredentials(creds))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs.client.ready")
	return client, nil
}

func newClient(ctx context.Context, cfg config.GCSConfig, opts ...option.ClientOption) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs service: %w", err)
	}
	return &Client{
		objects:    storage.NewObjectsService(svc),
		bucket:     cfg.BucketName,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func credentials(ctx context.Context, gcp config.GCPConfig) (*google.Credentials, error) {
	raw := []byte(gcp.CredentialsJSON)
	if len(raw) == 0 && gcp.ApplicationCredentials != "" {
		file, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		raw = file
	}
	if len(raw) == 0 {
		creds, err := google.FindDefaultCredentials(ctx, storage.DevstorageReadWriteScope)
		if err != nil {
			return nil, fmt.Errorf("default gcp credentials: %w", err)
		}
		return creds, nil
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, storage.DevstorageReadWriteScope)
	if err != nil {
		return nil, fmt.Errorf("parsing gcp credentials: %w", err)
	}
	return creds, nil
}

// Ping lists at most one object, which needs storage.objects.list on the
// bucket and so proves both credentials and bucket name.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.objects == nil {
		return errNotReady
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.objects.List(c.bucket).MaxResults(1).Fields("items/name").Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcs bucket check: %w", err)
	}
	return nil
}

// Upload stores data under object and returns the public URL.
func (c *Client) Upload(ctx context.Context, object, contentType string, data []byte) (string, error) {
	if c == nil || c.objects == nil {
		return "", errNotReady
	}
	object = strings.TrimLeft(object, "/")
	if object == "" {
		return "", errors.New("object name is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	_, err := c.objects.Insert(c.bucket, &storage.Object{Name: object, ContentType: contentType}).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("gcs upload %s: %w", object, err)
	}
	return c.PublicURL(object), nil
}

// DeleteObject removes object from bucket, or the default bucket when empty.
// A missing object counts as deleted.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	if c == nil || c.objects == nil {
		return errNotReady
	}
	if bucket == "" {
		bucket = c.bucket
	}
	err := c.objects.Delete(bucket, strings.TrimLeft(object, "/")).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("gcs delete %s: %w", object, err)
	}
	return nil
}

// PublicURL is where browsers fetch object from.
func (c *Client) PublicURL(object string) string {
	base := c.publicBase
	if base == "" {
		base = storageHost
	}
	return base + "/" + c.bucket + "/" + strings.TrimLeft(object, "/")
}
