package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"cookiegram/internal/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Storage backends.
const (
	BackendImageHost = "imagehost"
	BackendS3        = "s3"
)

// Uploader stores an image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType, ext string) (string, error)
	Backend() string
}

// NewUploader builds the uploader selected by MEDIA_BACKEND.
func NewUploader(cfg *config.Config) (Uploader, error) {
	switch cfg.MediaBackend {
	case "", BackendImageHost:
		return NewImageHost(cfg.ImageHostURL, cfg.ImageHostClientID), nil
	case BackendS3:
		return NewObjectStore(ObjectStoreConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
			PublicURL: cfg.S3PublicURL,
		})
	}
	return nil, fmt.Errorf("unsupported media backend %q", cfg.MediaBackend)
}

// ImageHost uploads to an Imgur-compatible API.
type ImageHost struct {
	url      string
	clientID string
	hc       *http.Client
}

func NewImageHost(url, clientID string) *ImageHost {
	return &ImageHost{
		url:      url,
		clientID: clientID,
		hc: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (h *ImageHost) Backend() string { return BackendImageHost }

func (h *ImageHost) Upload(ctx context.Context, data []byte, _, ext string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "upload."+ext)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	_ = mw.WriteField("type", "file")
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Client-ID "+h.clientID)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := h.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("image host status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out struct {
		Data struct {
			Link string `json:"link"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("image host: decode: %w", err)
	}
	if out.Data.Link == "" {
		return "", errors.New("image host: response has no link")
	}
	return out.Data.Link, nil
}

// ObjectStoreConfig configures an S3-compatible bucket.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base for returned links; defaults to the endpoint.
	PublicURL string
}

// ObjectStore uploads to an S3-compatible bucket through minio-go.
type ObjectStore struct {
	cfg    ObjectStoreConfig
	client *minio.Client
}

func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if cfg.PublicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		cfg.PublicURL = scheme + "://" + endpoint
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &ObjectStore{cfg: cfg, client: cl}, nil
}

func (s *ObjectStore) Backend() string { return BackendS3 }

// EnsureBucket creates the bucket when it does not exist.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (s *ObjectStore) Upload(ctx context.Context, data []byte, contentType, ext string) (string, error) {
	key := ObjectKey(ext)
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", s.cfg.PublicURL, s.cfg.Bucket, key), nil
}

// ObjectKey returns a fresh key under uploads/.
func ObjectKey(ext string) string {
	return fmt.Sprintf("uploads/%s.%s", uuid.NewString(), ext)
}
