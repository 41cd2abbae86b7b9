package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cookiegram/internal/featureflags"
	"cookiegram/internal/media"
	"cookiegram/internal/middleware"
	"cookiegram/internal/models"
	"cookiegram/internal/observability"
)

// UploadResult is the public link of a stored image.
type UploadResult struct {
	Link string `json:"link"`
}

// MediaService validates, normalizes and stores uploaded images.
type MediaService struct {
	maxBytes  int64
	normalize bool
	uploaders map[string]media.Uploader
	flags     *featureflags.Manager
}

// NewMediaService registers uploaders by backend. When an object store is
// registered, the s3_uploads flag decides per user whether it is used.
func NewMediaService(maxBytes int64, normalize bool, flags *featureflags.Manager, uploaders ...media.Uploader) *MediaService {
	s := &MediaService{
		maxBytes:  maxBytes,
		normalize: normalize,
		uploaders: make(map[string]media.Uploader, len(uploaders)),
		flags:     flags,
	}
	for _, u := range uploaders {
		if u != nil {
			s.uploaders[u.Backend()] = u
		}
	}
	return s
}

// MaxBytes is the largest accepted upload.
func (s *MediaService) MaxBytes() int64 { return s.maxBytes }

func (s *MediaService) uploaderFor(userID uint) media.Uploader {
	if u, ok := s.uploaders[media.BackendS3]; ok && s.flags.Enabled(featureflags.S3Uploads, userID) {
		return u
	}
	if u, ok := s.uploaders[media.BackendImageHost]; ok {
		return u
	}
	for _, u := range s.uploaders {
		return u
	}
	return nil
}

// Upload stores data on behalf of userID and returns its public link.
func (s *MediaService) Upload(ctx context.Context, userID uint, data []byte) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %d bytes)", s.maxBytes))
	}

	contentType, ext, err := media.Detect(data)
	if err != nil {
		return nil, models.NewValidationError("Uploaded file is not a supported image")
	}
	if s.normalize {
		data, err = media.Normalize(data)
		if err != nil {
			if errors.Is(err, media.ErrNotImage) {
				return nil, models.NewValidationError("Uploaded file is not a supported image")
			}
			return nil, models.NewInternalError(err)
		}
		contentType, ext = "image/webp", "webp"
	}

	up := s.uploaderFor(userID)
	if up == nil {
		return nil, models.NewInternalError(errors.New("no media backend configured"))
	}

	link, err := up.Upload(ctx, data, contentType, ext)
	if err != nil {
		observability.MediaUploads.WithLabelValues(up.Backend(), "error").Inc()
		middleware.Logger.ErrorContext(ctx, "image upload failed",
			slog.String("backend", up.Backend()), slog.String("error", err.Error()))
		return nil, models.NewUpstreamError("image host", err)
	}
	observability.MediaUploads.WithLabelValues(up.Backend(), "ok").Inc()
	return &UploadResult{Link: link}, nil
}
