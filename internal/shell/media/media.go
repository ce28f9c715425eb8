// Package media stores uploaded images (restaurant and dish pictures) in an
// external object store and returns their public URL.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/skybite/internal/core/domain"
)

// MaxUploadSize is the largest accepted upload in bytes.
const MaxUploadSize = 10 << 20

// Backend names.
const (
	DriverNone    = "none"
	DriverS3      = "s3"
	DriverImgHost = "imghost"
)

var (
	// ErrUploadDisabled is returned when no storage backend is configured.
	ErrUploadDisabled = errors.New("media uploads are not configured")

	// ErrTooLarge is returned for uploads over MaxUploadSize.
	ErrTooLarge = errors.New("upload exceeds 10 MiB")

	// ErrUnsupportedType is returned for anything other than the allowed images.
	ErrUnsupportedType = errors.New("unsupported media type")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Object is a validated upload ready for storage.
type Object struct {
	Key         string
	ContentType string
	Body        []byte
}

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, obj Object) (string, error)
}

// Config selects and configures the backend.
type Config struct {
	Driver  string
	S3      S3Config
	ImgHost ImgHostConfig
}

// New creates the uploader for cfg.Driver.
func New(cfg Config, logger *slog.Logger) (Uploader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(cfg.Driver) {
	case "", DriverNone:
		return Disabled{}, nil
	case DriverS3:
		return NewS3Uploader(cfg.S3, logger)
	case DriverImgHost:
		return NewImgHostUploader(cfg.ImgHost, logger)
	default:
		return nil, fmt.Errorf("unsupported media driver %q", cfg.Driver)
	}
}

// Prepare validates an upload and assigns it a storage key. The content type
// is sniffed from the bytes; the client's declared type is ignored.
func Prepare(data []byte, now time.Time) (Object, error) {
	if len(data) == 0 {
		return Object{}, domain.NewValidationError("file", "file is empty")
	}
	if len(data) > MaxUploadSize {
		return Object{}, ErrTooLarge
	}
	contentType := DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return Object{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return Object{
		Key:         fmt.Sprintf("uploads/%s/%s%s", now.UTC().Format("2006/01"), uuid.NewString(), ext),
		ContentType: contentType,
		Body:        data,
	}, nil
}

// DetectContentType returns the MIME type of data without parameters.
func DetectContentType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// Disabled rejects every upload.
type Disabled struct{}

func (Disabled) Upload(ctx context.Context, obj Object) (string, error) {
	return "", ErrUploadDisabled
}
