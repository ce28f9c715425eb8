package media

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/skybite/internal/core/domain"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")
	gifBytes = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	uploadAt = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
)

// =============================================================================
// Prepare
// =============================================================================

func TestPrepare(t *testing.T) {
	obj, err := Prepare(pngBytes, uploadAt)
	require.NoError(t, err)

	assert.Equal(t, "image/png", obj.ContentType)
	assert.True(t, strings.HasPrefix(obj.Key, "uploads/2026/03/"))
	assert.True(t, strings.HasSuffix(obj.Key, ".png"))

	obj, err = Prepare(gifBytes, uploadAt)
	require.NoError(t, err)
	assert.Equal(t, "image/gif", obj.ContentType)
}

func TestPrepare_Rejects(t *testing.T) {
	_, err := Prepare(nil, uploadAt)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = Prepare([]byte("<html><body>hi</body></html>"), uploadAt)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	big := make([]byte, MaxUploadSize+1)
	copy(big, pngBytes)
	_, err = Prepare(big, uploadAt)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestNew_Drivers(t *testing.T) {
	u, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Disabled{}, u)

	_, err = u.Upload(context.Background(), Object{})
	assert.ErrorIs(t, err, ErrUploadDisabled)

	_, err = New(Config{Driver: DriverS3}, nil)
	assert.Error(t, err, "bucket is required")

	u, err = New(Config{Driver: "S3", S3: S3Config{Bucket: "menu-images", Region: "ap-southeast-1"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://menu-images.s3.ap-southeast-1.amazonaws.com", u.(*S3Uploader).baseURL)

	_, err = New(Config{Driver: "gcs"}, nil)
	assert.Error(t, err)
}

// =============================================================================
// S3
// =============================================================================

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Uploader_Upload(t *testing.T) {
	putter := &fakePutter{}
	u := &S3Uploader{client: putter, bucket: "menu-images", baseURL: "https://cdn.skybite.test", logger: slog.Default()}
	obj, err := Prepare(pngBytes, uploadAt)
	require.NoError(t, err)

	url, err := u.Upload(context.Background(), obj)
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.skybite.test/"+obj.Key, url)
	assert.Equal(t, "menu-images", *putter.input.Bucket)
	assert.Equal(t, obj.Key, *putter.input.Key)
	assert.Equal(t, "image/png", *putter.input.ContentType)
	assert.Equal(t, pngBytes, putter.body)
}

func TestS3Uploader_APIError(t *testing.T) {
	putter := &fakePutter{err: &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}}
	u := &S3Uploader{client: putter, bucket: "menu-images", baseURL: "https://cdn.skybite.test", logger: slog.Default()}

	_, err := u.Upload(context.Background(), Object{Key: "uploads/x.png", ContentType: "image/png", Body: pngBytes})
	assert.ErrorIs(t, err, domain.ErrExternalService)
	assert.Contains(t, err.Error(), "AccessDenied")

	putter.err = errors.New("dial tcp: timeout")
	_, err = u.Upload(context.Background(), Object{Key: "uploads/x.png", ContentType: "image/png", Body: pngBytes})
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

// =============================================================================
// Image host
// =============================================================================

func TestImgHostUploader_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "host-key", r.PostForm.Get("key"))
		decoded, err := base64.StdEncoding.DecodeString(r.PostForm.Get("image"))
		require.NoError(t, err)
		assert.Equal(t, pngBytes, decoded)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"url":"https://i.host.test/abc.png"},"success":true}`))
	}))
	defer server.Close()

	u, err := NewImgHostUploader(ImgHostConfig{UploadURL: server.URL, APIKey: "host-key"}, slog.Default())
	require.NoError(t, err)

	url, err := u.Upload(context.Background(), Object{Key: "uploads/2026/03/abc.png", ContentType: "image/png", Body: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, "https://i.host.test/abc.png", url)
}

func TestImgHostUploader_Failures(t *testing.T) {
	status := http.StatusBadRequest
	body := `{"error":"invalid key"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	defer server.Close()

	u, err := NewImgHostUploader(ImgHostConfig{UploadURL: server.URL}, slog.Default())
	require.NoError(t, err)
	obj := Object{Key: "uploads/a.png", ContentType: "image/png", Body: pngBytes}

	_, err = u.Upload(context.Background(), obj)
	assert.ErrorIs(t, err, domain.ErrExternalService)
	assert.Contains(t, err.Error(), "invalid key")

	status, body = http.StatusOK, `{"data":{},"success":false}`
	_, err = u.Upload(context.Background(), obj)
	assert.ErrorIs(t, err, domain.ErrExternalService)

	_, err = NewImgHostUploader(ImgHostConfig{}, slog.Default())
	assert.Error(t, err)
}
