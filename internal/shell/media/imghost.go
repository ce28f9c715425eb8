package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
)

// ImgHostConfig configures an imgbb-style image host.
type ImgHostConfig struct {
	UploadURL string
	APIKey    string
	Timeout   time.Duration
}

// ImgHostUploader posts images as a base64 form field and reads the hosted
// URL from {"data":{"url":...}}.
type ImgHostUploader struct {
	uploadURL  string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewImgHostUploader creates an image host uploader.
func NewImgHostUploader(cfg ImgHostConfig, logger *slog.Logger) (*ImgHostUploader, error) {
	if cfg.UploadURL == "" {
		return nil, errors.New("media.imghost.upload_url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ImgHostUploader{
		uploadURL:  cfg.UploadURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "media", "backend", "imghost"),
	}, nil
}

type imgHostResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Success bool `json:"success"`
}

func (u *ImgHostUploader) Upload(ctx context.Context, obj Object) (string, error) {
	form := url.Values{
		"key":   {u.apiKey},
		"image": {base64.StdEncoding.EncodeToString(obj.Body)},
		"name":  {strings.TrimPrefix(obj.Key, "uploads/")},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", domain.NewExternalServiceError("imghost", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", domain.NewExternalServiceError("imghost",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var out imgHostResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.NewExternalServiceError("imghost", fmt.Errorf("decode response: %w", err))
	}
	if out.Data.URL == "" {
		return "", domain.NewExternalServiceError("imghost", errors.New("response has no url"))
	}

	u.logger.Debug("stored image", "url", out.Data.URL, "size", len(obj.Body))
	return out.Data.URL, nil
}
