package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/artpar/skybite/internal/core/auth"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/shell/api/openapi"
	"github.com/artpar/skybite/internal/shell/media"
	"github.com/gorilla/mux"
)

// multipartOverhead is the allowance for form boundaries and headers on top
// of the file itself.
const multipartOverhead = 64 << 10

// UploadHandler accepts image uploads for restaurant and dish pictures.
type UploadHandler struct {
	uploader media.Uploader
	logger   *slog.Logger
	now      func() time.Time
}

// NewUploadHandler creates the upload handler.
func NewUploadHandler(u media.Uploader, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploader: u, logger: logger, now: time.Now}
}

// RegisterRoutes registers POST /api/upload on the /api subrouter.
func (h *UploadHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/upload", h.Upload).Methods("POST")
}

type uploadResponse struct {
	DownloadURL string `json:"downloadURL"`
}

type uploadForm struct {
	File []byte `json:"file"`
}

func uploadAction() openapi.ActionInfo {
	return openapi.ActionInfo{
		Method: "POST", Path: "/api/upload", Summary: "Upload an image (multipart field \"file\")", Tag: "Media",
		Request: uploadForm{}, Response: uploadResponse{},
	}
}

// Upload stores the multipart "file" field and returns its public URL.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if ok, _ := auth.RequireAuthentication(auth.FromContext(r.Context())); !ok {
		writeError(w, r, h.logger, auth.ErrUnauthenticated)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadSize+multipartOverhead)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, h.logger, media.ErrTooLarge)
			return
		}
		writeError(w, r, h.logger, domain.NewValidationError("file", "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, media.MaxUploadSize+1))
	if err != nil {
		writeError(w, r, h.logger, domain.NewValidationError("file", "could not read upload"))
		return
	}

	obj, err := media.Prepare(data, h.now())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	url, err := h.uploader.Upload(r.Context(), obj)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("image uploaded", "key", obj.Key, "content_type", obj.ContentType, "bytes", len(obj.Body))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(uploadResponse{DownloadURL: url})
}
