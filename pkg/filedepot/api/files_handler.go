package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/filedepot/filedepot/pkg/filedepot"
	"github.com/filedepot/filedepot/pkg/filedepot/urls"
)

// multipart framing overhead allowed on top of the service's own size cap
const multipartSlack = 64 << 10

// FilesHandler exposes the file store over HTTP: multipart upload, listing,
// streaming fetch and delete.
type FilesHandler struct {
	service        filedepot.Service
	urlStrategy    urls.Strategy
	maxUploadBytes int64
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(service filedepot.Service, urlStrategy urls.Strategy, maxUploadBytes int64) *FilesHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = filedepot.DefaultMaxUploadBytes
	}
	return &FilesHandler{
		service:        service,
		urlStrategy:    urlStrategy,
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns the router for files endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.UploadFile)
	r.Get("/", h.ListFiles)
	r.Get("/{id}", h.GetFileInfo)
	r.Get("/{id}/content", h.DownloadFile)
	r.Delete("/{id}", h.DeleteFile)
	return r
}

// FileResponse is the serialized form of a catalog record
type FileResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentHash string    `json:"content_hash"`
	MimeType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	URL         string    `json:"url,omitempty"`
}

func (h *FilesHandler) toResponse(rec *filedepot.FileRecord) FileResponse {
	resp := FileResponse{
		ID:          rec.ID.String(),
		Name:        rec.DisplayName,
		ContentHash: rec.ContentHash,
		MimeType:    rec.MimeType,
		SizeBytes:   rec.SizeBytes,
		CreatedAt:   rec.CreatedAt,
	}
	if h.urlStrategy != nil {
		resp.URL = h.urlStrategy.DownloadURL(rec.ID)
	}
	return resp
}

// UploadFile ingests a multipart upload. The file part is streamed into the
// service, never buffered whole in memory.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartSlack)

	mr, err := r.MultipartReader()
	if err != nil {
		slog.Error("Failed to read multipart body", "error", err)
		writeError(w, r, &filedepot.ValidationError{Field: "body", Reason: "expected multipart/form-data"})
		return
	}

	part, err := findFilePart(mr)
	if err != nil {
		slog.Error("Missing file part", "error", err)
		writeError(w, r, &filedepot.ValidationError{Field: "file", Reason: "missing file field"})
		return
	}
	defer part.Close()

	mimeType := part.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	rec, err := h.service.Ingest(r.Context(), filedepot.IngestRequest{
		DisplayName: part.FileName(),
		MimeType:    mimeType,
		Reader:      part,
	})
	if err != nil {
		slog.Error("Failed to ingest upload", "name", part.FileName(), "error", err)
		writeError(w, r, err)
		return
	}

	slog.Info("File uploaded", "id", rec.ID.String(), "name", rec.DisplayName, "size_bytes", rec.SizeBytes)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.toResponse(rec))
}

// findFilePart advances the multipart stream to the "file" form field.
func findFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

// ListFiles returns catalog records, newest first
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 0)
	offset := parseIntParam(r, "offset", 0)

	records, err := h.service.List(r.Context(), filedepot.ListRequest{Limit: limit, Offset: offset})
	if err != nil {
		slog.Error("Failed to list files", "error", err)
		writeError(w, r, err)
		return
	}

	resp := make([]FileResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, h.toResponse(rec))
	}
	render.JSON(w, r, resp)
}

// GetFileInfo returns the catalog record for one file
func (h *FilesHandler) GetFileInfo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, h.toResponse(rec))
}

// DownloadFile streams the blob bytes with the stored MIME type
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, rc, err := h.service.Open(r.Context(), id)
	if err != nil {
		if errors.Is(err, filedepot.ErrCorruptedState) {
			slog.Error("Catalog record references missing blob", "id", id.String(), "error", err)
		}
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", rec.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(rec.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.DisplayName))
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; all we can do is log.
		slog.Error("Failed to stream blob", "id", id.String(), "error", err)
	}
}

// DeleteFile removes the record and garbage-collects its blob
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		slog.Error("Failed to delete file", "id", id.String(), "error", err)
		writeError(w, r, err)
		return
	}

	slog.Info("File deleted", "id", id.String())
	render.JSON(w, r, map[string]bool{"success": true})
}

func parseID(r *http.Request) (uuid.UUID, error) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, &filedepot.ValidationError{Field: "id", Reason: "not a valid UUID"}
	}
	return id, nil
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// errorResponse is the JSON body for failures
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the service's typed errors onto HTTP status codes. Typed
// kinds replace free-text 500s: callers can distinguish user error from
// missing data from retryable storage failure.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErr     *filedepot.ValidationError
		storageErr *filedepot.StorageError
		maxErr     *http.MaxBytesError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &valErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, filedepot.ErrPayloadTooLarge) || errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, filedepot.ErrFileNotFound) || errors.Is(err, filedepot.ErrBlobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, filedepot.ErrIngestTimeout):
		status = http.StatusRequestTimeout
	case errors.Is(err, filedepot.ErrCorruptedState):
		status = http.StatusInternalServerError
	case errors.As(err, &storageErr):
		status = http.StatusServiceUnavailable
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}
