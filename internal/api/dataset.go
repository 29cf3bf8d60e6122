package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/prompt-labs/internal/domain"
)

// UploadDataset stores a CSV upload (multipart field "file") as the user's
// dataset.
func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	limit := h.Config.Dataset.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+64*1024)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return
		}
		Error(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		Error(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		Error(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	}
	if !isCSV(header.Filename, header.Header.Get("Content-Type")) {
		Error(w, http.StatusBadRequest, "Only CSV files are allowed")
		return
	}

	userID := requestUserID(r, strings.TrimSpace(r.FormValue("userId")))
	if userID == "" {
		WriteError(w, domain.NewValidationError("userId", "is required"))
		return
	}

	ds, err := h.Datasets.Import(r.Context(), userID, header.Filename, file)
	if err != nil {
		WriteError(w, err)
		return
	}
	Success(w, "Dataset uploaded successfully", map[string]interface{}{
		"rowCount": ds.Metadata.RowCount,
		"labels":   ds.Metadata.Labels,
		"filename": ds.Metadata.OriginalFilename,
	})
}

// GetDataset returns the user's uploaded dataset.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := validateUserID(userID); err != nil {
		WriteError(w, err)
		return
	}
	ds, err := h.Datasets.Get(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}
	Success(w, "Dataset retrieved successfully", ds)
}

// DeleteDataset removes the user's uploaded dataset so the built-in samples
// are used again.
func (h *Handler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := validateUserID(userID); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.Datasets.Delete(r.Context(), userID); err != nil {
		WriteError(w, err)
		return
	}
	Success(w, "Dataset deleted successfully", nil)
}

func isCSV(filename, contentType string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".csv") || strings.HasPrefix(contentType, "text/csv")
}
