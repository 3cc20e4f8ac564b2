package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/JonMunkholm/stockimport/internal/core"
	"github.com/JonMunkholm/stockimport/internal/logging"
)

// multipartMemory is how much of a multipart form is kept in memory before
// parts spill to temporary files.
const multipartMemory = 32 << 20

// ImportResponse is the JSON body of a successful import.
type ImportResponse struct {
	Status      string                  `json:"status"`
	UploadID    string                  `json:"uploadId"`
	FileName    string                  `json:"fileName"`
	TotalRows   int                     `json:"totalRows"`
	Imported    int                     `json:"imported"`
	Skipped     int                     `json:"skipped"`
	SkipReasons map[core.SkipReason]int `json:"skipReasons"`
	Clamped     int                     `json:"clamped"`
	OutOfStock  int                     `json:"outOfStock"`
	SkippedRows []core.SkippedRow       `json:"skippedRows,omitempty"`
	DurationMs  int64                   `json:"durationMs"`
}

func toImportResponse(o *core.ImportOutcome) ImportResponse {
	return ImportResponse{
		Status:      "success",
		UploadID:    o.UploadID,
		FileName:    o.FileName,
		TotalRows:   o.TotalRows,
		Imported:    o.Imported,
		Skipped:     o.Skipped,
		SkipReasons: o.SkipReasons,
		Clamped:     o.Clamped,
		OutOfStock:  o.OutOfStock,
		SkippedRows: o.SkippedRows,
		DurationMs:  o.Duration.Milliseconds(),
	}
}

// handleImport accepts a multipart upload in the "file" field and runs it
// through the import pipeline synchronously.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			s.respondError(w, r, fmt.Errorf("read upload: %w", core.ErrFileTooLarge))
			return
		}
		s.respondError(w, r, fmt.Errorf("invalid multipart form: %w: %w", core.ErrInvalidInput, err))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.requestLogger(r).Warn("failed to remove multipart files", "error", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("no file provided: %w", core.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w: %w", core.ErrInvalidInput, err))
		return
	}

	log := logging.WithFields(r.Context(), s.logger, "file", header.Filename, "bytes", len(data))
	log.Info("import requested")

	outcome, err := s.service.Import(r.Context(), header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	log.Debug("import response sent", "upload_id", outcome.UploadID, "imported", outcome.Imported)

	s.writeJSON(w, r, http.StatusOK, toImportResponse(outcome))
}

// isBodyTooLarge detects the MaxBytesReader limit, which some multipart
// paths report without wrapping.
func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
