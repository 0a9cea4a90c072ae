package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/receipt-tracker/internal/extraction"
)

// maxUploadSize bounds multipart uploads; phone photos can be large
const maxUploadSize = int64(50 << 20)

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Status    string                  `json:"status"`
	Message   string                  `json:"message"`
	RawOutput string                  `json:"raw_output,omitempty"`
	Fields    []extraction.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Status: "error", Message: message})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extraction.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, extraction.ErrExtractionFailed),
		errors.Is(err, extraction.ErrValidationFailed),
		errors.Is(err, ErrUnreadableDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with its mapped status. Internal errors are not
// echoed to the client.
func writeServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	resp := errorResponse{Status: "error", Message: err.Error()}
	if code == http.StatusInternalServerError {
		resp.Message = "internal server error"
	}

	var xerr *extraction.ExtractionError
	if errors.As(err, &xerr) {
		resp.RawOutput = xerr.RawOutput
	}
	var verr *extraction.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}

	writeJSON(w, code, resp)
}

func listOptions(r *http.Request) ListOptions {
	q := r.URL.Query()
	return ListOptions{
		Query:  q.Get("q"),
		SortBy: q.Get("sort_by"),
		Order:  q.Get("order"),
	}
}

// handleListReceipts returns the receipts matching the query string
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts(listOptions(r))
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// contentTypeFor guesses a MIME type from the file extension
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleUploadReceipt handles receipt upload
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 50MB.")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
			return
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer f.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(header.Filename)
	}

	upload, err := s.service.ProcessReceipt(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, upload)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleGetReceiptFile returns the uploaded file of a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.Context(), r.PathValue("id"))
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			slog.Error("Error reading receipt file", "id", r.PathValue("id"), "error", err)
		}
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt and its file
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReceipt(r.Context(), r.PathValue("id")); err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			slog.Error("Error deleting receipt", "id", r.PathValue("id"), "error", err)
		}
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAnalytics returns spend totals for the receipts matching the query string
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Analytics(listOptions(r))
	if err != nil {
		slog.Error("Error computing analytics", "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleStatus reports whether uploads can be processed
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.service.ModelStatus()
	code := http.StatusOK
	if !status.Available {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// handleExportCSV downloads every receipt as CSV
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ExportReceipts()
	if err != nil {
		slog.Error("Error exporting receipts", "error", err)
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", CSVFilename))
	if err := WriteCSV(w, receipts); err != nil {
		slog.Error("Error writing csv export", "error", err)
	}
}

// handleExportJSON returns every receipt as a JSON array of flat objects
func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ExportReceipts()
	if err != nil {
		slog.Error("Error exporting receipts", "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToFlatObjects(receipts))
}
