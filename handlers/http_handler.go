package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/giygas/protoscan/docx"
	"github.com/giygas/protoscan/interfaces"
	"github.com/giygas/protoscan/logging"
	"github.com/giygas/protoscan/medicationparser/entities"
	"github.com/giygas/protoscan/pipeline"
	"github.com/giygas/protoscan/report"
	"github.com/giygas/protoscan/storage"
	"github.com/giygas/protoscan/validation"
	"github.com/go-chi/chi/v5"
)

// HistoryPageSize is the number of analyses per history page
const HistoryPageSize = 10

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// Options are the request limits and page flags of the handlers
type Options struct {
	MaxUploadSize int64
	AIEnabled     bool
}

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	analyzer  interfaces.Analyzer
	repo      interfaces.AnalysisRepository
	validator interfaces.UploadValidator
	health    interfaces.HealthChecker
	views     *report.Views
	opts      Options
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(
	analyzer interfaces.Analyzer,
	repo interfaces.AnalysisRepository,
	validator interfaces.UploadValidator,
	health interfaces.HealthChecker,
	views *report.Views,
	opts Options,
) *HTTPHandlerImpl {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 20 << 20
	}
	return &HTTPHandlerImpl{
		analyzer:  analyzer,
		repo:      repo,
		validator: validator,
		health:    health,
		views:     views,
		opts:      opts,
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status     string         `json:"status"`
	Uptime     string         `json:"uptime,omitempty"`
	NextUpdate string         `json:"next_update"`
	Data       map[string]any `json:"data"`
	System     map[string]any `json:"system"`
}

// Index serves the upload form
func (h *HTTPHandlerImpl) Index(w http.ResponseWriter, r *http.Request) {
	RespondWithPage(w, h.views, http.StatusOK, report.PageIndex, report.IndexPage{
		MaxUploadMB: h.opts.MaxUploadSize >> 20,
		AIEnabled:   h.opts.AIEnabled,
	})
}

// Upload runs the pipeline on the multipart field "file" and redirects to the result
func (h *HTTPHandlerImpl) Upload(w http.ResponseWriter, r *http.Request) {
	tooLarge := fmt.Sprintf("The file exceeds the %d MB upload limit.", h.opts.MaxUploadSize>>20)
	if r.ContentLength > h.opts.MaxUploadSize {
		logging.Warn("Upload too large", "content_length", r.ContentLength, "limit", h.opts.MaxUploadSize)
		RespondWithErrorPage(w, h.views, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadSize)

	file, header, err := r.FormFile("file")
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			logging.Warn("Upload too large", "limit", maxErr.Limit)
			RespondWithErrorPage(w, h.views, http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		RespondWithErrorPage(w, h.views, http.StatusBadRequest, "Choose a .docx file to upload.")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		logging.Error("Failed to read upload", "error", err)
		RespondWithErrorPage(w, h.views, http.StatusBadRequest, "The upload could not be read.")
		return
	}

	if err := h.validator.ValidateUpload(header.Filename, header.Header.Get("Content-Type"), content); err != nil {
		logging.Warn("Rejected upload", "filename", header.Filename, "error", err)
		RespondWithErrorPage(w, h.views, http.StatusBadRequest, err.Error())
		return
	}

	filename := validation.SanitizeFilename(header.Filename)
	analysis, err := h.analyzer.Process(r.Context(), filename, content)
	if err != nil {
		switch {
		case errors.Is(err, docx.ErrNotDocx):
			RespondWithErrorPage(w, h.views, http.StatusBadRequest, "The file is not a readable .docx document.")
		case errors.Is(err, pipeline.ErrNoMedications):
			RespondWithErrorPage(w, h.views, http.StatusUnprocessableEntity, "No medication table or drug list was found in the document.")
		default:
			logging.Error("Analysis failed", "filename", filename, "error", err)
			RespondWithErrorPage(w, h.views, http.StatusInternalServerError, "The document could not be analyzed.")
		}
		return
	}

	http.Redirect(w, r, "/analysis/"+strconv.FormatInt(analysis.ID, 10), http.StatusSeeOther)
}

// loadAnalysis resolves the {id} URL parameter. It returns the status and
// message to report when the analysis cannot be served.
func (h *HTTPHandlerImpl) loadAnalysis(r *http.Request) (*entities.Analysis, int, string) {
	idStr := chi.URLParam(r, "id")
	id, err := h.validator.ValidateID(idStr)
	if err != nil {
		logging.Warn("Unusual user input", "id", idStr)
		return nil, http.StatusBadRequest, "Invalid analysis ID"
	}

	analysis, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, http.StatusNotFound, "Analysis not found"
		}
		logging.Error("Failed to load analysis", "id", id, "error", err)
		return nil, http.StatusInternalServerError, "Failed to load analysis"
	}
	return analysis, http.StatusOK, ""
}

// AnalysisPage serves the results table of one analysis
func (h *HTTPHandlerImpl) AnalysisPage(w http.ResponseWriter, r *http.Request) {
	analysis, code, message := h.loadAnalysis(r)
	if analysis == nil {
		RespondWithErrorPage(w, h.views, code, message)
		return
	}

	RespondWithPage(w, h.views, http.StatusOK, report.PageAnalysis, report.AnalysisPage{
		Analysis: analysis,
		Columns:  report.Columns,
	})
}

// AnalysisJSON serves one analysis as JSON
func (h *HTTPHandlerImpl) AnalysisJSON(w http.ResponseWriter, r *http.Request) {
	analysis, code, message := h.loadAnalysis(r)
	if analysis == nil {
		RespondWithError(w, code, message)
		return
	}

	RespondWithJSON(w, http.StatusOK, analysis)
}

// Export serves the results table as report_<id>.docx
func (h *HTTPHandlerImpl) Export(w http.ResponseWriter, r *http.Request) {
	analysis, code, message := h.loadAnalysis(r)
	if analysis == nil {
		RespondWithErrorPage(w, h.views, code, message)
		return
	}

	content, err := report.Export(analysis)
	if err != nil {
		logging.Error("Failed to export analysis", "id", analysis.ID, "error", err)
		RespondWithErrorPage(w, h.views, http.StatusInternalServerError, "Failed to build the report.")
		return
	}

	w.Header().Set("Content-Type", docx.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report_%d.docx"`, analysis.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// History serves the paged analysis list, newest first
func (h *HTTPHandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	pageStr := r.URL.Query().Get("page")
	page, err := h.validator.ValidatePage(pageStr)
	if err != nil {
		logging.Warn("Unusual user input", "page", pageStr)
		RespondWithErrorPage(w, h.views, http.StatusBadRequest, "Invalid page number")
		return
	}

	items, total, err := h.repo.List(r.Context(), HistoryPageSize, (page-1)*HistoryPageSize)
	if err != nil {
		logging.Error("Failed to list analyses", "page", page, "error", err)
		RespondWithErrorPage(w, h.views, http.StatusInternalServerError, "Failed to load the history")
		return
	}

	totalPages := (total + HistoryPageSize - 1) / HistoryPageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		RespondWithErrorPage(w, h.views, http.StatusNotFound, "Page not found")
		return
	}

	RespondWithPage(w, h.views, http.StatusOK, report.PageHistory, report.HistoryPage{
		Items:      items,
		Page:       page,
		TotalPages: totalPages,
	})
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, data, httpStatus := h.health.HealthCheck()

	response := HealthResponse{
		Status:     status,
		NextUpdate: h.health.CalculateNextUpdate().Format(time.RFC3339),
		Data:       data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	}
	if secs, ok := data["uptime_seconds"].(float64); ok {
		response.Uptime = formatUptimeHuman(time.Duration(secs) * time.Second)
	}

	RespondWithJSON(w, httpStatus, response)
}
