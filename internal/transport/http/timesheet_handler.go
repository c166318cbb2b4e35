package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "timesheets/internal/errors"
	"timesheets/internal/middleware"
	"timesheets/internal/validation"
	"timesheets/pkg/contracts/domain"
)

// XLSXContentType is the media type of downloaded workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TimesheetService is the business logic the handler delegates to.
type TimesheetService interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*domain.UploadSummary, error)
	Filter(ctx context.Context, req domain.FilterRequest) (*domain.FilterResult, error)
	Download(ctx context.Context, filename string) (io.ReadCloser, error)
	Summary(ctx context.Context, uploadID string) ([]domain.ActivitySummary, error)
}

// TimesheetHandler serves the upload, filter and download flow as HTML
// pages and as JSON for clients that ask for it.
type TimesheetHandler struct {
	service      TimesheetService
	pages        *Pages
	validator    *validation.RequestValidator
	errorHandler *apierrors.ErrorHandler
	maxBytes     int64
	logger       *slog.Logger
}

// NewTimesheetHandler creates the handler. maxBytes caps upload bodies.
func NewTimesheetHandler(service TimesheetService, pages *Pages, errorHandler *apierrors.ErrorHandler, maxBytes int64, logger *slog.Logger) *TimesheetHandler {
	return &TimesheetHandler{
		service:      service,
		pages:        pages,
		validator:    validation.NewRequestValidator(),
		errorHandler: errorHandler,
		maxBytes:     maxBytes,
		logger:       logger.With(slog.String("component", "timesheet_handler")),
	}
}

// Routes mounts the browser-facing routes on r.
func (h *TimesheetHandler) Routes(r chi.Router) {
	r.Get("/", h.Index)
	r.With(middleware.MaxBodySize(h.maxBytes)).Post("/upload", h.Upload)
	r.Post("/filter", h.Filter)
	r.Get("/download/{filename}", h.Download)
}

// APIRoutes returns the JSON routes, mounted under /api.
func (h *TimesheetHandler) APIRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(forceJSON)

	r.With(middleware.MaxBodySize(h.maxBytes)).Post("/uploads", h.Upload)
	r.Get("/uploads/{uploadID}/summary", h.Summary)
	r.Post("/filter", h.Filter)
	return r
}

// Index handles GET /
func (h *TimesheetHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, PageUpload, PageData{Title: "Upload timesheet"})
}

// Upload handles POST /upload with the workbook in multipart field "file".
func (h *TimesheetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		h.fail(w, r, PageUpload, apierrors.ErrNoFileUploaded)
		return
	case err != nil:
		h.fail(w, r, PageUpload, h.bodyError(err))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		h.fail(w, r, PageUpload, apierrors.ErrNoFileSelected)
		return
	}

	summary, err := h.service.Upload(r.Context(), header.Filename, file)
	if err != nil {
		h.fail(w, r, PageUpload, err)
		return
	}

	if wantsJSON(r) {
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, summary)
		return
	}

	data := PageData{Title: "Filter by date", UploadID: summary.UploadID, Upload: summary}
	if activities, err := h.service.Summary(r.Context(), summary.UploadID); err == nil {
		data.Summary = activities
	} else {
		h.logger.WarnContext(r.Context(), "summary unavailable after upload",
			slog.String("upload_id", summary.UploadID),
			slog.String("error", err.Error()))
	}
	h.pages.Render(w, r, http.StatusOK, PageFilter, data)
}

// Filter handles POST /filter from a form or a JSON body.
func (h *TimesheetHandler) Filter(w http.ResponseWriter, r *http.Request) {
	req, err := decodeFilterRequest(r)
	if err != nil {
		h.fail(w, r, PageUpload, apierrors.InvalidRequestWithError(err))
		return
	}

	if req.UploadID == "" || req.StartDate == "" || req.EndDate == "" {
		h.fail(w, r, PageUpload, apierrors.ErrMissingParameter)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, r, PageUpload, err)
		return
	}

	result, err := h.service.Filter(r.Context(), req)
	if err != nil {
		h.fail(w, r, PageUpload, err)
		return
	}

	if wantsJSON(r) {
		render.JSON(w, r, result)
		return
	}
	h.pages.Render(w, r, http.StatusOK, PageResult, PageData{Title: "Filtered workbook", Result: result})
}

// Download handles GET /download/{filename}
func (h *TimesheetHandler) Download(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if err := h.validator.Var("filename", filename, "safefile"); err != nil {
		h.fail(w, r, PageUpload, err)
		return
	}

	rc, err := h.service.Download(r.Context(), filename)
	if err != nil {
		h.fail(w, r, PageUpload, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", XLSXContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, rc)
	if err != nil {
		// headers are gone, nothing left to report to the client
		h.logger.WarnContext(r.Context(), "download interrupted",
			slog.String("filename", filename),
			slog.Int64("bytes", n),
			slog.String("error", err.Error()))
		return
	}
	h.logger.InfoContext(r.Context(), "file downloaded",
		slog.String("filename", filename),
		slog.Int64("bytes", n))
}

// Summary handles GET /api/uploads/{uploadID}/summary
func (h *TimesheetHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.Summary(r.Context(), chi.URLParam(r, "uploadID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"activities": summaries,
		"count":      len(summaries),
	})
}

// fail answers JSON clients with a problem document and browsers with page
// re-rendered around the error message.
func (h *TimesheetHandler) fail(w http.ResponseWriter, r *http.Request, page string, err error) {
	if wantsJSON(r) {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	problem := h.errorHandler.ErrorToProblem(err, r)
	h.logger.WarnContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", middleware.GetRequestID(r.Context())))
	h.pages.Render(w, r, problem.Status, page, PageData{Title: "Upload timesheet", Error: problem.Detail})
}

// bodyError keeps *http.MaxBytesError visible to the error handler and
// reports other multipart failures as bad requests.
func (h *TimesheetHandler) bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return apierrors.InvalidRequestWithError(err)
}

func decodeFilterRequest(r *http.Request) (domain.FilterRequest, error) {
	var req domain.FilterRequest
	if isJSONBody(r) {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			return req, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.UploadID = r.PostFormValue("unique_id")
		req.StartDate = r.PostFormValue("start_date")
		req.EndDate = r.PostFormValue("end_date")
	}
	req.UploadID = strings.TrimSpace(req.UploadID)
	req.StartDate = strings.TrimSpace(req.StartDate)
	req.EndDate = strings.TrimSpace(req.EndDate)
	return req, nil
}

type jsonKey struct{}

// forceJSON marks requests on the API router so every response is JSON.
func forceJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), jsonKey{}, true)))
	})
}

func wantsJSON(r *http.Request) bool {
	if forced, _ := r.Context().Value(jsonKey{}).(bool); forced {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") || isJSONBody(r)
}

func isJSONBody(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/json"
}
