package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"timesheets/internal/dataprocessing"
	"timesheets/pkg/contracts/domain"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Page template names.
const (
	PageUpload = "upload.html"
	PageFilter = "filter.html"
	PageResult = "result.html"
)

// PageData is the view model shared by every page.
type PageData struct {
	Title    string
	Error    string
	UploadID string
	Upload   *domain.UploadSummary
	Summary  []domain.ActivitySummary
	Result   *domain.FilterResult
}

// Pages renders the embedded HTML templates.
type Pages struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewPages parses the embedded templates.
func NewPages(logger *slog.Logger) (*Pages, error) {
	funcMap := template.FuncMap{
		"date": dataprocessing.FormatStartDate,
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Pages{templates: templates, logger: logger}, nil
}

// Render executes page into a buffer and writes it with status. Nothing is
// written when the template fails.
func (p *Pages) Render(w http.ResponseWriter, r *http.Request, status int, page string, data PageData) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, page, data); err != nil {
		p.logger.ErrorContext(r.Context(), "template error",
			slog.String("template", page),
			slog.String("error", err.Error()))
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
