package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/giygas/protoscan/medicationparser/entities"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names
const (
	PageIndex    = "index"
	PageAnalysis = "analysis"
	PageHistory  = "history"
	PageError    = "error"
)

// IndexPage is the upload form
type IndexPage struct {
	MaxUploadMB int64
	AIEnabled   bool
	Message     string
}

// AnalysisPage is the results table of one analysis
type AnalysisPage struct {
	Analysis *entities.Analysis
	Columns  []string
}

// HistoryPage is one page of the analysis list
type HistoryPage struct {
	Items      []entities.AnalysisSummary
	Page       int
	TotalPages int
}

func (h HistoryPage) HasPrev() bool { return h.Page > 1 }
func (h HistoryPage) HasNext() bool { return h.Page < h.TotalPages }
func (h HistoryPage) PrevPage() int { return h.Page - 1 }
func (h HistoryPage) NextPage() int { return h.Page + 1 }

// ErrorPage reports a failed request
type ErrorPage struct {
	Status  int
	Title   string
	Message string
}

// Views holds one parsed template set per page, each combined with the layout
type Views struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"dosage":  FormatDosage,
	"heading": Heading,
}

func NewViews() (*Views, error) {
	v := &Views{pages: make(map[string]*template.Template)}
	for _, page := range []string{PageIndex, PageAnalysis, PageHistory, PageError} {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		v.pages[page] = t
	}
	return v, nil
}

// Render executes a page into w. The page is rendered to a buffer first so a
// template error never leaves a half-written response.
func (v *Views) Render(w io.Writer, page string, data any) error {
	t, ok := v.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
