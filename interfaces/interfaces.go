// Package interfaces defines the core abstractions shared by the analyzer's
// packages so that handlers, the pipeline and the scheduler can be tested with mocks.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/protoscan/medicationparser/entities"
)

// ReferenceStore holds the reference datasets used by the verifier.
// It provides thread-safe access with atomic swaps on refresh.
type ReferenceStore interface {
	// Lookups; loaded is false while the dataset is empty
	IsListed(inn string) (listed bool, loaded bool)
	EMAStatus(inn string) (status string, loaded bool)

	FormularySize() int
	RegisterSize() int
	GetLastUpdated() time.Time
	GetServerStartTime() time.Time
	IsUpdating() bool

	// Data update methods
	UpdateFormulary(names map[string]struct{})
	UpdateRegister(register map[string]string)
	BeginUpdate() bool
	EndUpdate()
}

// ReferenceLoader reads the reference datasets from their sources
type ReferenceLoader interface {
	LoadFormulary(ctx context.Context) (map[string]struct{}, error)
	LoadRegister(ctx context.Context) (map[string]string, error)
}

// AnalysisRepository persists analyses and their medication records
type AnalysisRepository interface {
	// Create stores the analysis and assigns its ID
	Create(ctx context.Context, analysis *entities.Analysis) error
	Get(ctx context.Context, id int64) (*entities.Analysis, error)
	// List returns a page of summaries, newest first, and the total count
	List(ctx context.Context, limit, offset int) ([]entities.AnalysisSummary, int, error)
}

// UploadCleaner removes stored uploads past their retention
type UploadCleaner interface {
	Cleanup(maxAge time.Duration) (removed int, err error)
}

// Translator asks the AI model for document context and drug details
type Translator interface {
	Enabled() bool
	AnalyzeDocument(ctx context.Context, text string) (*entities.DocumentContext, error)
	DrugDetails(ctx context.Context, name, usage, disease string) (*entities.DrugDetails, error)
}

// RegulatoryLookup returns the regulatory status of an INN
type RegulatoryLookup interface {
	Status(ctx context.Context, inn string) (string, error)
}

// LiteratureSearch returns links to publications about an INN for a disease
type LiteratureSearch interface {
	Search(ctx context.Context, inn, disease string) ([]string, error)
}

// Analyzer runs the full pipeline for one uploaded document
type Analyzer interface {
	Process(ctx context.Context, filename string, content []byte) (*entities.Analysis, error)
}

// Scheduler defines the contract for job scheduling.
// It manages reference data refreshes and upload cleanup.
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker defines the contract for health check functionality
type HealthChecker interface {
	// HealthCheck returns current system health status
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled reference data refresh
	CalculateNextUpdate() time.Time
}

// UploadValidator validates user input
type UploadValidator interface {
	// ValidateUpload checks name, declared content type and leading bytes of an upload
	ValidateUpload(filename, contentType string, head []byte) error
	ValidateID(input string) (int64, error)
	ValidatePage(input string) (int, error)
}

// HTTPHandler defines the contract for the HTTP routes
type HTTPHandler interface {
	Index(w http.ResponseWriter, r *http.Request)
	Upload(w http.ResponseWriter, r *http.Request)
	AnalysisPage(w http.ResponseWriter, r *http.Request)
	AnalysisJSON(w http.ResponseWriter, r *http.Request)
	Export(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}
