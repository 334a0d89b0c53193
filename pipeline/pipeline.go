// Package pipeline runs one uploaded protocol through the analysis stages:
// table loading, field extraction, AI translation, source verification and
// persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/giygas/protoscan/docx"
	"github.com/giygas/protoscan/interfaces"
	"github.com/giygas/protoscan/logging"
	"github.com/giygas/protoscan/medicationparser"
	"github.com/giygas/protoscan/medicationparser/entities"
	"github.com/giygas/protoscan/metrics"
)

// ErrNoMedications is returned when neither a medication table nor the AI
// drug list yields a single row
var ErrNoMedications = errors.New("no medications found in document")

// Analysis outcomes
const (
	OutcomeSuccess         = "success"
	OutcomeNoMedications   = "no_medications"
	OutcomeInvalidDocument = "invalid_document"
	OutcomeError           = "error"
)

var _ interfaces.Analyzer = (*Pipeline)(nil)

// RecordVerifier fills the Sources of a record
type RecordVerifier interface {
	Verify(ctx context.Context, record *entities.MedicationRecord, disease string)
}

// UploadSaver keeps the original upload on disk
type UploadSaver interface {
	Save(filename string, content []byte) (string, error)
	Remove(path string) error
}

// Dependencies of a Pipeline. Translator, Verifier and Uploads are optional.
type Dependencies struct {
	Extractor  *medicationparser.Extractor
	Translator interfaces.Translator
	Verifier   RecordVerifier
	Repository interfaces.AnalysisRepository
	Uploads    UploadSaver
	// CallTimeout bounds each AI call
	CallTimeout time.Duration
}

type Pipeline struct {
	extractor   *medicationparser.Extractor
	translator  interfaces.Translator
	verifier    RecordVerifier
	repo        interfaces.AnalysisRepository
	uploads     UploadSaver
	callTimeout time.Duration
}

func New(deps Dependencies) *Pipeline {
	extractor := deps.Extractor
	if extractor == nil {
		extractor = medicationparser.NewExtractor(nil)
	}
	timeout := deps.CallTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Pipeline{
		extractor:   extractor,
		translator:  deps.Translator,
		verifier:    deps.Verifier,
		repo:        deps.Repository,
		uploads:     deps.Uploads,
		callTimeout: timeout,
	}
}

// Process parses, analyzes and stores one upload
func (p *Pipeline) Process(ctx context.Context, filename string, content []byte) (*entities.Analysis, error) {
	start := time.Now()

	doc, err := docx.Read(content)
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues(OutcomeInvalidDocument).Inc()
		return nil, err
	}

	analysis, err := p.Analyze(ctx, doc)
	if err != nil {
		if errors.Is(err, ErrNoMedications) {
			metrics.AnalysisTotal.WithLabelValues(OutcomeNoMedications).Inc()
		} else {
			metrics.AnalysisTotal.WithLabelValues(OutcomeError).Inc()
		}
		return nil, err
	}
	analysis.Filename = filename

	if p.uploads != nil {
		path, err := p.uploads.Save(filename, content)
		if err != nil {
			metrics.AnalysisTotal.WithLabelValues(OutcomeError).Inc()
			return nil, err
		}
		analysis.StoredPath = path
	}

	if p.repo == nil {
		p.discardUpload(analysis.StoredPath)
		metrics.AnalysisTotal.WithLabelValues(OutcomeError).Inc()
		return nil, errors.New("no analysis repository configured")
	}
	if err := p.repo.Create(ctx, analysis); err != nil {
		p.discardUpload(analysis.StoredPath)
		metrics.AnalysisTotal.WithLabelValues(OutcomeError).Inc()
		return nil, fmt.Errorf("failed to store analysis: %w", err)
	}

	metrics.AnalysisTotal.WithLabelValues(OutcomeSuccess).Inc()
	metrics.AnalysisRecordsTotal.Add(float64(len(analysis.Records)))
	logging.Info("Analysis completed",
		"id", analysis.ID,
		"filename", filename,
		"records", len(analysis.Records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return analysis, nil
}

// discardUpload removes a stored upload whose analysis could not be saved
func (p *Pipeline) discardUpload(path string) {
	if p.uploads == nil || path == "" {
		return
	}
	if err := p.uploads.Remove(path); err != nil {
		logging.Warn("Failed to remove orphaned upload", "path", path, "error", err)
	}
}

// Analyze runs every stage except persistence. The result has no ID.
func (p *Pipeline) Analyze(ctx context.Context, doc *docx.Document) (*entities.Analysis, error) {
	rows := medicationparser.LoadRows(doc)

	docContext := p.documentContext(ctx, doc)
	disease := docContext.DiseaseContext
	if disease == "" {
		disease = medicationparser.DiseaseFallback(doc)
	}

	if len(rows) == 0 && len(docContext.DrugList) > 0 {
		logging.Info("No medication table found, using the AI drug list", "drugs", len(docContext.DrugList))
		rows = medicationparser.RowsFromDrugList(docContext.DrugList)
	}
	if len(rows) == 0 {
		return nil, ErrNoMedications
	}

	records := p.extractor.BuildRecords(rows)
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis interrupted: %w", err)
		}
		p.translate(ctx, &records[i], disease)
		if p.verifier != nil {
			p.verifier.Verify(ctx, &records[i], disease)
		}
	}

	return &entities.Analysis{
		DiseaseContext: disease,
		Records:        records,
	}, nil
}

func (p *Pipeline) documentContext(ctx context.Context, doc *docx.Document) entities.DocumentContext {
	if p.translator == nil || !p.translator.Enabled() {
		return entities.DocumentContext{}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	result, err := p.translator.AnalyzeDocument(callCtx, doc.Text())
	if err != nil {
		logging.Warn("Document context unavailable", "error", err)
		return entities.DocumentContext{}
	}
	return *result
}

// translate fills the English INN, description and system LoE. A failed call
// keeps the INN pre-filled from a Latin name, if any.
func (p *Pipeline) translate(ctx context.Context, record *entities.MedicationRecord, disease string) {
	if p.translator == nil || !p.translator.Enabled() {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	details, err := p.translator.DrugDetails(callCtx, record.Name, record.Usage, disease)
	if err != nil {
		logging.Warn("Drug details unavailable", "name", record.Name, "error", err)
		return
	}

	if inn := strings.TrimSpace(details.INNEnglish); inn != "" {
		record.INN = inn
	}
	record.Description = details.BriefDescription
	record.SystemLoE = details.SystemLoE
}
