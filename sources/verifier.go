package sources

import (
	"context"
	"net/http"

	"github.com/giygas/protoscan/interfaces"
	"github.com/giygas/protoscan/logging"
	"github.com/giygas/protoscan/medicationparser"
	"github.com/giygas/protoscan/medicationparser/entities"
	"github.com/giygas/protoscan/metrics"
)

// EML statuses
const (
	EMLListed    = "listed"
	EMLNotListed = "not listed"
)

var _ interfaces.ReferenceLoader = (*Loader)(nil)

// Loader reads the reference datasets for the data container
type Loader struct {
	FormularyPath  string
	EMARegisterURL string
	HTTP           *http.Client
}

func (l *Loader) LoadFormulary(ctx context.Context) (map[string]struct{}, error) {
	return LoadFormulary(l.FormularyPath)
}

func (l *Loader) LoadRegister(ctx context.Context) (map[string]string, error) {
	return FetchEMARegister(ctx, l.HTTP, l.EMARegisterURL)
}

// Verifier fills the Sources of a record. Every lookup is best-effort: a
// failed lookup leaves its field empty and does not stop the others.
type Verifier struct {
	refs   interfaces.ReferenceStore
	fda    interfaces.RegulatoryLookup
	pubmed interfaces.LiteratureSearch
}

// NewVerifier wires the lookups; a nil lookup is skipped
func NewVerifier(refs interfaces.ReferenceStore, fda interfaces.RegulatoryLookup, pubmed interfaces.LiteratureSearch) *Verifier {
	return &Verifier{refs: refs, fda: fda, pubmed: pubmed}
}

// Verify runs the lookups in order: WHO EML, openFDA, EMA, PubMed
func (v *Verifier) Verify(ctx context.Context, record *entities.MedicationRecord, disease string) {
	inn := medicationparser.Fold(record.INN)
	if inn == "" {
		for _, s := range []string{"eml", "openfda", "ema", "pubmed"} {
			metrics.ObserveLookup(s, metrics.OutcomeSkip)
		}
		return
	}

	record.Sources.EMLStatus = v.emlStatus(inn)
	record.Sources.FDAStatus = v.fdaStatus(ctx, inn)
	record.Sources.EMAStatus = v.emaStatus(inn)
	record.Sources.PubMedLinks = v.pubmedLinks(ctx, inn, disease)
}

func (v *Verifier) emlStatus(inn string) string {
	if v.refs == nil {
		metrics.ObserveLookup("eml", metrics.OutcomeSkip)
		return ""
	}
	listed, loaded := v.refs.IsListed(inn)
	switch {
	case !loaded:
		metrics.ObserveLookup("eml", metrics.OutcomeSkip)
		return ""
	case listed:
		metrics.ObserveLookup("eml", metrics.OutcomeHit)
		return EMLListed
	default:
		metrics.ObserveLookup("eml", metrics.OutcomeMiss)
		return EMLNotListed
	}
}

func (v *Verifier) fdaStatus(ctx context.Context, inn string) string {
	if v.fda == nil {
		metrics.ObserveLookup("openfda", metrics.OutcomeSkip)
		return ""
	}
	status, err := v.fda.Status(ctx, inn)
	if err != nil {
		metrics.ObserveLookup("openfda", metrics.OutcomeError)
		logging.Warn("openFDA lookup failed", "inn", inn, "error", err)
		return ""
	}
	if status == FDAApproved {
		metrics.ObserveLookup("openfda", metrics.OutcomeHit)
	} else {
		metrics.ObserveLookup("openfda", metrics.OutcomeMiss)
	}
	return status
}

func (v *Verifier) emaStatus(inn string) string {
	if v.refs == nil {
		metrics.ObserveLookup("ema", metrics.OutcomeSkip)
		return ""
	}
	status, loaded := v.refs.EMAStatus(inn)
	switch {
	case !loaded:
		metrics.ObserveLookup("ema", metrics.OutcomeSkip)
		return ""
	case status == "":
		metrics.ObserveLookup("ema", metrics.OutcomeMiss)
		return EMANotFound
	default:
		metrics.ObserveLookup("ema", metrics.OutcomeHit)
		return status
	}
}

func (v *Verifier) pubmedLinks(ctx context.Context, inn, disease string) []string {
	if v.pubmed == nil || disease == "" {
		metrics.ObserveLookup("pubmed", metrics.OutcomeSkip)
		return nil
	}
	links, err := v.pubmed.Search(ctx, inn, disease)
	if err != nil {
		metrics.ObserveLookup("pubmed", metrics.OutcomeError)
		logging.Warn("PubMed search failed", "inn", inn, "error", err)
		return nil
	}
	if len(links) == 0 {
		metrics.ObserveLookup("pubmed", metrics.OutcomeMiss)
		return nil
	}
	metrics.ObserveLookup("pubmed", metrics.OutcomeHit)
	return links
}
