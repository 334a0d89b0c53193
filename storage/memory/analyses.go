// Package memory keeps analyses in process memory. It backs the server when
// no DATABASE_URL is configured and stands in for postgres in tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/giygas/protoscan/interfaces"
	"github.com/giygas/protoscan/medicationparser/entities"
	"github.com/giygas/protoscan/storage"
)

var _ interfaces.AnalysisRepository = (*AnalysisRepo)(nil)

type AnalysisRepo struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]entities.Analysis
}

func NewAnalysisRepo() *AnalysisRepo {
	return &AnalysisRepo{
		nextID: 1,
		byID:   make(map[int64]entities.Analysis),
	}
}

func (r *AnalysisRepo) Create(ctx context.Context, a *entities.Analysis) error {
	if a == nil {
		return errors.New("analysis required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a.ID = r.nextID
	r.nextID++
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now().UTC()
	}
	r.byID[a.ID] = clone(*a)
	return nil
}

func (r *AnalysisRepo) Get(ctx context.Context, id int64) (*entities.Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := clone(a)
	return &out, nil
}

// List returns summaries newest first; ties on upload time fall back to the higher ID
func (r *AnalysisRepo) List(ctx context.Context, limit, offset int) ([]entities.AnalysisSummary, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]entities.AnalysisSummary, 0, len(r.byID))
	for _, a := range r.byID {
		all = append(all, entities.AnalysisSummary{
			ID:             a.ID,
			Filename:       a.Filename,
			UploadedAt:     a.UploadedAt,
			DiseaseContext: a.DiseaseContext,
			RecordCount:    len(a.Records),
		})
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].UploadedAt.Equal(all[j].UploadedAt) {
			return all[i].UploadedAt.After(all[j].UploadedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := len(all)
	if offset >= total || limit <= 0 {
		return []entities.AnalysisSummary{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// Ping always succeeds
func (r *AnalysisRepo) Ping(ctx context.Context) error {
	return nil
}

// clone copies the records so callers cannot mutate stored state
func clone(a entities.Analysis) entities.Analysis {
	records := make([]entities.MedicationRecord, len(a.Records))
	for i, rec := range a.Records {
		if rec.Sources.PubMedLinks != nil {
			rec.Sources.PubMedLinks = append([]string(nil), rec.Sources.PubMedLinks...)
		}
		records[i] = rec
	}
	a.Records = records
	return a
}
