package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/giygas/protoscan/interfaces"
	"github.com/giygas/protoscan/medicationparser/entities"
	"github.com/giygas/protoscan/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ interfaces.AnalysisRepository = (*AnalysisRepo)(nil)

type AnalysisRepo struct {
	pool *pgxpool.Pool
}

func NewAnalysisRepo(pool *pgxpool.Pool) *AnalysisRepo {
	return &AnalysisRepo{pool: pool}
}

const insertRecordSQL = `
	INSERT INTO medication_records (
		analysis_id, position,
		name, usage, inn,
		dosage, unit, form, route, frequency,
		level_of_evidence, system_loe, description,
		eml_status, fda_status, ema_status, pubmed_links
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

// Create inserts the analysis and its records in one transaction and sets
// the generated ID and upload time on a
func (r *AnalysisRepo) Create(ctx context.Context, a *entities.Analysis) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO analyses (filename, stored_path, disease_context)
		VALUES ($1, $2, $3)
		RETURNING id, uploaded_at
	`, a.Filename, a.StoredPath, a.DiseaseContext).Scan(&a.ID, &a.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	if len(a.Records) > 0 {
		batch := &pgx.Batch{}
		for i, rec := range a.Records {
			links := rec.Sources.PubMedLinks
			if links == nil {
				links = []string{}
			}
			batch.Queue(insertRecordSQL,
				a.ID, i,
				rec.Name, rec.Usage, rec.INN,
				rec.Dosage, rec.Unit, rec.Form, rec.Route, rec.Frequency,
				rec.LevelOfEvidence, rec.SystemLoE, rec.Description,
				rec.Sources.EMLStatus, rec.Sources.FDAStatus, rec.Sources.EMAStatus, links,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert medication records: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepo) Get(ctx context.Context, id int64) (*entities.Analysis, error) {
	var a entities.Analysis
	err := r.pool.QueryRow(ctx, `
		SELECT id, filename, stored_path, disease_context, uploaded_at
		FROM analyses
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Filename, &a.StoredPath, &a.DiseaseContext, &a.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select analysis %d: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT
			name, usage, inn,
			dosage, unit, form, route, frequency,
			level_of_evidence, system_loe, description,
			eml_status, fda_status, ema_status, pubmed_links
		FROM medication_records
		WHERE analysis_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("select medication records: %w", err)
	}
	defer rows.Close()

	a.Records = []entities.MedicationRecord{}
	for rows.Next() {
		var rec entities.MedicationRecord
		if err := rows.Scan(
			&rec.Name, &rec.Usage, &rec.INN,
			&rec.Dosage, &rec.Unit, &rec.Form, &rec.Route, &rec.Frequency,
			&rec.LevelOfEvidence, &rec.SystemLoE, &rec.Description,
			&rec.Sources.EMLStatus, &rec.Sources.FDAStatus, &rec.Sources.EMAStatus, &rec.Sources.PubMedLinks,
		); err != nil {
			return nil, fmt.Errorf("scan medication record: %w", err)
		}
		if len(rec.Sources.PubMedLinks) == 0 {
			rec.Sources.PubMedLinks = nil
		}
		a.Records = append(a.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate medication records: %w", err)
	}

	return &a, nil
}

// List returns summaries newest first with the total number of analyses
func (r *AnalysisRepo) List(ctx context.Context, limit, offset int) ([]entities.AnalysisSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM analyses`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.filename, a.uploaded_at, a.disease_context, count(m.id)
		FROM analyses a
		LEFT JOIN medication_records m ON m.analysis_id = a.id
		GROUP BY a.id
		ORDER BY a.uploaded_at DESC, a.id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := make([]entities.AnalysisSummary, 0, limit)
	for rows.Next() {
		var s entities.AnalysisSummary
		if err := rows.Scan(&s.ID, &s.Filename, &s.UploadedAt, &s.DiseaseContext, &s.RecordCount); err != nil {
			return nil, 0, fmt.Errorf("scan analysis summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate analyses: %w", err)
	}

	return out, total, nil
}

// Ping checks the database connection
func (r *AnalysisRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
