package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/giygas/protoscan/medicationparser/entities"
	"github.com/giygas/protoscan/storage"
)

func TestLoadMigrations(t *testing.T) {
	source := fstest.MapFS{
		"002_records.sql":  {Data: []byte("CREATE TABLE b (id INT);")},
		"001_analyses.sql": {Data: []byte("CREATE TABLE a (id INT);")},
		"010_later.sql":    {Data: []byte("CREATE TABLE c (id INT);")},
		"README.md":        {Data: []byte("notes")},
		"draft.sql":        {Data: []byte("-- no prefix")},
		"abc_bad.sql":      {Data: []byte("-- not numeric")},
	}

	migrations, err := NewMigrator(nil, source).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	wantVersions := []int{1, 2, 10}
	for i, want := range wantVersions {
		if migrations[i].Version != want {
			t.Errorf("migration %d: expected version %d, got %d", i, want, migrations[i].Version)
		}
	}
	if migrations[0].SQL != "CREATE TABLE a (id INT);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	source := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 2;")},
	}

	if _, err := NewMigrator(nil, source).LoadMigrations(); err == nil {
		t.Error("expected error for duplicate versions")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := NewMigrator(nil, Migrations()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected the shipped migrations, got %d", len(migrations))
	}
	if migrations[0].Name != "001_analyses.sql" {
		t.Errorf("unexpected first migration %s", migrations[0].Name)
	}
}

// TestAnalysisRepo runs against a real database when TEST_DATABASE_URL is set
func TestAnalysisRepo(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, databaseURL, 2)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Close()

	if _, err := NewMigrator(pool, Migrations()).Up(ctx); err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}

	repo := NewAnalysisRepo(pool)
	a := &entities.Analysis{
		Filename:       "protocol.docx",
		DiseaseContext: "pneumonia",
		Records: []entities.MedicationRecord{
			{Name: "Амоксициллин", INN: "amoxicillin", Dosage: 500, Unit: "mg", Route: entities.RouteOral, Frequency: "TID",
				Sources: entities.Sources{EMLStatus: "listed", PubMedLinks: []string{"https://pubmed.ncbi.nlm.nih.gov/1/"}}},
			{Name: "Цефтриаксон", Route: entities.RouteUnspecified},
		},
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a.ID == 0 || a.UploadedAt.IsZero() {
		t.Errorf("Create should set ID and upload time, got %d %v", a.ID, a.UploadedAt)
	}

	got, err := repo.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Records) != 2 || got.Records[0].INN != "amoxicillin" || got.Records[1].Name != "Цефтриаксон" {
		t.Errorf("Unexpected records: %+v", got.Records)
	}
	if len(got.Records[0].Sources.PubMedLinks) != 1 || got.Records[1].Sources.PubMedLinks != nil {
		t.Errorf("PubMed links not preserved: %+v", got.Records)
	}

	page, total, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total < 1 || len(page) == 0 || page[0].ID != a.ID || page[0].RecordCount != 2 {
		t.Errorf("Unexpected list result: total=%d page=%+v", total, page)
	}

	if _, err := repo.Get(ctx, -1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
