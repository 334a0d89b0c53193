package cli

import (
	"context"
	"fmt"

	"github.com/giygas/protoscan/ai"
	"github.com/giygas/protoscan/config"
	"github.com/giygas/protoscan/data"
	"github.com/giygas/protoscan/interfaces"
	"github.com/giygas/protoscan/logging"
	"github.com/giygas/protoscan/sources"
	"github.com/giygas/protoscan/storage/memory"
	"github.com/giygas/protoscan/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

// analysisStore is the repository used by the server, with a health check
type analysisStore interface {
	interfaces.AnalysisRepository
	Ping(ctx context.Context) error
}

// components are the collaborators shared by serve and extract
type components struct {
	refs       *data.ReferenceContainer
	loader     *sources.Loader
	translator *ai.Client
	verifier   *sources.Verifier
	closers    []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// newComponents wires the AI client and the reference lookups. The AI stage
// is disabled when no GCP project is configured.
func newComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	httpClient := sources.NewHTTPClient(cfg.ExternalTimeout)

	c := &components{
		refs: data.NewReferenceContainer(),
		loader: &sources.Loader{
			FormularyPath:  cfg.FormularyPath,
			EMARegisterURL: cfg.EMARegisterURL,
			HTTP:           httpClient,
		},
	}

	if cfg.AIEnabled() {
		gen, err := ai.NewVertexGenerator(ctx, cfg.GCPProjectID, cfg.VertexRegion, cfg.VertexModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
		}
		c.closers = append(c.closers, func() {
			if err := gen.Close(); err != nil {
				logging.Warn("Failed to close Vertex AI client", "error", err)
			}
		})
		c.translator = ai.NewClient(gen)
		logging.Info("AI stage enabled", "project", cfg.GCPProjectID, "model", cfg.VertexModel)
	} else {
		c.translator = ai.NewClient(nil)
		logging.Warn("GCP_PROJECT_ID is not set, AI stage disabled")
	}

	fda := sources.NewOpenFDAClient(httpClient, "", cfg.OpenFDAAPIKey)
	pubmed := sources.NewPubMedClient(httpClient, sources.PubMedConfig{
		APIKey: cfg.PubMedAPIKey,
		Email:  cfg.PubMedEmail,
		Tool:   cfg.PubMedTool,
	})
	c.verifier = sources.NewVerifier(c.refs, fda, pubmed)

	return c, nil
}

// openStore returns the Postgres repository when DATABASE_URL is set and the
// in-memory one otherwise
func openStore(ctx context.Context, cfg *config.Config, migrate bool) (analysisStore, func(), error) {
	if cfg.DatabaseURL == "" {
		logging.Warn("DATABASE_URL is not set, analyses are kept in memory")
		return memory.NewAnalysisRepo(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
	if err != nil {
		return nil, nil, err
	}

	if migrate {
		if err := migrateUp(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	return postgres.NewAnalysisRepo(pool), pool.Close, nil
}

func migrateUp(ctx context.Context, pool *pgxpool.Pool) error {
	count, err := postgres.NewMigrator(pool, postgres.Migrations()).Up(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logging.Info("Database migrations applied", "count", count)
	return nil
}
