package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giygas/protoscan/config"
	"github.com/giygas/protoscan/handlers"
	"github.com/giygas/protoscan/health"
	"github.com/giygas/protoscan/logging"
	"github.com/giygas/protoscan/pipeline"
	"github.com/giygas/protoscan/report"
	"github.com/giygas/protoscan/scheduler"
	"github.com/giygas/protoscan/server"
	"github.com/giygas/protoscan/storage"
	"github.com/giygas/protoscan/validation"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", true, "Apply pending database migrations on startup")

	return cmd
}

func runServe(autoMigrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.InitLogger("logs", cfg)
	defer logging.Close()

	logging.Info("Configuration loaded successfully",
		"env", cfg.Env.String(),
		"address", cfg.Address,
		"port", cfg.Port,
		"ai_enabled", cfg.AIEnabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openStore(ctx, cfg, autoMigrate)
	if err != nil {
		return err
	}
	defer closeRepo()

	uploads, err := storage.NewUploads(cfg.UploadDir)
	if err != nil {
		return err
	}

	comps, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()
	comps.refs.SetServerStartTime(time.Now())

	sched := scheduler.NewScheduler(comps.refs, comps.loader,
		scheduler.WithUploadCleanup(uploads, time.Duration(cfg.UploadRetentionHours)*time.Hour),
		scheduler.WithLoadTimeout(2*time.Minute),
	)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	analyzer := pipeline.New(pipeline.Dependencies{
		Translator:  comps.translator,
		Verifier:    comps.verifier,
		Repository:  repo,
		Uploads:     uploads,
		CallTimeout: cfg.ExternalTimeout,
	})

	views, err := report.NewViews()
	if err != nil {
		return err
	}

	handler := handlers.NewHTTPHandler(
		analyzer,
		repo,
		validation.NewUploadValidator(),
		health.NewHealthChecker(comps.refs, repo),
		views,
		handlers.Options{MaxUploadSize: cfg.MaxUploadSize, AIEnabled: cfg.AIEnabled()},
	)
	srv := server.NewServer(cfg, handler)

	errChan := make(chan error, 1)
	go func() {
		logging.Info(fmt.Sprintf("Starting server at %s:%s", cfg.Address, cfg.Port))
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		return err
	}

	logging.Info("Server exited")
	return nil
}
