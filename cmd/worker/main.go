package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"clipforge/internal/adapter/repo"
	"clipforge/internal/camera"
	"clipforge/internal/dispatch"
	"clipforge/internal/domain"
	"clipforge/internal/infra"
	"clipforge/internal/infra/credentials"
	"clipforge/internal/pricing"
	"clipforge/internal/providers/kling"
	"clipforge/internal/storage"
)

const claimInterval = 2 * time.Second

type promptWorker struct {
	engine  *dispatch.Engine
	prompts domain.PromptRepository
	logger  infra.Logger
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	extractor, err := camera.NewExtractor()
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid camera rule table")
	}

	client, err := kling.NewClient(kling.Options{
		APIKey:          cfg.KlingAPIKey,
		BaseURL:         cfg.KlingBaseURL,
		HTTPClient:      &http.Client{Timeout: 60 * time.Second},
		Logger:          &logger,
		SubmitTimeout:   cfg.SubmitTimeout,
		PollInterval:    cfg.PollInterval,
		PollMaxInterval: cfg.PollMaxInterval,
		PollTimeout:     cfg.PollTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure provider client")
	}

	var mirror dispatch.Mirror
	if cfg.StoragePath != "" {
		storagePath := cfg.StoragePath
		if !filepath.IsAbs(storagePath) {
			if abs, err := filepath.Abs(storagePath); err == nil {
				storagePath = abs
			}
		}
		fileStore, err := storage.NewFileStore(storagePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: failed to configure storage")
		}
		mirror = &dispatch.StorageMirror{Downloader: client, Store: fileStore, Logger: logger}
	}

	prompts := repo.NewPromptRepository(runner)
	engine := &dispatch.Engine{
		Meter:           pricing.Meter{Unlimited: cfg.UnlimitedCredits},
		Extractor:       extractor,
		Renderer:        client,
		Ledger:          repo.NewLedger(runner),
		Prompts:         prompts,
		Clips:           repo.NewClipStore(runner),
		Mirror:          mirror,
		Keys:            credentials.NewStore(runner),
		Logger:          logger,
		ExperimentGroup: cfg.ExperimentGroup,
	}

	worker := &promptWorker{engine: engine, prompts: prompts, logger: logger}

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker: started")
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerConcurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			worker.loop(ctx, slot)
		}(i)
	}
	wg.Wait()
	logger.Info().Msg("worker: stopped")
}

// loop claims and runs one attempt at a time. The goroutine count is the
// in-flight ceiling; there is no separate semaphore.
func (w *promptWorker) loop(ctx context.Context, slot int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rec, err := w.prompts.ClaimRunnable(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.logger.Error().Err(err).Int("slot", slot).Msg("worker: claim failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(claimInterval):
			}
			continue
		}

		if err := w.handle(ctx, rec); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error().Err(err).Str("prompt_id", rec.ID).Int("slot", slot).Msg("worker: attempt failed")
		}
	}
}

func (w *promptWorker) handle(ctx context.Context, rec *domain.PromptRecord) error {
	var req dispatch.Request
	if len(rec.RequestJSON) == 0 {
		return fmt.Errorf("prompt %s has no stored request", rec.ID)
	}
	if err := json.Unmarshal(rec.RequestJSON, &req); err != nil {
		return fmt.Errorf("decode stored request: %w", err)
	}

	// A claimed record still in generating is a stale lease from an attempt
	// that never reached a terminal state; settle it instead of re-running.
	if rec.Status == domain.PromptStatusGenerating {
		_, err := w.engine.Recover(ctx, *rec, req)
		return err
	}

	_, err := w.engine.Run(ctx, *rec, req, func(p dispatch.Progress) {
		w.logger.Debug().Str("prompt_id", p.PromptID).Str("phase", p.Phase).Msg(p.Message)
	})
	return err
}
