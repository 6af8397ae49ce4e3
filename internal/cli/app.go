package cli

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/fratlas/internal/boundary"
	"github.com/ppiankov/fratlas/internal/cache"
	"github.com/ppiankov/fratlas/internal/extract"
	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/pipeline"
	"github.com/ppiankov/fratlas/internal/recognize"
	"github.com/ppiankov/fratlas/internal/sim"
	"github.com/ppiankov/fratlas/internal/store"
	"github.com/ppiankov/fratlas/internal/upload"
	"github.com/ppiankov/fratlas/internal/worker"
)

// components are the simulated recognition and mapping parts shared by
// every command
type components struct {
	extractor *extract.EntityExtractor
	engine    *recognize.Engine
	synth     *boundary.Synthesizer
}

func newComponents(cfg *model.Config, logger *zap.Logger) *components {
	clock := sim.SystemClock{}
	extractor := extract.NewEntityExtractor(clock, cfg.Recognition.ExtractDelay)

	return &components{
		extractor: extractor,
		engine: recognize.NewEngine(recognize.Options{
			Rand:      sim.NewRand(cfg.Recognition.Seed),
			Clock:     clock,
			Extractor: extractor,
			Logger:    logger.Named("recognize"),
			MinDelay:  cfg.Recognition.MinDelay,
			MaxDelay:  cfg.Recognition.MaxDelay,
		}),
		synth: boundary.NewSynthesizer(sim.NewRand(cfg.Boundary.Seed)),
	}
}

// openDatabase connects and applies the schema
func openDatabase(ctx context.Context, cfg model.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	driver := cfg.Driver
	if driver == "" {
		driver = store.DriverPostgres
	}
	if err := store.Migrate(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}

	fields := []zap.Field{zap.String("driver", driver)}
	if driver == store.DriverPostgres {
		dsn := cfg.DSN
		if dsn == "" {
			dsn = store.ResolveDSN()
		}
		fields = append(fields, zap.String("dsn", store.SafeDSNSummary(dsn)))
	}
	logger.Info("database ready", fields...)

	return db, nil
}

// newIntake assembles the intake pipeline over db
func newIntake(cfg *model.Config, db *sql.DB, comp *components, logger *zap.Logger) (*pipeline.Intake, error) {
	uploads, err := upload.NewStore(cfg.Uploads.Dir, cfg.Uploads.AllowedTypes, cfg.Server.MaxUploadBytes)
	if err != nil {
		return nil, fmt.Errorf("upload store: %w", err)
	}

	return pipeline.NewIntake(pipeline.Deps{
		Recognizer: comp.engine,
		Boundaries: comp.synth,
		Claims:     store.NewClaimRepo(db),
		Files:      store.NewFileRepo(db),
		Uploads:    uploads,
		Cache:      cache.NewMemoryCache(cfg.Cache.StatsTTL, 5*time.Minute),
		StatsTTL:   cfg.Cache.StatsTTL,
		Logger:     logger.Named("intake"),
	}), nil
}

// newUploadLimiter builds the per-client upload limiter. Trusted clients are
// never throttled.
func newUploadLimiter(cfg model.RateLimitConfig) *worker.Limiter {
	l := worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	for _, client := range cfg.TrustedClients {
		if client = strings.TrimSpace(client); client != "" {
			l.SetKeyRate(client, 0, 0)
		}
	}
	return l
}
