package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"voiceguard/internal/audit"
	"voiceguard/internal/calls"
	"voiceguard/internal/config"
	"voiceguard/internal/directory"
	"voiceguard/internal/httpapi"
	"voiceguard/internal/inference"
	"voiceguard/internal/schema"
	"voiceguard/internal/speaker"
	"voiceguard/internal/spool"
	"voiceguard/internal/telephony"
	"voiceguard/internal/verification"
	"voiceguard/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const (
	concurrencyCapKey = "voiceguard:inference:slots"
	healthTimeout     = 2 * time.Second
)

// app holds every long-lived dependency of the API process.
type app struct {
	cfg config.Config

	handlers httpapi.Handlers
	ingest   *telephony.Ingest
	registry *prometheus.Registry
	pool     *verification.Pool

	db     *sql.DB
	rdb    *redis.Client
	models *inference.Models
}

type stores struct {
	calls      calls.Repository
	directory  directory.Repository
	embeddings speaker.Store
	ledger     verification.Ledger
	audit      audit.Repository
}

// build wires config into services. Partially built resources are released on error.
func build(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close(log)
		}
	}()

	var st stores
	switch cfg.App.StoreDriver {
	case "postgres":
		a.db, err = utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err = schema.Apply(ctx, a.db); err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
		st = stores{
			calls:      calls.NewPostgresRepo(a.db),
			directory:  directory.NewPostgresRepo(a.db),
			embeddings: speaker.NewPostgresStore(a.db, cfg.Verify.EmbeddingDim),
			ledger:     verification.NewPostgresLedger(a.db),
			audit:      audit.NewPostgresRepo(a.db),
		}
	default:
		log.Warn("using in-memory stores; state is lost on restart")
		st = stores{
			calls:      calls.NewMemoryRepo(),
			directory:  directory.NewMemoryRepo(),
			embeddings: speaker.NewMemoryStore(cfg.Verify.EmbeddingDim),
			ledger:     verification.NewMemoryLedger(),
			audit:      audit.NewMemoryRepo(),
		}
	}

	var notifier verification.Notifier = verification.NewMemoryNotifier()
	var limiter verification.Limiter
	if cfg.RedisEnabled() {
		a.rdb, err = utils.OpenRedis(ctx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		notifier = verification.NewRedisNotifier(a.rdb, "")
		if cfg.Verify.GlobalConcurrency > 0 {
			limiter = utils.NewConcurrencyCap(a.rdb, concurrencyCapKey, cfg.Verify.GlobalConcurrency, 2*cfg.Models.Timeout)
		}
	}

	a.models, err = inference.Load(ctx, inference.ModelsConfig{
		DetectorURL:       cfg.Models.DetectorURL,
		ExtractorURL:      cfg.Models.ExtractorURL,
		DetectorThreshold: cfg.Models.DetectorThreshold,
		Timeout:           cfg.Models.Timeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("models: %w", err)
	}

	audio, err := openSpool(cfg.Spool)
	if err != nil {
		return nil, fmt.Errorf("spool: %w", err)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := verification.NewMetrics(a.registry)

	callRegistry := calls.NewRegistry(st.calls, log)
	dir := directory.NewService(st.directory)
	analyzer := verification.NewAnalyzer(
		a.models.Detector,
		a.models.Extractor,
		speaker.NewIdentifier(st.embeddings),
		dir,
		cfg.Verify.SpeakerThreshold,
		log,
		metrics,
	)

	coord := verification.NewCoordinator(
		verification.CoordinatorConfig{Deadline: cfg.Verify.Deadline, PollInterval: cfg.Verify.PollInterval},
		callRegistry, dir, audio, st.ledger, notifier, analyzer, log, metrics,
	)
	a.pool = verification.NewPool(verification.PoolConfig{
		Workers:      cfg.Verify.Workers,
		QueueSize:    cfg.Verify.QueueSize,
		Limiter:      limiter,
		CapacityWait: cfg.Verify.Deadline / 2,
	}, coord, log, metrics)
	coord.AttachPool(a.pool)

	a.ingest = telephony.NewIngest(callRegistry, audit.NewService(st.audit, log), log)
	a.handlers = httpapi.Handlers{
		Verifier:    coord,
		Enroller:    speaker.NewEnroller(a.models.Extractor, st.embeddings, dir),
		Provisioner: dir,
		Checks:      a.checks(),
	}
	return a, nil
}

func openSpool(cfg config.SpoolConfig) (*spool.Spool, error) {
	if cfg.S3Bucket != "" {
		client := spool.NewS3Client(spool.S3Config{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		return spool.New(spool.NewS3(client, cfg.S3Bucket, cfg.S3Prefix)), nil
	}
	local, err := spool.NewLocal(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return spool.New(local), nil
}

func (a *app) checks() map[string]func(ctx context.Context) error {
	out := map[string]func(ctx context.Context) error{}
	if a.db != nil {
		out["postgres"] = func(ctx context.Context) error { return utils.HealthCheck(ctx, a.db, healthTimeout) }
	}
	if a.rdb != nil {
		out["redis"] = func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }
	}
	return out
}

func (a *app) close(log *slog.Logger) {
	if a.models != nil {
		if err := a.models.Close(); err != nil {
			log.Warn("models close failed", "err", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			log.Warn("redis close failed", "err", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn("postgres close failed", "err", err)
		}
	}
}
