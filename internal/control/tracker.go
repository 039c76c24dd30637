package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Luganodes/Solana-Indexer/internal/core/config"
	"github.com/Luganodes/Solana-Indexer/internal/indexing/apr"
	"github.com/Luganodes/Solana-Indexer/internal/indexing/backfill"
	"github.com/Luganodes/Solana-Indexer/internal/indexing/cursor"
	"github.com/Luganodes/Solana-Indexer/internal/indexing/health"
	"github.com/Luganodes/Solana-Indexer/internal/indexing/metrics"
	"github.com/Luganodes/Solana-Indexer/internal/indexing/reconcile"
	"github.com/Luganodes/Solana-Indexer/internal/infra/price"
	redisclient "github.com/Luganodes/Solana-Indexer/internal/infra/redis"
	"github.com/Luganodes/Solana-Indexer/internal/infra/rpc"
	"github.com/Luganodes/Solana-Indexer/internal/infra/storage/postgres"
)

// MigrationsDir is where goose migrations are read from, relative to CWD.
const MigrationsDir = "migrations"

// Tracker is the main application struct that wires the reconciler and
// backfiller to their schedules and manages the process lifecycle.
type Tracker struct {
	cfg          *config.AppConfig
	db           *postgres.DB
	redisClient  *redisclient.Client
	cron         *cron.Cron
	healthServer *health.Server

	reconciler     *reconcile.Reconciler
	backfiller     *backfill.Backfiller
	delegatorScope backfill.Scope
	validatorScope backfill.Scope

	// Single-flight guards: a tick that fires while the previous run of
	// the same kind is still in flight is skipped. Both reward jobs share
	// one guard since they write the same table.
	reconcileMu sync.Mutex
	backfillMu  sync.Mutex

	runCtx context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

// NewTracker creates a Tracker with all dependencies initialized.
func NewTracker(cfg *config.AppConfig) (*Tracker, error) {
	log := slog.Default()

	db, err := postgres.NewDB(context.Background(), cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Migrate(MigrationsDir); err != nil {
		return nil, err
	}

	var redisClient *redisclient.Client
	var priceCache price.Cache
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("failed to connect to redis, price cache disabled", "error", err)
		} else {
			priceCache = redisClient
		}
	}

	rpcClient := rpc.NewClient(rpc.Config{
		Endpoint: cfg.RPC.Endpoint,
		Timeout:  cfg.RPC.Timeout,
		Backoff: rpc.BackoffConfig{
			InitialDelay: cfg.RPC.InitialRetryDelay,
			MaxDelay:     cfg.RPC.MaxRetryDelay,
		},
	}, log)

	priceClient := price.NewClient(price.Config{
		BaseURL: cfg.Price.BaseURL,
		Timeout: cfg.Price.Timeout,
	}, priceCache, log)

	delegatorRepo := postgres.NewDelegatorRepo(db)
	rewardRepo := postgres.NewRewardRepo(db)
	transactionRepo := postgres.NewTransactionRepo(db)

	aprCalc := apr.New(rewardRepo)
	epochCursor := cursor.New(rewardRepo, cfg.Validator.StartEpoch)

	t := &Tracker{
		cfg:         cfg,
		db:          db,
		redisClient: redisClient,
		cron:        cron.New(),
		reconciler: reconcile.New(
			rpcClient, priceClient, aprCalc,
			delegatorRepo, transactionRepo,
			cfg.Validator.PubKey, log,
		),
		backfiller:     backfill.New(rpcClient, priceClient, rewardRepo, epochCursor, log),
		delegatorScope: backfill.NewDelegatorScope(delegatorRepo),
		validatorScope: backfill.NewValidatorScope(cfg.Validator.RewardIdentity, cfg.Validator.RewardPubKey),
		healthServer:   health.NewServer(db, cfg.Server.Port),
		log:            log,
	}
	return t, nil
}

// Start registers the scheduled jobs and starts the health server.
func (t *Tracker) Start(ctx context.Context) error {
	t.runCtx, t.cancel = context.WithCancel(ctx)

	jobs := []struct {
		name string
		spec string
		mu   *sync.Mutex
		fn   func(context.Context) error
	}{
		{"reconcile", t.cfg.Jobs.Reconcile, &t.reconcileMu, t.reconciler.Run},
		{"validator-rewards", t.cfg.Jobs.ValidatorRewards, &t.backfillMu, func(ctx context.Context) error {
			return t.backfiller.Run(ctx, t.validatorScope)
		}},
		{"delegator-rewards", t.cfg.Jobs.DelegatorRewards, &t.backfillMu, func(ctx context.Context) error {
			return t.backfiller.Run(ctx, t.delegatorScope)
		}},
	}

	for _, job := range jobs {
		if _, err := t.cron.AddFunc(job.spec, t.guarded(job.name, job.mu, job.fn)); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		t.log.Info("job scheduled", "job", job.name, "spec", job.spec)
	}

	go func() {
		if err := t.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Error("health server failed", "error", err)
		}
	}()

	t.cron.Start()
	return nil
}

// Stop unregisters future ticks, waits for in-flight jobs to finish and
// releases resources. If ctx expires before the jobs drain, they are
// cooperatively canceled at their next suspension point.
func (t *Tracker) Stop(ctx context.Context) error {
	t.log.Info("stopping tracker...")

	stopCtx := t.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		t.cancel()
		<-stopCtx.Done()
	}
	t.cancel()

	if t.redisClient != nil {
		if err := t.redisClient.Close(); err != nil {
			t.log.Warn("failed to close redis", "error", err)
		}
	}
	if err := t.db.Close(); err != nil {
		t.log.Warn("failed to close database", "error", err)
	}

	return t.healthServer.Stop(ctx)
}

// guarded wraps a job with its single-flight guard, outcome metrics and
// tick-boundary error handling.
func (t *Tracker) guarded(name string, mu *sync.Mutex, fn func(context.Context) error) func() {
	return func() {
		if !mu.TryLock() {
			metrics.JobRunsTotal.WithLabelValues(name, "skipped").Inc()
			t.log.Warn("previous run still in flight, skipping tick", "job", name)
			return
		}
		defer mu.Unlock()

		start := time.Now()
		if err := fn(t.runCtx); err != nil {
			metrics.JobRunsTotal.WithLabelValues(name, "error").Inc()
			t.log.Error("job failed", "job", name, "duration", time.Since(start), "error", err)
			return
		}
		metrics.JobRunsTotal.WithLabelValues(name, "ok").Inc()
		t.log.Info("job completed", "job", name, "duration", time.Since(start))
	}
}
