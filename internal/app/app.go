// Package app assembles the settlement engine: pool, migrations, repositories,
// services, the settlement executor and the outer surfaces (operator API,
// operator bot, reconcile sweep).
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/settlement-engine/internal/bot"
	"serotonyl.ru/settlement-engine/internal/bot/filters"
	"serotonyl.ru/settlement-engine/internal/bot/middleware"
	"serotonyl.ru/settlement-engine/internal/config"
	"serotonyl.ru/settlement-engine/internal/db/postgres"
	"serotonyl.ru/settlement-engine/internal/features/ledger"
	"serotonyl.ru/settlement-engine/internal/features/odds"
	"serotonyl.ru/settlement-engine/internal/features/rounds"
	"serotonyl.ru/settlement-engine/internal/features/settlement"
	"serotonyl.ru/settlement-engine/internal/features/wagers"
	"serotonyl.ru/settlement-engine/internal/httpapi"
	"serotonyl.ru/settlement-engine/internal/jobs"
	"serotonyl.ru/settlement-engine/internal/lock"
)

// App holds the running components. Disabled surfaces are nil.
type App struct {
	DB        *pgxpool.Pool
	Executor  *settlement.Executor
	HTTP      *httpapi.Server
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler

	redis       *redis.Client
	rateLimiter *middleware.RateLimiter
}

// New connects to the database, applies migrations and wires every component.
// Order matters: the executor needs the notifier, the surfaces need the executor.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a := &App{DB: pool}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// repositories
	roundRepo := rounds.NewRepository(pool)
	wagerRepo := wagers.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool, cfg.DBLockTimeout)
	oddsRepo := odds.NewRepository(pool)

	// services
	roundService := rounds.NewService(roundRepo, cfg.BinaryLabels())
	resolver := odds.NewResolver(oddsRepo, cfg.OddsFallbacks)

	locker, err := a.newLocker(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		api      *telego.Bot
		notifier settlement.Notifier
	)
	if cfg.FeatureBotEnabled {
		api, err = newTelegram(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		if cfg.OperatorChatID != 0 {
			notifier = bot.NewNotifier(bot.NewTelegramSender(api), cfg.OperatorChatID)
		}
	}

	a.Executor = settlement.NewExecutor(
		roundService, wagerRepo,
		settlement.NewPGLedger(ledgerRepo, wagerRepo),
		resolver, locker, notifier,
		settlement.Options{
			Workers:        cfg.SettlementWorkers,
			WagerTimeout:   cfg.SettlementWagerTimeout,
			RetryAttempts:  cfg.SettlementRetryAttempts,
			RetryBaseDelay: cfg.SettlementRetryBaseDelay,
			BinaryLabels:   cfg.BinaryLabels(),
		},
	)

	if cfg.FeatureHTTPEnabled {
		h := &httpapi.Handler{
			Rounds:  roundService,
			Settler: a.Executor,
			Ledger:  ledgerRepo,
			Odds:    oddsRepo,
			DB:      pool,
		}
		a.HTTP = httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(h, cfg.OperatorTokenHash))
	}

	if api != nil {
		a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		a.Bot = bot.New(
			api,
			filters.NewChatFilter(cfg.OperatorChatID, cfg.AdminIDs),
			a.rateLimiter,
			roundService, a.Executor,
			bot.Options{
				PollTimeoutSeconds: cfg.BotUpdateTimeoutSeconds,
				MaxInflight:        cfg.BotMaxInflight,
			},
		)
	}

	if cfg.FeatureReconcileCronEnabled {
		a.Scheduler = jobs.NewScheduler(roundService, a.Executor, jobs.SweepOptions{
			Schedule: cfg.ReconcileCron,
			MinAge:   cfg.ReconcileMinAge,
			Batch:    cfg.ReconcileBatch,
			Location: location(cfg.AppTimezone),
		})
	}

	return a, nil
}

func (a *App) newLocker(ctx context.Context, cfg *config.Config) (settlement.RoundLocker, error) {
	if cfg.LockBackend != "redis" {
		log.Warn("round lock is in-process, run a single settler instance")
		return lock.NewMemory(), nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	l := lock.NewRedis(a.redis, cfg.LockTTL)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := l.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("redis %s unreachable: %w", cfg.RedisAddr, err)
	}
	log.WithField("addr", cfg.RedisAddr).Info("round lock on redis")
	return l, nil
}

func newTelegram(ctx context.Context, cfg *config.Config) (*telego.Bot, error) {
	var opts []telego.BotOption
	if cfg.AppEnv == "development" {
		opts = append(opts, telego.WithDefaultDebugLogger())
	}
	api, err := telego.NewBot(cfg.TelegramBotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	me, err := api.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}
	log.Infof("authorized as @%s", me.Username)
	return api, nil
}

func location(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("tz", name).Warn("unknown timezone, cron runs in UTC")
		return time.UTC
	}
	return loc
}

// Run starts the enabled surfaces and blocks until ctx is cancelled
// or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		defer a.Scheduler.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.HTTP != nil {
		g.Go(func() error { return a.HTTP.Run(ctx) })
	}
	if a.Bot != nil {
		g.Go(func() error { return a.Bot.Start(ctx) })
	}
	return g.Wait()
}

// Close releases pools and clients.
func (a *App) Close() {
	if a.rateLimiter != nil {
		a.rateLimiter.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.WithError(err).Warn("redis close")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
