package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ederziomek/real-digital-token/internal/codec/zbor"
	"github.com/ederziomek/real-digital-token/internal/config"
	"github.com/ederziomek/real-digital-token/internal/funding"
	"github.com/ederziomek/real-digital-token/internal/metrics"
	"github.com/ederziomek/real-digital-token/internal/middleware"
	"github.com/ederziomek/real-digital-token/internal/notification"
	"github.com/ederziomek/real-digital-token/internal/reserve"
	"github.com/ederziomek/real-digital-token/internal/storage"
	"github.com/ederziomek/real-digital-token/internal/token"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Cache     *redis.Client
	NATS      *nats.Conn
	JetStream jetstream.JetStream
	Badger    *badger.DB
	Registry  *prometheus.Registry
	Logger    *slog.Logger
}

// Setup configures middlewares and all application routes and returns the
// ledger serving them.
func Setup(ctx context.Context, app *fiber.App, d Deps) (*reserve.Ledger, error) {
	// Enforce Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDevelopment() && d.Cache == nil {
		return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	ledger, tokens, err := newLedger(ctx, d)
	if err != nil {
		return nil, err
	}
	fundingSvc, err := funding.NewService(ledger, tokens, nil, d.Logger)
	if err != nil {
		return nil, err
	}
	fundingHandler := funding.NewHandler(fundingSvc)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health and metrics
	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d.Registry)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	api.Use(middleware.Signature(d.Cfg.SignatureMaxSkew, d.Logger))
	if d.Cache != nil {
		api.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterReserveRoutes(api, ledger, d.Cfg.MintDecimals)
	RegisterFundingRoutes(api, fundingHandler)

	return ledger, nil
}

// newLedger builds the reserve store selected by STORE_BACKEND and the token
// service that shares it, so token movements commit with the reserve counters.
func newLedger(ctx context.Context, d Deps) (*reserve.Ledger, token.Service, error) {
	if d.Cfg.TokenBackend != "" && d.Cfg.TokenBackend != d.Cfg.StoreBackend {
		return nil, nil, fmt.Errorf("TOKEN_BACKEND %q must match STORE_BACKEND %q", d.Cfg.TokenBackend, d.Cfg.StoreBackend)
	}

	var (
		store  reserve.Store
		tokens token.Service
	)
	switch d.Cfg.StoreBackend {
	case config.BackendPostgres:
		if d.DB == nil {
			return nil, nil, fmt.Errorf("database is required when STORE_BACKEND=%s", d.Cfg.StoreBackend)
		}
		pg := reserve.NewPostgresStore(d.DB)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("reserve schema: %w", err)
		}
		pgTokens := token.NewPostgres(d.DB)
		if err := pgTokens.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("token schema: %w", err)
		}
		store, tokens = pg, pgTokens
	case config.BackendBadger:
		if d.Badger == nil {
			return nil, nil, fmt.Errorf("badger database is required when STORE_BACKEND=%s", d.Cfg.StoreBackend)
		}
		bs := storage.NewStore(d.Badger, storage.New(zbor.NewCodec()))
		store, tokens = bs, storage.NewTokens(bs)
	default:
		store, tokens = reserve.NewMemoryStore(), token.NewInMemory()
	}

	addr, err := reserve.FindAddress(d.Cfg.ReserveLabel, d.Cfg.ReserveProgram)
	if err != nil {
		return nil, nil, err
	}

	m := metrics.New(d.Registry)
	publishers := notification.Fanout{notification.NewLoggerNotifier(d.Logger)}
	if d.JetStream != nil {
		publishers = append(publishers, m.CountFailures(notification.NewJetStreamPublisher(d.JetStream, "")))
	}

	ledger := reserve.New(store, tokens, addr,
		reserve.WithLogger(d.Logger),
		reserve.WithObserver(m),
		reserve.WithPublisher(publishers),
		reserve.WithMintLimit(d.Cfg.DefaultMintLimit),
	)

	if state, err := ledger.Reserve(ctx); err == nil {
		m.Observe(state)
	}
	return ledger, tokens, nil
}
