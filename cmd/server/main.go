package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	jwttoken "copyroom/internal/jwt_token"
	"copyroom/internal/ledger/handler"
	ledgermetrics "copyroom/internal/ledger/metrics"
	"copyroom/internal/ledger/ports"
	"copyroom/internal/ledger/service"
	memorystore "copyroom/internal/ledger/store/memory"
	postgresstore "copyroom/internal/ledger/store/postgres"
	"copyroom/internal/ledger/wallet"
	"copyroom/internal/platform/config"
	"copyroom/internal/platform/httpserver"
	"copyroom/internal/platform/logger"
	"copyroom/internal/platform/metrics"
	"copyroom/internal/platform/postgres"
	redisclient "copyroom/internal/platform/redis"
	id "copyroom/pkg/domain"
	audit "copyroom/pkg/platform/audit"
	"copyroom/pkg/platform/audit/publisher"
	kafkasink "copyroom/pkg/platform/audit/store/kafka"
	auditmemory "copyroom/pkg/platform/audit/store/memory"
	"copyroom/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "copyroom: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, cleanup, err := buildInfra(ctx, cfg, log)
	defer cleanup()
	if err != nil {
		return err
	}

	svc, err := service.New(deps.ledger, deps.wallet,
		service.WithLogger(log),
		service.WithAuditPublisher(deps.publisher),
		service.WithMetrics(ledgermetrics.New(reg)),
		service.WithUnit(cfg.Unit),
		service.WithMaxQuantity(cfg.MaxMintQuantity),
	)
	if err != nil {
		return err
	}
	owner, err := svc.EnsureOwner(ctx, cfg.OwnerAddress())
	if err != nil {
		return fmt.Errorf("bootstrap owner: %w", err)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer)
	if !cfg.IsProduction() {
		if token, err := jwtService.GenerateAccessToken(owner, 24*time.Hour); err == nil {
			log.Info("issued development owner token", "owner", owner.Hex(), "token", token)
		}
	}

	router := newRouter(routerDeps{
		logger:    log,
		registry:  reg,
		metrics:   metrics.New(reg),
		validator: jwttoken.NewJWTServiceAdapter(jwtService),
		ledger:    handler.New(svc, log),
		health:    deps.health,
	})
	srv := httpserver.New(cfg.Addr, router,
		httpserver.WithReadTimeout(cfg.HTTPReadTimeout),
		httpserver.WithWriteTimeout(cfg.HTTPWriteTimeout),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting copyroom", "addr", cfg.Addr, "storage", cfg.Storage.Backend, "wallet", cfg.Wallet.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

type infra struct {
	ledger    ports.Ledger
	wallet    ports.Wallet
	publisher *publisher.Publisher
	health    []healthCheck
}

// buildInfra opens the configured backends. The returned cleanup closes
// whatever was opened, in reverse order, and is safe to call on error.
func buildInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	deps := &infra{}

	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := postgresstore.Migrate(ctx, db); err != nil {
			return nil, cleanup, err
		}
		deps.ledger = postgresstore.NewLedger(db, postgresstore.WithTxTimeout(cfg.TxTimeout))
		deps.health = append(deps.health, healthCheck{name: "postgres", check: pingDB(db)})
	default:
		deps.ledger = memorystore.NewLedger(memorystore.WithTxTimeout(cfg.TxTimeout))
	}

	switch cfg.Wallet.Backend {
	case config.WalletRedis:
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = client.Close() })
		redisWallet := wallet.NewRedis(client.Client, cfg.Wallet.Custody)
		if !cfg.IsProduction() {
			for addr, amount := range seed(cfg) {
				if err := redisWallet.Fund(ctx, addr, amount); err != nil {
					return nil, cleanup, fmt.Errorf("seed wallet: %w", err)
				}
			}
		}
		breaker := circuit.New("wallet",
			circuit.WithFailureThreshold(cfg.Wallet.BreakerThreshold),
			circuit.WithCooldown(cfg.Wallet.BreakerCooldown),
		)
		deps.wallet = wallet.NewGuarded(redisWallet, breaker, log)
		deps.health = append(deps.health, healthCheck{name: "redis", check: client.Health})
	default:
		memWallet := wallet.NewMemory()
		for addr, amount := range seed(cfg) {
			memWallet.Fund(addr, amount)
		}
		deps.wallet = memWallet
	}

	var sink audit.Store
	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kafkasink.NewClient(ctx, cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, client.Close)
		ks, err := kafkasink.NewSink(client, kafkasink.WithTopicPrefix(cfg.Kafka.TopicPrefix))
		if err != nil {
			return nil, cleanup, err
		}
		sink = ks
	} else {
		sink = auditmemory.NewInMemoryStore()
	}
	deps.publisher = publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(cfg.Kafka.AsyncBuffer),
		publisher.WithLogger(log),
	)
	// Registered last so buffered events drain before the sink closes.
	closers = append(closers, deps.publisher.Close)

	return deps, cleanup, nil
}

// seed returns the parsed wallet seed. Validate has already checked it.
func seed(cfg config.Server) map[id.Address]*id.Amount {
	out := make(map[id.Address]*id.Amount, len(cfg.Wallet.Seed))
	for rawAddr, rawAmount := range cfg.Wallet.Seed {
		addr, err := id.ParseAddress(rawAddr)
		if err != nil {
			continue
		}
		amount, err := id.ParseAmount(rawAmount)
		if err != nil {
			continue
		}
		out[addr] = amount
	}
	return out
}

func pingDB(db *sql.DB) func(context.Context) error {
	return db.PingContext
}
