package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	cacheadapter "github.com/agentcourt/clearinghouse/internal/adapters/cache"
	eventadapter "github.com/agentcourt/clearinghouse/internal/adapters/events"
	grpcadapter "github.com/agentcourt/clearinghouse/internal/adapters/grpc"
	httpadapter "github.com/agentcourt/clearinghouse/internal/adapters/http"
	"github.com/agentcourt/clearinghouse/internal/adapters/memory"
	"github.com/agentcourt/clearinghouse/internal/adapters/postgres"
	"github.com/agentcourt/clearinghouse/internal/adapters/registry"
	"github.com/agentcourt/clearinghouse/internal/application"
	"github.com/agentcourt/clearinghouse/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping clearinghouse ledger", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort, "memory_stores", cfg.UseMemoryStores)

	var (
		agents       ports.AgentRepository
		services     ports.ServiceRepository
		transactions ports.TransactionRepository
		disputes     ports.DisputeRepository
		evidence     ports.EvidenceRepository
		idempotency  ports.IdempotencyRepository
		eventDedup   ports.EventDedupRepository
		outboxRepo   ports.OutboxRepository
		cleanup      = func(context.Context) {}
	)

	if cfg.UseMemoryStores {
		repos := memory.NewRepositories()
		agents = repos.Agents
		services = repos.Services
		transactions = repos.Transactions
		disputes = repos.Disputes
		evidence = repos.Evidence
		idempotency = repos.Idempotency
		eventDedup = repos.EventDedup
		outboxRepo = repos.Outbox
	} else {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sqlDB, err := pool.DB()
		if err != nil {
			return nil, fmt.Errorf("gorm sql db: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		repos := postgres.NewRepositories(pool)
		agents = repos.Agents
		services = repos.Services
		transactions = repos.Transactions
		disputes = repos.Disputes
		evidence = repos.Evidence
		idempotency = cacheadapter.NewRedisIdempotencyStore(redisClient)
		eventDedup = cacheadapter.NewRedisEventDedupStore(redisClient)
		outboxRepo = repos.Outbox
		cleanup = func(context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		}
	}

	registryClient := &http.Client{Timeout: cfg.RegistryHTTPTimeout}
	var identityGate ports.IdentityGate
	identityRequired := cfg.IdentityRequired
	if cfg.IdentityRegistryURL != "" {
		identityGate = registry.NewHTTPIdentityGate(cfg.IdentityRegistryURL, registryClient)
	} else {
		if identityRequired {
			logger.Warn("no identity registry configured, identity gate disabled")
			identityRequired = false
		}
		identityGate = registry.NewMemoryIdentityGate()
	}
	var reputation ports.ReputationNotifier
	if cfg.ReputationRegistryURL != "" {
		reputation = registry.NewHTTPReputationNotifier(cfg.ReputationRegistryURL, registryClient)
	} else {
		reputation = registry.NewMemoryReputationNotifier()
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:          cfg.ServiceID,
			MinDeposit:           cfg.MinDeposit,
			FeeRateBps:           cfg.FeeRateBps,
			FeeSchedule:          cfg.FeeSchedule(),
			AutoCompleteGrace:    cfg.AutoCompleteGrace,
			IdentityRequired:     identityRequired,
			OperatorAddress:      cfg.OperatorAddress,
			IdempotencyTTL:       cfg.IdempotencyTTL,
			EventDedupTTL:        cfg.EventDedupTTL,
			OutboxFlushBatchSize: cfg.OutboxBatchSize,
		},
		Agents:       agents,
		Services:     services,
		Transactions: transactions,
		Disputes:     disputes,
		Evidence:     evidence,
		Idempotency:  idempotency,
		EventDedup:   eventDedup,
		Outbox:       outboxRepo,
		Identity:     identityGate,
		Reputation:   reputation,
		Authority:    registry.NewStaticJudgeAuthority(cfg.JudgeAddresses),
		DomainEvents: eventadapter.NewLoggingPublisher(logger),
		Analytics:    eventadapter.NewLoggingPublisher(logger),
		DLQ:          eventadapter.NewLoggingDLQPublisher(),
	})

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler, cfg.JWTSecret)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	grpcadapter.Register(grpcServer, grpcadapter.NewLedgerInternalServer(svc))

	outboxWorker := eventadapter.NewOutboxWorker(logger, svc, eventadapter.NewMemoryConsumer(), eventadapter.NewLoggingDLQPublisher(), cfg.OutboxPollInterval)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		outbox:     outboxWorker,
		cleanupFn:  cleanup,
	}, nil
}

// RunAPI serves HTTP and gRPC until a shutdown signal. Ports are bound here
// rather than in NewRuntime so the worker entrypoint can share a host with
// the api without colliding on listeners.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", lis.Addr().String())
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
