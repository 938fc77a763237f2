package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/catalog"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/chat"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/grpcserver"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/llm"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/order"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/scheduler"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/server"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/session"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/user"
)

func main() {
	envFile := config.LoadEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	l := logger.New(cfg.LogLevel)
	defer func() { _ = l.Sync() }()

	if envFile != "" {
		l.Info("Loaded environment variables", zap.String("path", envFile))
	}

	if err := run(cfg, l); err != nil {
		l.Error("Shop stopped with error", zap.Error(err))
		os.Exit(1)
	}
	l.Info("Shop gracefully stopped")
}

// closer releases a resource after every server has stopped.
type closer func(ctx context.Context) error

func run(cfg *config.Config, l *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var closers []closer
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer done()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](shutdownCtx); err != nil {
				l.Warn("Cleanup failed", zap.Error(err))
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	store, err := openStorage(gctx, cfg, l, g, &closers)
	if err != nil {
		return err
	}

	sessions, err := openSessions(gctx, cfg, l, &closers)
	if err != nil {
		return err
	}

	orderCache := cache.NewOrderCache(store, l)
	if err := orderCache.LoadInitialData(gctx); err != nil {
		return fmt.Errorf("failed to warm order cache: %w", err)
	}

	sched := scheduler.NewTimerScheduler(l)
	closers = append(closers, sched.Stop)

	orders := order.NewService(store, orderCache, sched, order.Config{
		ProcessingDelay: cfg.ProcessingDelay,
		ShippingDelay:   cfg.ShippingDelay,
	}, l)
	products := catalog.New(store)

	if cfg.GroqAPIKey == "" {
		l.Warn("GROQ_API_KEY is not set, the chatbot will answer with its fallback message")
	}
	client := llm.NewGroqClient(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.GroqTimeout, l)
	builder := chat.NewContextBuilder(chat.NewKeywordClassifier(), store, orders, l)
	bot := chat.NewBot(builder, sessions, client, store, chat.DefaultParams(cfg.GroqModel), l)

	users := user.NewService(store, l)

	httpServer := server.New(orders, products, bot, users, l)
	grpcServer := grpcserver.New(l)

	g.Go(func() error {
		return httpServer.Run(gctx, net.JoinHostPort("", cfg.HTTPPort))
	})
	g.Go(func() error {
		return grpcServer.Run(net.JoinHostPort("", cfg.GRPCPort))
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info("Shutdown signal received, stopping servers")

		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer done()

		grpcServer.Shutdown(shutdownCtx)
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg *config.Config, l *zap.Logger, g *errgroup.Group, closers *[]closer) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		database, err := db.NewDb(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, func(context.Context) error {
			database.Close()
			return nil
		})

		repos := storage.Repositories{
			Products: postgresql.NewProductRepo(database),
			Orders:   postgresql.NewOrderRepo(database),
			Returns:  postgresql.NewReturnRepo(database),
			History:  postgresql.NewHistoryRepo(database),
			ChatLogs: postgresql.NewChatLogRepo(database),
			Outbox:   postgresql.NewOutboxTaskRepo(database),
			Users:    postgresql.NewUserRepo(database),
		}

		var producer kafka.Producer
		if cfg.KafkaBrokers != "" {
			producer = kafka.NewKafkaProducer(cfg.KafkaBrokers, l)
		} else {
			producer = kafka.NewLogProducer(l)
		}
		publisher := kafka.NewPublisher(database, repos.Outbox, producer, kafka.DefaultPublisherConfig(), l)
		g.Go(func() error {
			publisher.Run(ctx)
			return nil
		})
		*closers = append(*closers, publisher.Shutdown)

		l.Info("Using postgres storage", zap.String("host", cfg.DB.Host), zap.String("db", cfg.DB.Name))
		return storage.NewPostgresStorage(database, repos, cfg.KafkaTopic, l), nil

	default:
		fs, err := storage.NewFileStorage(cfg.DataDir, l)
		if err != nil {
			return nil, err
		}
		l.Info("Using file storage", zap.String("dir", cfg.DataDir))
		return fs, nil
	}
}

func openSessions(ctx context.Context, cfg *config.Config, l *zap.Logger, closers *[]closer) (session.Store, error) {
	if cfg.SessionDriver != config.SessionRedis {
		return session.NewMemoryStore(cfg.SessionWindow), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	*closers = append(*closers, func(context.Context) error { return client.Close() })

	l.Info("Using redis session store", zap.String("addr", cfg.RedisAddr))
	return session.NewRedisStore(client, cfg.SessionWindow, session.WithTTL(cfg.SessionTTL)), nil
}
