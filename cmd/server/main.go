package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/logger"
	"github.com/rl1809/storefront/internal/port"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New("storefront", cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		stop()
		logFatal(zl, err)
		os.Exit(1)
	}
}

// logFatal records err and flushes the logger, since os.Exit skips deferred syncs.
func logFatal(zl *zap.Logger, err error) {
	zl.Error("server stopped with error", zap.Error(err))
	zl.Sync()
}

type stores struct {
	carts    port.CartRepository
	products port.ProductRepository
	cache    port.CacheRepository
	closers  []func() error
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger) error {
	st, err := openStores(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer func() {
		for _, closeFn := range st.closers {
			closeFn()
		}
		zl.Info("connections closed")
	}()

	cartService := service.NewCartService(st.carts, st.products, st.cache)
	catalogService := service.NewCatalogService(st.products)

	if cfg.SeedCatalog {
		n, err := catalogService.SeedIfEmpty(ctx, service.SampleProducts())
		if err != nil {
			return err
		}
		if n > 0 {
			zl.Info("seeded catalogue", zap.Int("products", n))
		}
	}

	// gRPC
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLoggingInterceptor(zl)))
	handler.RegisterCartServiceServer(grpcServer, handler.NewGRPCHandler(cartService, catalogService, cfg.DefaultUserID, zl))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	// HTTP
	httpHandler := handler.NewHTTPHandler(
		cartService,
		catalogService,
		handler.HeaderIdentity{DefaultUserID: cfg.DefaultUserID},
		cfg.RequestTimeout,
		zl,
	)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(httpHandler, cfg.CORSAllowOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zl.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		zl.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr), zap.String("cart_store", cfg.CartStore))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down...")

		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		zl.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		zl.Info("gRPC server stopped")
		return err
	})

	return g.Wait()
}

// openStores connects the backends the configured cart store needs. MySQL
// always holds the catalogue unless everything runs in memory; Redis also
// backs the idempotency keys whenever it is connected.
func openStores(ctx context.Context, cfg config.Config, zl *zap.Logger) (*stores, error) {
	if cfg.CartStore == config.CartStoreMemory {
		mem := storage.NewMemoryAdapter()
		zl.Warn("using in-memory stores, data is lost on restart")
		return &stores{carts: mem, products: mem, cache: mem}, nil
	}

	st := &stores{}

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	st.closers = append(st.closers, db.Close)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	zl.Info("connected to mysql")

	version, err := storage.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	zl.Info("migrations applied", zap.Uint("version", version))

	mysqlAdapter := storage.NewMySQLAdapter(db, cfg.MaxMutateAttempts)
	st.products = mysqlAdapter
	st.carts = mysqlAdapter

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		if cfg.CartStore == config.CartStoreRedis {
			rdb.Close()
			db.Close()
			return nil, err
		}
		// idempotency keys are optional for the mysql store
		zl.Warn("redis unavailable, idempotency keys disabled", zap.Error(err))
		rdb.Close()
		return st, nil
	}
	zl.Info("connected to redis")
	st.closers = append(st.closers, rdb.Close)

	redisAdapter := storage.NewRedisAdapter(rdb, cfg.MaxMutateAttempts)
	st.cache = redisAdapter
	if cfg.CartStore == config.CartStoreRedis {
		st.carts = redisAdapter
	}

	return st, nil
}
