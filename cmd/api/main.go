package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahwlsqja/zklogin-session-engine/docs"
	"github.com/ahwlsqja/zklogin-session-engine/internal/account"
	"github.com/ahwlsqja/zklogin-session-engine/internal/common/handler"
	"github.com/ahwlsqja/zklogin-session-engine/internal/common/middleware"
	"github.com/ahwlsqja/zklogin-session-engine/internal/config"
	"github.com/ahwlsqja/zklogin-session-engine/internal/repository"
	"github.com/ahwlsqja/zklogin-session-engine/internal/session"
	"github.com/ahwlsqja/zklogin-session-engine/internal/zklogin"
	pkgdb "github.com/ahwlsqja/zklogin-session-engine/pkg/db"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/faucet"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/nonce"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/prover"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/ratelimit"
	pkgredis "github.com/ahwlsqja/zklogin-session-engine/pkg/redis"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/securestore"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/sui"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/zkcrypto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title zkLogin Session Engine API
// @version 1.0
// @description OAuth login to a Sui address via zkLogin proofs: sessions, proofs, signing and submission

// @contact.name API Support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

func main() {
	// 1) 로거 초기화
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 2) 설정 로드
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("starting server",
		zap.String("environment", cfg.Server.Environment),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("durable_backend", cfg.Storage.DurableBackend),
		zap.String("salt_backend", cfg.Salt.Backend),
	)

	ctx := context.Background()

	// 3) Redis 연결 (volatile tier + nonce guard, fail-fast)
	rdb, err := pkgredis.Connect(ctx, pkgredis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, 5*time.Second)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// 4) MySQL 연결 (salt backend 가 mysql 일 때만)
	var db *sql.DB
	if cfg.UseMySQL() {
		db, err = pkgdb.Open(ctx, pkgdb.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Name:            cfg.Database.Name,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
	}

	// 5) Sui 노드 연결
	node, err := sui.Dial(ctx, cfg.Sui.RPCURL, &http.Client{Timeout: cfg.Sui.HTTPTimeout}, logger)
	if err != nil {
		logger.Fatal("failed to dial sui node", zap.Error(err))
	}
	defer node.Close()

	// 6) 라우터 구성
	router, err := setupRouter(cfg, logger, rdb, db, node)
	if err != nil {
		logger.Fatal("failed to set up router", zap.Error(err))
	}

	// 7) HTTP 서버 생성
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 8) 서버 비동기 시작
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("server started",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("swagger", fmt.Sprintf("http://localhost:%d/swagger/index.html", cfg.Server.Port)),
	)

	// 9) 종료 시그널 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// 10) Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENVIRONMENT")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// buildStores returns the volatile and durable session tiers plus the store
// backing salts when MySQL is not used.
func buildStores(cfg *config.Config, logger *zap.Logger, rdb *redis.Client) (session.Tiers, session.Store, error) {
	volatile := session.NewRedisStore(rdb, "zklogin:volatile", cfg.Storage.VolatileTTL, logger)

	if cfg.Storage.DurableBackend == config.DurableBackendFile {
		fileStore, err := session.OpenFileStore(cfg.Storage.FilePath, cfg.Storage.FileSecret, logger)
		if err != nil {
			return session.Tiers{}, nil, err
		}
		return session.Tiers{Volatile: volatile, Durable: fileStore}, fileStore, nil
	}

	durable := session.NewRedisStore(rdb, "zklogin:durable", cfg.Storage.DurableTTL, logger)
	// Salts outlive sessions: no TTL
	salts := session.NewRedisStore(rdb, "zklogin:salt", 0, logger)
	return session.Tiers{Volatile: volatile, Durable: durable}, salts, nil
}

func setupRouter(cfg *config.Config, logger *zap.Logger, rdb *redis.Client, db *sql.DB, node *sui.Client) (*gin.Engine, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	// Swagger 설정
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.Server.Port)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Health endpoints
	checks := map[string]handler.CheckFunc{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		"node": func(ctx context.Context) error {
			_, err := node.CurrentEpoch(ctx)
			return err
		},
	}
	if db != nil {
		checks["mysql"] = db.PingContext
	}
	healthHandler := handler.NewHealthHandler(checks)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// ============================================================================
	// Dependencies Setup
	// ============================================================================

	tiers, saltStore, err := buildStores(cfg, logger, rdb)
	if err != nil {
		return nil, fmt.Errorf("build session stores: %w", err)
	}

	// Step guard and single-use OAuth nonces
	guard := nonce.NewRedisStoreWithTTL(rdb, "zklogin:guard", cfg.Storage.GuardTTL, logger)

	var addressOpts []zkcrypto.AddressOption
	if cfg.Salt.LegacyAddress {
		addressOpts = append(addressOpts, zkcrypto.WithLegacySeedEncoding())
	}

	// Salt repository
	var salts zklogin.SaltRepository = zklogin.NewStoreSaltRepository(saltStore)
	if db != nil {
		var box *securestore.Box
		if cfg.Salt.Passphrase != "" {
			box, err = securestore.NewBox(cfg.Salt.Passphrase, []byte(cfg.Salt.KDFSalt))
			if err != nil {
				return nil, fmt.Errorf("salt encryption: %w", err)
			}
		}
		salts = repository.NewSaltRepository(pkgdb.NewTxRunner(db), box, logger, addressOpts...)
	}

	proverClient := prover.NewClient(cfg.Sui.ProverURL, &http.Client{Timeout: cfg.Sui.ProverTimeout}, logger)
	faucetClient := faucet.NewClient(cfg.Sui.FaucetURL, &http.Client{Timeout: cfg.Sui.HTTPTimeout}, logger)

	// ============================================================================
	// Service & Handler Setup
	// ============================================================================

	// zkLogin flow service & handler
	flowService := zklogin.NewService(zklogin.Dependencies{
		Tiers:          tiers,
		Guard:          guard,
		Node:           node,
		Prover:         proverClient,
		Salts:          salts,
		Metrics:        zklogin.NewMetrics(registry),
		AddressOptions: addressOpts,
	}, zklogin.Config{
		ClientID:     cfg.OAuth.ClientID,
		RedirectURI:  cfg.OAuth.RedirectURI,
		AuthorizeURL: cfg.OAuth.AuthorizeURL,
		Lookahead:    cfg.Sui.Lookahead,
		GasBudget:    cfg.Sui.GasBudget,
	}, logger)
	proofLimiter := ratelimit.New(cfg.RateLimit.ProofRPS, cfg.RateLimit.ProofBurst, cfg.RateLimit.IdleTTL)
	flowHandler := zklogin.NewHandler(flowService, proofLimiter)

	// Account service & handler
	accountService := account.NewService(node, faucetClient, logger)
	faucetLimiter := ratelimit.New(cfg.RateLimit.FaucetRPS, cfg.RateLimit.FaucetBurst, cfg.RateLimit.IdleTTL)
	accountHandler := account.NewHandler(accountService, faucetLimiter)

	// ============================================================================
	// Route Registration
	// ============================================================================

	v1 := router.Group("/api/v1")
	{
		flowHandler.RegisterRoutes(v1)
		accountHandler.RegisterRoutes(v1)
	}

	return router, nil
}
