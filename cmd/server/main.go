package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banking/regional-compliance/internal/api"
	"github.com/banking/regional-compliance/internal/compliance"
	"github.com/banking/regional-compliance/internal/compliance/history"
	"github.com/banking/regional-compliance/internal/compliance/jurisdiction"
	"github.com/banking/regional-compliance/internal/config"
	"github.com/banking/regional-compliance/internal/crypto"
	"github.com/banking/regional-compliance/internal/events"
	"github.com/banking/regional-compliance/internal/metrics"
	"github.com/banking/regional-compliance/internal/repository/elasticsearch"
	"github.com/banking/regional-compliance/internal/repository/postgres"
	"github.com/banking/regional-compliance/internal/repository/redis"
	"github.com/banking/regional-compliance/internal/repository/s3"
	"github.com/banking/regional-compliance/internal/service"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zcfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func main() {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Info("Starting Regional Compliance Service...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Crypto / Security
	keyring, err := crypto.NewKeyring(
		cfg.Signing.SealingKeysBase64,
		cfg.Signing.CurrentKeyVersion,
		cfg.Signing.DecisionHMACSecret,
	)
	if err != nil {
		sugar.Fatalf("Failed to initialize keyring: %v", err)
	}

	// 4. Repositories
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		sugar.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			sugar.Fatalf("Failed to migrate schema: %v", err)
		}
	}

	tenantRepo := postgres.NewTenantRepository(pool)
	txRepo := postgres.NewTransactionRepository(pool)
	reportRepo := postgres.NewReportRepository(pool)
	decisionRepo := postgres.NewDecisionRepository(pool)

	var index service.DecisionIndex
	if cfg.Elasticsearch.Enabled {
		esClient, err := elasticsearch.NewClient(cfg.Elasticsearch)
		if err != nil {
			sugar.Warnf("Failed to connect to Elasticsearch: %v (decision search disabled)", err)
		} else {
			index = elasticsearch.NewDecisionIndex(esClient, cfg.Elasticsearch.Index)
		}
	}

	// 5. Engine infrastructure shared by every provider
	m := metrics.New(nil)

	hist, err := history.NewStore(history.Config{
		Shards:        cfg.Cache.Shards,
		UsersPerShard: cfg.Cache.UsersPerShard,
		MaxPerUser:    cfg.Cache.MaxPerUser,
		LoadWindow:    cfg.Cache.LoadWindow,
	}, txRepo)
	if err != nil {
		sugar.Fatalf("Failed to create history store: %v", err)
	}
	scores, err := history.NewScores(cfg.Cache.ScoreShards, cfg.Cache.ScoresPerShard)
	if err != nil {
		sugar.Fatalf("Failed to create score cache: %v", err)
	}

	engineOpts := []compliance.Option{
		compliance.WithLogger(logger),
		compliance.WithMetrics(m),
		compliance.WithHistory(hist),
		compliance.WithScores(scores),
		compliance.WithReportStore(reportRepo),
		compliance.WithTimeouts(cfg.Compliance.LookupTimeout, cfg.Compliance.FilingTimeout),
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			sugar.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		engineOpts = append(engineOpts, compliance.WithRiskScoreSink(
			redis.NewRiskScoreStore(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.RiskScoreTTL)))
	}

	var filers []compliance.Filer
	if cfg.S3.FilingsBucket != "" {
		s3Client, err := s3.NewClient(ctx, cfg.S3)
		if err != nil {
			sugar.Fatalf("Failed to initialize S3 client: %v", err)
		}
		var sealer *crypto.Keyring
		if cfg.Signing.SealArchivedFilings {
			sealer = keyring
		}
		filers = append(filers, s3.NewFilingArchive(s3Client, cfg.S3.FilingsBucket, sealer))
	}

	var alerts service.AlertPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewSyncProducer(cfg.Kafka)
		if err != nil {
			sugar.Fatalf("Failed to create Kafka producer: %v", err)
		}
		defer producer.Close()
		filers = append(filers, events.NewFilingPublisher(producer, cfg.Kafka.FilingTopicPrefix))
		alerts = events.NewAlertPublisher(producer, cfg.Kafka.AlertTopic)
	}
	if len(filers) > 0 {
		engineOpts = append(engineOpts, compliance.WithFiler(compliance.Filers(filers...)))
	}

	// 6. Providers
	profiles, err := jurisdiction.Load(cfg.Compliance.ProfileDir)
	if err != nil {
		sugar.Fatalf("Failed to load jurisdiction profiles: %v", err)
	}
	registry := compliance.NewRegistry()
	for _, p := range profiles {
		engine, err := compliance.New(p, engineOpts...)
		if err != nil {
			sugar.Fatalf("Failed to build provider %s: %v", p.Name, err)
		}
		if err := engine.Initialize(cfg.Compliance.ProviderConfig(p.Name)); err != nil {
			sugar.Fatalf("Failed to initialize provider %s: %v", p.Name, err)
		}
		if err := registry.Register(engine); err != nil {
			sugar.Fatalf("Failed to register provider %s: %v", p.Name, err)
		}
		sugar.Infow("Registered compliance provider", "provider", p.Name, "region", p.Region)
	}

	// 7. Services
	recorder := service.NewDecisionRecorder(decisionRepo, index, keyring, logger)
	complianceService := service.NewComplianceService(registry, tenantRepo, service.Config{
		DefaultProvider: cfg.Compliance.DefaultProvider,
		RegionMap:       cfg.Compliance.RegionMap,
	}, recorder, alerts, logger)

	// 8. Kafka Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := events.NewTransactionConsumer(cfg.Kafka, txRepo, complianceService, logger)
		if err != nil {
			sugar.Fatalf("Failed to create Kafka consumer: %v", err)
		}
		defer consumer.Close()

		go func() {
			sugar.Info("Starting transaction feed consumer...")
			if err := consumer.Start(ctx); err != nil {
				sugar.Errorf("Kafka consumer failed: %v", err)
			}
		}()
	}

	// 9. API Server
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	complianceHandler := api.NewComplianceHandler(complianceService, recorder, logger, cfg.Logging.EnablePIIMask)

	apiGroup := e.Group("/compliance")

	// Security: Add JWT Authentication
	keyData, err := os.ReadFile(cfg.Auth.JWTPublicKeyPath)
	var signingKey interface{}
	if err == nil {
		signingKey, err = jwt.ParseRSAPublicKeyFromPEM(keyData)
		if err != nil {
			sugar.Warnf("Failed to parse JWT public key: %v", err)
			signingKey = nil
		}
	} else {
		sugar.Warnf("JWT public key not found at %s: %v", cfg.Auth.JWTPublicKeyPath, err)
	}

	if signingKey != nil {
		jwtConfig := echojwt.Config{
			SigningKey:    signingKey,
			SigningMethod: "RS256",
			NewClaimsFunc: func(c echo.Context) jwt.Claims {
				return new(jwt.RegisteredClaims)
			},
		}
		if cfg.Auth.JWTIssuer != "" {
			issuer := cfg.Auth.JWTIssuer
			jwtConfig.ParseTokenFunc = func(c echo.Context, auth string) (interface{}, error) {
				token, err := jwt.ParseWithClaims(auth, new(jwt.RegisteredClaims),
					func(*jwt.Token) (interface{}, error) { return signingKey, nil },
					jwt.WithValidMethods([]string{"RS256"}),
					jwt.WithIssuer(issuer),
				)
				if err != nil {
					return nil, err
				}
				return token, nil
			}
		}
		apiGroup.Use(echojwt.WithConfig(jwtConfig))
		sugar.Info("JWT Authentication enabled for /compliance/*")
	} else {
		sugar.Warn("JWT Authentication DISABLED - Missing Public Key (Security Risk)")
	}

	complianceHandler.RegisterRoutes(apiGroup)

	// Health Check
	e.GET("/health", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Start Server
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Shutting down the server: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sugar.Info("Shutting down service...")
	cancel()

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		sugar.Error(err)
	}
	recorder.Wait()
}
