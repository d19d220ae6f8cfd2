package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dskhairnar/backend-acme/internal/auth"
	"github.com/dskhairnar/backend-acme/internal/config"
	"github.com/dskhairnar/backend-acme/internal/database"
	"github.com/dskhairnar/backend-acme/internal/handler"
	"github.com/dskhairnar/backend-acme/internal/logger"
	"github.com/dskhairnar/backend-acme/internal/medication"
	"github.com/dskhairnar/backend-acme/internal/metrics"
	"github.com/dskhairnar/backend-acme/internal/middleware"
	"github.com/dskhairnar/backend-acme/internal/repository"
	"github.com/dskhairnar/backend-acme/internal/shipment"
	"github.com/dskhairnar/backend-acme/internal/weight"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	shutdownTimeout      = 30 * time.Second
	revocationPruneEvery = 10 * time.Minute
	maxConnectRetryDelay = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定のログレベルで再設定
	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("addr", cfg.Addr()),
	)

	switch cmd {
	case CommandMigrate:
		action, err := ParseMigrateAction(args)
		if err != nil {
			return err
		}
		return runMigrate(cfg, action)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// 2. DB接続（リトライ付き）
	connector := database.NewConnector(cfg.DatabaseURL,
		database.PoolOptions{ConnectTimeout: cfg.DBConnectTimeout, MaxOpenConns: cfg.DBMaxOpenConns},
		database.RetryPolicy{
			MaxAttempts: cfg.DBConnectRetries,
			BaseDelay:   cfg.DBRetryBaseDelay,
			Factor:      cfg.DBRetryFactor,
			MaxDelay:    maxConnectRetryDelay,
		},
		slog.Default(),
	).OnAttempt(collector.RecordDBConnectAttempt)

	db, err := connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db, cfg.DBQueryTimeout)
	weightRepo := repository.NewPostgresWeightRepo(db, cfg.DBQueryTimeout)
	medicationRepo := repository.NewPostgresMedicationRepo(db, cfg.DBQueryTimeout)
	shipmentRepo := repository.NewPostgresShipmentRepo(db, cfg.DBQueryTimeout)

	// 4. 認証サービスの初期化
	hasher, err := auth.NewBcryptHasher(cfg.BcryptRounds)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.JWTExpiresIn,
		RefreshTTL: cfg.JWTRefreshExpiry,
		Issuer:     "backend-acme",
	})
	if err != nil {
		return fmt.Errorf("failed to configure tokens: %w", err)
	}
	if tokens.WeakSecret() {
		slog.Warn("JWT_SECRET is shorter than the recommended 32 bytes")
	}

	revoked, closeRevoked, err := newRevocationStore(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer closeRevoked()

	authService := auth.NewService(userRepo, hasher, tokens, revoked)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Window:          cfg.RateLimitWindow,
		GeneralMax:      cfg.RateLimitMaxRequests,
		AuthMax:         cfg.AuthRateLimitMax,
		CleanupInterval: middleware.DefaultRateLimiterConfig().CleanupInterval,
	}, collector)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:  authService,
		RateLimiter:    rateLimiter,
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         slog.Default(),
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
		DB:             db,

		AuthService:       authService,
		UserService:       authService,
		WeightService:     weight.NewService(weightRepo),
		MedicationService: medication.NewService(medicationRepo),
		ShipmentService:   shipment.NewService(shipmentRepo),

		ShipmentsAdminOnly: cfg.ShipmentsAdminOnly,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return serve(ctx, server)
}

// serve はサーバーを起動し、ctxがキャンセルされたらグレースフルシャットダウンする。
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newRevocationStore はREDIS_URLが設定されていればRedis、なければインメモリの失効ストアを返す。
func newRevocationStore(ctx context.Context, redisURL string) (auth.RevocationStore, func(), error) {
	if redisURL == "" {
		store := auth.NewMemoryRevocationStore(revocationPruneEvery)
		slog.Info("using in-memory token revocation store")
		return store, store.Stop, nil
	}

	store, err := auth.NewRedisRevocationStore(ctx, redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("using redis token revocation store")
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}, nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, action MigrateAction) error {
	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigration(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		slog.Info("current schema version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
		return nil
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	masked := u.Scheme + "://"
	if u.User != nil {
		masked += "***@"
	}
	return masked + u.Host + u.EscapedPath()
}
