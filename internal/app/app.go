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
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/shelflife/internal/config"
	"github.com/hitoshi/shelflife/internal/database"
	"github.com/hitoshi/shelflife/internal/expiry"
	"github.com/hitoshi/shelflife/internal/handler"
	"github.com/hitoshi/shelflife/internal/item"
	"github.com/hitoshi/shelflife/internal/logger"
	"github.com/hitoshi/shelflife/internal/metrics"
	"github.com/hitoshi/shelflife/internal/middleware"
	"github.com/hitoshi/shelflife/internal/repository"
	"github.com/hitoshi/shelflife/internal/security"
	"github.com/hitoshi/shelflife/internal/store"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

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

	// 3. 設定されたログレベルで再初期化する
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
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("store_backend", string(cfg.StoreBackend)),
		slog.String("timezone", cfg.Location.String()),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, slog.Default())
}

// serve は依存関係をワイヤリングし、ctxがキャンセルされるまでHTTPサーバーを動かす。
func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           a.handler,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		// イベントストリームはハンドラー側で書き込み期限を解除する
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	// ストアを閉じると購読チャネルが閉じ、イベントストリームのハンドラーが終了する
	server.RegisterOnShutdown(a.store.Close)

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
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

	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// application は配線済みの依存関係と後始末処理をまとめる。
type application struct {
	handler     http.Handler
	store       *store.ItemStore
	service     *item.Service
	rateLimiter *middleware.RateLimiter
	closers     []func() error
}

// newApplication はリポジトリからルーターまでの全依存関係を構築する。
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	a := &application{}

	// 1. リポジトリの初期化
	repo, err := a.openRepository(ctx, cfg, log)
	if err != nil {
		a.close()
		return nil, err
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. ドメインサービスの初期化
	parser, err := expiry.NewParser(cfg.DateCacheSize, collector)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create date parser: %w", err)
	}

	a.store = store.New(repo, log, collector)
	a.service = item.NewService(
		a.store,
		parser,
		security.NewNameSanitizer(),
		cfg.Location,
		collector,
		log,
	)

	// 4. ルーターの構築
	a.rateLimiter = middleware.NewRateLimiter(middleware.RateLimitPerMinute(cfg.RateLimitWrite), log)

	a.handler = handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       a.rateLimiter,
		HTTPMetrics:       collector,
		HealthChecker:     a.store,
		MetricsHandler:    metrics.Handler(reg),
		ItemService:       a.service,
	})

	return a, nil
}

// openRepository は設定されたバックエンドのPreferenceRepositoryを開く。
// 開いた接続は close で閉じられるよう登録する。
func (a *application) openRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.PreferenceRepository, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Warn("using in-memory store; items are lost on restart")
		return repository.NewMemoryPreferenceRepo(), nil

	case config.BackendPostgres:
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		log.Info("database connection established")

		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		return repository.NewPostgresPreferenceRepo(db, cfg.StoreNamespace), nil

	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		a.closers = append(a.closers, rdb.Close)

		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("redis connection established", slog.String("addr", opts.Addr))
		return repository.NewRedisPreferenceRepo(rdb, cfg.StoreNamespace), nil

	default:
		repo, err := repository.NewFilePreferenceRepo(cfg.DataDir, cfg.StoreNamespace)
		if err != nil {
			return nil, fmt.Errorf("failed to open data directory: %w", err)
		}
		log.Info("file store ready", slog.String("path", repo.Path()))
		return repo, nil
	}
}

// close はストアとレートリミッターを停止し、バックエンド接続を閉じる。
func (a *application) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("failed to close backend connection", slog.String("error", err.Error()))
		}
	}
	a.closers = nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。PostgreSQLバックエンドでのみ意味を持つ。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("migrate requires STORE_BACKEND=postgres, got %q", cfg.StoreBackend)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.MigrateUp(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
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
	hasUser := u.User != nil
	u.User = nil
	u.RawQuery = ""
	masked := u.String()
	if hasUser {
		// url.User は '*' をエスケープするため、マスクは文字列として差し込む
		prefix := u.Scheme + "://"
		masked = prefix + "***@" + strings.TrimPrefix(masked, prefix)
	}
	return masked
}
