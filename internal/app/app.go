// Package app はアプリケーションの初期化と起動を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/marketfeed/internal/aggregate"
	"github.com/hitoshi/marketfeed/internal/config"
	"github.com/hitoshi/marketfeed/internal/feed"
	"github.com/hitoshi/marketfeed/internal/fetch"
	"github.com/hitoshi/marketfeed/internal/filter"
	"github.com/hitoshi/marketfeed/internal/handler"
	"github.com/hitoshi/marketfeed/internal/logger"
	"github.com/hitoshi/marketfeed/internal/metrics"
	"github.com/hitoshi/marketfeed/internal/middleware"
	"github.com/hitoshi/marketfeed/internal/model"
	"github.com/hitoshi/marketfeed/internal/poller"
	"github.com/hitoshi/marketfeed/internal/security"
	"github.com/hitoshi/marketfeed/internal/store"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck と detect は軽量サブコマンドのため、フル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandDetect:
		if len(args) < 2 {
			return fmt.Errorf("usage: detect <url>")
		}
		return runDetect(w, args[1])
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Int("source_count", len(cfg.Sources)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はサーバーモードで起動する。
// HTTPサーバーとバックグラウンドポーラーを同一プロセスで動かす
// （単一プロセス・単一ポーラー。分散協調は行わない）。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	itemStore := store.NewPostgresItemStore(db)

	// 2. セキュリティサービスと起動時ソース検査
	ssrfGuard := security.NewSSRFGuard()
	sources := validateSources(cfg.Sources, ssrfGuard)
	if len(sources) == 0 {
		return fmt.Errorf("no valid feed sources configured")
	}

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 集約パイプラインとポーラー
	fetcher := fetch.NewFetcher(ssrfGuard, cfg.FetchTimeout, cfg.FetchMaxSize, cfg.PerSourceLimit)
	relevance := filter.NewRelevance(cfg.IncludeKeywords, cfg.ExcludeKeywords)
	pipeline := aggregate.NewPipeline(sources, fetcher, itemStore, relevance, collector, slog.Default())
	p := poller.New(pipeline, collector, slog.Default(), cfg.PollInterval)

	// 5. 保持ジョブ
	retention := store.NewRetentionJob(itemStore, slog.Default(), cfg.RetentionDays)

	// 6. ルーターとHTTPサーバー
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Store:             itemStore,
		Status:            p,
		Sources:           sources,
		ResultLimit:       cfg.ResultLimit,
		APIResultLimit:    cfg.APIResultLimit,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		StatusObserver:    collector,
		Gatherer:          registry,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// バックグラウンドジョブの起動（明示的ライフサイクル: ctxキャンセルで停止）
	go p.Start(ctx)
	go retention.Start(ctx)

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// validateSources は設定済みソースURLをSSRF検証し、危険なものを除外して返す。
func validateSources(sources []model.Source, guard security.SSRFGuardService) []model.Source {
	valid := make([]model.Source, 0, len(sources))
	for _, s := range sources {
		if err := guard.ValidateURL(s.URL); err != nil {
			slog.Warn("ソースURLの検証に失敗したため除外します",
				slog.String("source", s.Name),
				slog.String("url", s.URL),
				slog.String("error", err.Error()),
			)
			continue
		}
		valid = append(valid, s)
	}
	return valid
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/api/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// runDetect はURLからRSS/AtomフィードURLを自動検出して出力する。
func runDetect(w io.Writer, rawURL string) error {
	if w == nil {
		w = os.Stdout
	}

	detector := feed.NewDetector(security.NewSSRFGuard())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	feedURL, err := detector.Detect(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("feed detection failed: %w", err)
	}

	fmt.Fprintln(w, feedURL)
	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
