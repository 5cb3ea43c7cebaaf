// Package app はアプリケーションの初期化・依存関係のワイヤリング・起動を提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/lendman/internal/catalog"
	"github.com/hitoshi/lendman/internal/config"
	"github.com/hitoshi/lendman/internal/database"
	"github.com/hitoshi/lendman/internal/handler"
	"github.com/hitoshi/lendman/internal/lending"
	"github.com/hitoshi/lendman/internal/logger"
	"github.com/hitoshi/lendman/internal/metrics"
	"github.com/hitoshi/lendman/internal/repository"
)

// Services は外部コラボレータ（認証・表示層）へ公開する呼び出しサーフェス。
// Lendingが書き込み操作（整合性エンジン）、Catalogが読み取り専用ビューを提供する。
type Services struct {
	Lending *lending.Service
	Catalog *catalog.Service
}

// BuildServices はDB接続の上にエンジンとファサードをワイヤリングする。
// 組み込み側はこの戻り値を通じてすべてのドメイン操作を呼び出す。
func BuildServices(db *sql.DB, reg prometheus.Registerer) *Services {
	titleRepo := repository.NewPostgresTitleRepo()
	loanRepo := repository.NewPostgresLoanRepo()
	txManager := repository.NewPostgresTxManager(db)
	collector := metrics.NewCollector(reg)

	return &Services{
		Lending: lending.NewService(txManager, titleRepo, loanRepo, collector),
		Catalog: catalog.NewService(db, titleRepo, loanRepo),
	}
}

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// ログの初期化（設定読み込み前にログを使えるようにする）
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
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe は運用サーバーモードで起動する。
// DB接続を開き、エンジンとファサードをワイヤリングし、運用HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. エンジンとファサードのワイヤリング
	reg := prometheus.NewRegistry()
	services := BuildServices(db, reg)

	// 起動時にカタログの規模をログに残す
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	titles, err := services.Catalog.ListAll(startupCtx)
	cancelStartup()
	if err != nil {
		return fmt.Errorf("failed to read catalog at startup: %w", err)
	}
	slog.Info("catalog loaded", slog.Int("titles", len(titles)))

	// 3. 運用エンドポイントの構築
	router := handler.NewRouter(&handler.RouterDeps{
		HealthChecker: db,
		Gatherer:      reg,
	})

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("ops server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down ops server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("ops server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
