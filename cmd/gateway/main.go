// ゲートウェイのエントリポイント。
// 設定を読み込み、ルート表に従って下流サービスへリクエストを振り分ける。
// 外部からアクセス可能な唯一のサービスであり、認証と認可の境界線となる。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/tourgate/internal/config"
	"github.com/nao1215/tourgate/internal/gateway"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("ゲートウェイが異常終了しました", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// run はサーバーを起動し、SIGINT または SIGTERM を受け取るまで待つ。
func run(cfg *config.Config, logger *zap.Logger) error {
	if cfg.UsesDefaultJWTKey() {
		logger.Warn("既定のJWT署名鍵を使用しています。本番環境では JWT_KEY を設定してください")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := gateway.NewServer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("ゲートウェイの初期化に失敗: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			logger.Warn("リソースの解放に失敗しました", zap.Error(err))
		}
	}()

	logger.Info("ゲートウェイの設定を読み込みました",
		zap.String("port", cfg.Port),
		zap.String("follower_grpc_addr", cfg.FollowerGRPCAddr),
		zap.Duration("upstream_timeout", cfg.UpstreamTimeout),
		zap.Bool("journal", cfg.JournalDSN != ""),
	)
	return server.Run(ctx)
}

// newLogger はログ設定からロガーを生成する。json は本番向け、console は開発向けの設定を使う。
func newLogger(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("ログレベルが不正: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
