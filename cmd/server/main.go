package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deLKM/Genteblog/internal/config"
	"github.com/deLKM/Genteblog/internal/db"
	"github.com/deLKM/Genteblog/internal/events"
	"github.com/deLKM/Genteblog/internal/handler"
	"github.com/deLKM/Genteblog/internal/kvstore"
	"github.com/deLKM/Genteblog/internal/logger"
	"github.com/deLKM/Genteblog/internal/metrics"
	"github.com/deLKM/Genteblog/internal/router"
	"github.com/deLKM/Genteblog/internal/service"
	"github.com/deLKM/Genteblog/internal/store"
	"github.com/deLKM/Genteblog/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env 不存在时直接使用进程环境变量
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	zl, err := logger.New(cfg.GinMode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, accounts, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		zl.Fatal("failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()

	uploader, err := newUploader(cfg)
	if err != nil {
		zl.Fatal("failed to configure uploads", zap.String("backend", cfg.UploadBackend), zap.Error(err))
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			zl.Fatal("failed to connect nats", zap.String("url", cfg.NATSURL), zap.Error(err))
		}
		defer nc.Close()
		publisher = nc
	}

	m := metrics.New()
	policy := service.FailOnCorrupt
	if cfg.ListSkipCorrupt {
		policy = service.SkipCorrupt
	}

	posts := service.NewPostService(docs).
		WithUploader(uploader).
		WithPublisher(publisher).
		WithLogger(zl).
		WithMetrics(m).
		WithListPolicy(policy)
	interactions := service.NewInteractionService(docs)
	stats := service.NewStatsService(docs).WithLogger(zl)
	retention := service.NewRetentionService(docs).
		WithRetention(cfg.Retention()).
		WithLogger(zl).
		WithMetrics(m)
	auth := service.NewAuthService(accounts).WithLogger(zl)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if _, err := auth.EnsureAccount(ctx, cfg.AdminEmail, cfg.AdminPassword, ""); err != nil {
			zl.Fatal("failed to create admin account", zap.String("email", cfg.AdminEmail), zap.Error(err))
		}
	}

	api := handler.NewAPI(handler.Services{
		Posts:        posts,
		Interactions: interactions,
		Comments:     service.NewCommentService(docs).WithPublisher(publisher).WithLogger(zl).WithMetrics(m),
		Stats:        stats,
		Profiles:     service.NewProfileService(posts, stats, interactions).WithLogger(zl),
		Backup:       service.NewBackupService(docs).WithLogger(zl),
		Retention:    retention,
		Auth:         auth,
		Uploader:     uploader,
		Logger:       zl,
		Metrics:      m,
		AdminEmail:   cfg.AdminEmail,
	})

	opts := router.Options{
		SessionSecret: cfg.SessionSecret,
		Secure:        cfg.GinMode == gin.ReleaseMode,
		CORSOrigins:   cfg.CORSOrigins,
		UploadURLPath: cfg.UploadURLPath,
	}
	if cfg.UploadBackend == config.UploadLocal {
		opts.UploadDir = cfg.UploadDir
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.SetupRouter(api, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go retention.Run(ctx, cfg.SweepInterval)

	go func() {
		zl.Info("server listening", zap.String("addr", cfg.ListenAddr), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("graceful shutdown failed", zap.Error(err))
	}
	zl.Info("server exited")
}

// openStore 返回文档存储与账号表所在的 gorm 连接。
// redis 后端没有关系表，账号仍然落在 DATABASE_PATH 指向的 SQLite 文件里。
func openStore(ctx context.Context, cfg config.AppConfig) (store.Store, *gorm.DB, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		kv, err := kvstore.Open(ctx, kvstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		accountDB, err := db.Open(ctx, db.Config{Driver: db.DriverSQLite, Path: cfg.DatabasePath})
		if err != nil {
			kv.Close()
			return nil, nil, nil, err
		}
		return kv, accountDB.Gorm(), func() {
			kv.Close()
			accountDB.Close()
		}, nil
	case config.BackendPostgres:
		pg, err := db.Open(ctx, db.Config{Driver: db.DriverPostgres, DSN: cfg.DatabaseDSN})
		if err != nil {
			return nil, nil, nil, err
		}
		return pg, pg.Gorm(), func() { pg.Close() }, nil
	default:
		lite, err := db.Open(ctx, db.Config{Driver: db.DriverSQLite, Path: cfg.DatabasePath})
		if err != nil {
			return nil, nil, nil, err
		}
		return lite, lite.Gorm(), func() { lite.Close() }, nil
	}
}

func newUploader(cfg config.AppConfig) (upload.Uploader, error) {
	if cfg.UploadBackend == config.UploadOSS {
		u, err := upload.NewOSSUploader(upload.OSSConfig{
			Endpoint:        cfg.OSS.Endpoint,
			AccessKeyID:     cfg.OSS.AccessKeyID,
			AccessKeySecret: cfg.OSS.AccessKeySecret,
			BucketName:      cfg.OSS.BucketName,
			PublicBaseURL:   cfg.OSS.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	return upload.NewLocalUploader(cfg.UploadDir, cfg.UploadURLPath), nil
}
