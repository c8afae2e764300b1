package handler

import (
	"strings"

	"github.com/deLKM/Genteblog/internal/metrics"
	"github.com/deLKM/Genteblog/internal/service"
	"github.com/deLKM/Genteblog/internal/upload"
	"go.uber.org/zap"
)

// Services 汇总处理器依赖的服务。
type Services struct {
	Posts        *service.PostService
	Interactions *service.InteractionService
	Comments     *service.CommentService
	Stats        *service.StatsService
	Profiles     *service.ProfileService
	Backup       *service.BackupService
	Retention    *service.RetentionService
	Auth         *service.AuthService
	// Uploader 用于头像与正文图片上传，可为空。
	Uploader upload.Uploader
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	// AdminEmail 对应的账号可以访问备份与维护接口。
	AdminEmail string
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	posts        *service.PostService
	interactions *service.InteractionService
	comments     *service.CommentService
	stats        *service.StatsService
	profiles     *service.ProfileService
	backup       *service.BackupService
	retention    *service.RetentionService
	auth         *service.AuthService
	uploader     upload.Uploader
	log          *zap.Logger
	metrics      *metrics.Metrics
	adminEmail   string
}

// NewAPI constructs a handler set with shared services.
func NewAPI(s Services) *API {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		posts:        s.Posts,
		interactions: s.Interactions,
		comments:     s.Comments,
		stats:        s.Stats,
		profiles:     s.Profiles,
		backup:       s.Backup,
		retention:    s.Retention,
		auth:         s.Auth,
		uploader:     s.Uploader,
		log:          log,
		metrics:      s.Metrics,
		adminEmail:   strings.ToLower(strings.TrimSpace(s.AdminEmail)),
	}
}

// Metrics exposes the collector set for the /metrics route.
func (a *API) Metrics() *metrics.Metrics {
	return a.metrics
}
