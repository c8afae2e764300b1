package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/deLKM/Genteblog/internal/handler"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const sessionName = "genteblog_session"

// Options 描述路由层需要的外部配置。
type Options struct {
	SessionSecret string
	// Secure 为 true 时会话 cookie 只走 https。
	Secure      bool
	CORSOrigins []string
	// UploadDir 非空时由进程自己提供本地上传文件。
	UploadDir     string
	UploadURLPath string
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger())

	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept-Language", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Disposition", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store), api.LocaleMiddleware())

	if opts.UploadDir != "" {
		urlPath := opts.UploadURLPath
		if urlPath == "" {
			urlPath = "/static/uploads"
		}
		r.Static(strings.TrimRight(urlPath, "/"), opts.UploadDir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if m := api.Metrics(); m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	apiGroup := r.Group("/api")
	auth := api.AuthRequired()
	admin := api.AdminRequired()

	authRoutes := apiGroup.Group("/auth")
	{
		authRoutes.POST("/signup", api.Signup)
		authRoutes.POST("/login", api.Login)
		authRoutes.POST("/logout", api.Logout)
		authRoutes.GET("/me", auth, api.Me)
		authRoutes.PUT("/profile", auth, api.UpdateProfile)
		authRoutes.PUT("/password", auth, api.ChangePassword)
	}

	posts := apiGroup.Group("/posts")
	{
		posts.POST("", auth, api.SavePost)
		posts.GET("/hot", api.HotPosts)
		posts.GET("/:id", api.GetPost)
		posts.PATCH("/:id/status", auth, api.UpdatePostStatus)
		posts.GET("/:id/revisions", auth, api.ListRevisions)
		posts.POST("/:id/interactions/:type", auth, api.ToggleInteraction)
		posts.GET("/:id/interactions", api.PostInteractions)
		posts.POST("/:id/comments", auth, api.CreateComment)
		posts.GET("/:id/comments", api.ListComments)
		posts.POST("/:id/reconcile", admin, api.ReconcilePost)
	}

	comments := apiGroup.Group("/comments")
	{
		comments.GET("/:id/replies", api.ListReplies)
		comments.POST("/:id/interactions/:type", auth, api.ToggleCommentInteraction)
		comments.PUT("/:id", auth, api.UpdateComment)
		comments.DELETE("/:id", auth, api.DeleteComment)
	}

	users := apiGroup.Group("/users/:uid")
	{
		users.GET("/drafts", auth, api.UserDrafts)
		users.GET("/posts", api.UserPosts)
		users.GET("/stats", api.UserStats)
		users.GET("/profile", api.UserProfile)
		users.GET("/interactions", api.UserInteractions)
	}

	me := apiGroup.Group("/me", auth)
	{
		me.GET("/bookmarks", api.MyBookmarks)
		me.GET("/likes", api.MyLikes)
	}

	apiGroup.POST("/uploads/images", auth, api.UploadImage)

	apiGroup.GET("/backup", admin, api.ExportBackup)
	apiGroup.POST("/backup", admin, api.ImportBackup)
	apiGroup.POST("/maintenance/sweep", admin, api.Sweep)

	return r
}
