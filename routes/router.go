package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yatube/yatube/config"
	"github.com/yatube/yatube/controllers"
	"github.com/yatube/yatube/middleware"
	"github.com/yatube/yatube/store"
	"github.com/yatube/yatube/utils"
)

// SetupRouter wires routes, middlewares, and controllers. The page cache is
// passed in so the index handler and tests control its lifetime explicitly.
func SetupRouter(db *gorm.DB, cache utils.PageCache) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Request logging goes to its own rolling file, away from the app log.
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static("/static", "./static")

	st := store.New(db)
	authController := controllers.NewAuthController(st)
	postController := controllers.NewPostController(st, cache)
	followController := controllers.NewFollowController(st)

	// Public feeds
	r.GET("/", postController.Index)
	r.GET("/group/:slug/", postController.GroupFeed)
	r.GET("/profile/:username/", middleware.Identify(), postController.Profile)
	r.GET("/posts/:id/", postController.PostDetail)

	// Authenticated pages; anonymous callers bounce to the login page with
	// a next parameter pointing back here.
	pages := r.Group("")
	pages.Use(middleware.LoginRequired())
	pages.POST("/create/", postController.CreatePost)
	pages.POST("/posts/:id/edit/", postController.EditPost)
	pages.POST("/posts/:id/delete/", postController.DeletePost)
	pages.POST("/posts/:id/comment/", postController.AddComment)
	pages.GET("/follow/", followController.Feed)
	pages.GET("/profile/:username/follow/", followController.Follow)
	pages.GET("/profile/:username/unfollow/", followController.Unfollow)

	authGroup := r.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/signup/", authController.Register)
	authGroup.GET("/login/", authController.LoginPage)
	authGroup.POST("/login/", authController.Login)
	authGroup.GET("/oauth/github/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/github/callback", authController.OAuthCallback)
	authGroup.POST("/logout/", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me/", middleware.AuthRequired(), authController.Me)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "page not found")
	})

	return r
}
