// Package server assembles the HTTP router.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"skincheck-back/internal/accounts"
	"skincheck-back/internal/auth"
	"skincheck-back/internal/config"
	"skincheck-back/internal/database"
	"skincheck-back/internal/handlers"
	"skincheck-back/internal/insights"
	"skincheck-back/internal/middleware"
	"skincheck-back/internal/uploads"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *gorm.DB
	Redis    *redis.Client // optional
	Issuer   *auth.Issuer
	Revoker  *auth.Revoker
	Accounts *accounts.Service
	Uploads  *uploads.Service
	Insights *insights.Service
	// MediaDir is served under storage.public_url when images live on local disk.
	MediaDir string
}

type route struct {
	method  string
	path    string
	auth    bool
	handler gin.HandlerFunc
}

func routes(d Deps) []route {
	log := d.Logger
	return []route{
		{http.MethodPost, "/auth/register", false, handlers.Register(d.Accounts, log)},
		{http.MethodPost, "/auth/login", false, handlers.Login(d.Accounts, log)},
		{http.MethodPost, "/auth/verify-otp", false, handlers.VerifyOTP(d.Accounts, log)},
		{http.MethodPost, "/auth/resend-otp", false, handlers.ResendOTP(d.Accounts, log)},
		{http.MethodGet, "/auth/profile", true, handlers.GetProfile(d.Accounts, log)},
		{http.MethodPut, "/auth/profile", true, handlers.UpdateProfile(d.Accounts, log)},
		{http.MethodPost, "/auth/logout", true, handlers.Logout(d.Accounts)},

		{http.MethodPost, "/uploads", true, handlers.UploadImage(d.Uploads, log)},
		{http.MethodGet, "/uploads", true, handlers.ListUploads(d.Uploads, log)},
		{http.MethodGet, "/uploads/statistics", true, handlers.UploadStatistics(d.Insights, log)},
		{http.MethodDelete, "/uploads/clear-history", true, handlers.ClearHistory(d.Uploads, log)},
		{http.MethodGet, "/uploads/:id", true, handlers.GetUpload(d.Uploads, log)},
		{http.MethodDelete, "/uploads/:id", true, handlers.DeleteUpload(d.Uploads, log)},

		{http.MethodGet, "/analysis/dashboard-stats", true, handlers.DashboardStats(d.Insights, log)},
		{http.MethodGet, "/analysis/trends", true, handlers.Trends(d.Insights, log)},
		{http.MethodGet, "/analysis/risk-assessment", true, handlers.RiskAssessment(d.Insights, log)},
	}
}

// NewRouter builds the gin engine with middleware, API routes, health and metrics endpoints.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.CORS(d.Config.App.CORSOrigins))
	if d.Config.App.MetricsEnabled {
		r.Use(middleware.Metrics())
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	r.GET("/healthz", healthz(d.DB, d.Redis))

	if d.MediaDir != "" && strings.HasPrefix(d.Config.Storage.PublicURL, "/") {
		r.Static(d.Config.Storage.PublicURL, d.MediaDir)
	}

	api := r.Group("/api")
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(d.Issuer, d.Revoker))

	table := routes(d)
	catalogue := make([]handlers.Endpoint, 0, len(table))
	for _, rt := range table {
		group := api
		if rt.auth {
			group = protected
		}
		group.Handle(rt.method, rt.path, rt.handler)
		catalogue = append(catalogue, handlers.Endpoint{Method: rt.method, Path: "/api" + rt.path, Auth: rt.auth})
	}
	api.GET("", handlers.APIRoot(catalogue))

	return r
}

func healthz(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := database.Ping(ctx, db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "database": err.Error()})
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "redis": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
