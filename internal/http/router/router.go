package router

import (
	"context"
	"net/http"
	"time"

	apphttp "listing_leads_backend/internal/http"
	"listing_leads_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// New builds the gin engine and lets every module mount its routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	limiter := httpkit.NewIngestRateLimiter(app.Config.GetIngestRatePerMinute(), app.Logger)
	auth := httpkit.AuthRequired(app.Config)

	v1 := engine.Group("/api/v1")
	public := v1.Group("")
	public.Use(limiter.RateLimit())
	protected := v1.Group("")
	protected.Use(auth)
	admin := v1.Group("/admin")
	admin.Use(auth, httpkit.RequireRole(httpkit.RoleAdmin))

	rc := &apphttp.RouterContext{
		Engine:         engine,
		V1:             v1,
		Public:         public,
		Protected:      protected,
		Admin:          admin,
		Config:         app.Config,
		AuthMiddleware: auth,
		IngestLimiter:  limiter,
	}
	for _, m := range app.Modules {
		m.RegisterRoutes(rc)
		app.Logger.Info("module routes registered", "module", m.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Webhook-API-Key", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = cfg.GetCORSOrigins()
	}
	return c
}
