// Package handler exposes the hostel attendance HTTP API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hostelattendance/internal/attendance"
	"hostelattendance/internal/audit"
	"hostelattendance/internal/auth"
	"hostelattendance/internal/httpmiddleware"
	"hostelattendance/internal/identity"
	"hostelattendance/internal/logging"
	"hostelattendance/internal/validation"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck = func(ctx context.Context) bool

// Config wires the router.
type Config struct {
	People     *identity.Service
	Attendance *attendance.Service
	Audit      audit.Store
	Issuer     *auth.Issuer
	Logger     *zap.Logger

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer     prometheus.Gatherer
	Health       map[string]HealthCheck
	CORSOrigins  []string
	RateLimitMin int
}

// Handler holds the dependencies of the route handlers.
type Handler struct {
	people     *identity.Service
	attendance *attendance.Service
	audit      audit.Store
	issuer     *auth.Issuer
	logger     *zap.Logger
}

// New builds the gin engine with every route registered.
func New(cfg Config) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		people:     cfg.People,
		attendance: cfg.Attendance,
		audit:      cfg.Audit,
		issuer:     cfg.Issuer,
		logger:     logger,
	}
	validation.RegisterGin()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinLogger(logger, "/healthz", "/metrics"))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(corsMiddleware(cfg.CORSOrigins))
	}
	r.Use(httpmiddleware.SecurityHeaders())

	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/healthz", healthz(cfg.Health))

	// Login, registration and badge scans are the brute-forceable routes.
	var limited []gin.HandlerFunc
	if cfg.RateLimitMin > 0 {
		limited = append(limited, httpmiddleware.NewTokenBucket(0, cfg.RateLimitMin).Middleware())
	}

	requireAuth := auth.RequireAuth(h.issuer)
	requireAdmin := auth.RequireRole(identity.RoleAdmin)

	api := r.Group("/api")

	authGroup := api.Group("/auth", limited...)
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", h.login)
	api.GET("/auth/me", requireAuth, h.me)

	att := api.Group("/attendance", requireAuth)
	att.POST("/mark", h.mark)
	att.GET("/my", h.myHistory)
	att.GET("/qr", h.qr)

	staff := att.Group("", requireAdmin)
	staff.POST("/scan", append(limited, h.scan)...)
	staff.GET("/all", h.listAll)
	staff.GET("/filter", h.listAll)
	staff.GET("/stats", h.stats)
	staff.GET("/export/:format", h.export)

	admin := api.Group("/admin", requireAuth, requireAdmin)
	admin.GET("/users", h.listUsers)
	admin.GET("/users/:id", h.getUser)
	admin.PUT("/users/:id", h.updateUser)
	admin.DELETE("/users/:id", h.deleteUser)
	admin.GET("/attendance", h.listAll)
	admin.GET("/attendance/:userId", h.userAttendance)
	admin.GET("/audit", h.auditTrail)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		body := gin.H{}
		status := http.StatusOK
		for name, check := range checks {
			ok := check(ctx)
			body[name] = ok
			if !ok {
				status = http.StatusServiceUnavailable
			}
		}
		if status == http.StatusOK {
			body["status"] = "ok"
		} else {
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	}
}
