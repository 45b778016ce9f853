package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/subtrack/backend/internal/domain/shared"
	"github.com/subtrack/backend/internal/infrastructure/auth"
	"github.com/subtrack/backend/internal/infrastructure/config"
	"github.com/subtrack/backend/internal/infrastructure/logger"
	"github.com/subtrack/backend/internal/interfaces/http/dto"
	"github.com/subtrack/backend/internal/interfaces/http/handler"
	"github.com/subtrack/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the HTTP layer is built from
type Dependencies struct {
	Config              *config.Config
	Logger              *zap.Logger
	JWTService          *auth.JWTService
	TokenBlacklist      auth.TokenBlacklist
	AuthHandler         *handler.AuthHandler
	SubscriptionHandler *handler.SubscriptionHandler
	HealthHandler       *handler.HealthHandler
	// Meter records HTTP server metrics when set
	Meter metric.Meter
}

// NewEngine builds the gin engine with the full middleware chain and every
// route. The returned func stops the rate limiter cleanup goroutines.
func NewEngine(deps Dependencies) (*gin.Engine, func(), error) {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if err := middleware.SetupValidator(); err != nil {
		return nil, nil, err
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(shared.CodeNotFound, "Route not found", middleware.GetRequestID(c)))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest, "Method not allowed", middleware.GetRequestID(c)))
	})

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	security := middleware.DefaultSecurityConfig()
	security.HSTSEnabled = cfg.App.IsProduction()

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			Enabled:     cfg.Telemetry.Enabled,
			ServiceName: cfg.Telemetry.ServiceName,
		}),
		middleware.SpanEnricher(),
		logger.GinMiddleware(log),
		middleware.CORSWithConfig(cors),
		middleware.SecureWithConfig(security),
		middleware.BodyLimit(middleware.DefaultMaxBodyBytes),
	)

	if deps.Meter != nil {
		httpMetrics, err := middleware.HTTPMetrics(deps.Meter)
		if err != nil {
			return nil, nil, err
		}
		engine.Use(httpMetrics)
	}

	var stops []func()
	stop := func() {
		for _, s := range stops {
			s()
		}
	}

	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		stops = append(stops, limiter.Stop)
		engine.Use(middleware.RateLimit(limiter))
	}

	health := engine.Group("/health")
	health.GET("", deps.HealthHandler.Health)
	health.GET("/ready", deps.HealthHandler.Ready)

	jwtAuth := middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:     deps.JWTService,
		TokenBlacklist: deps.TokenBlacklist,
		Logger:         log,
	})

	public := NewDomainGroup("auth", "/auth")
	if cfg.HTTP.RateLimitEnabled {
		authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		stops = append(stops, authLimiter.Stop)
		public.Use(middleware.RateLimit(authLimiter))
	}
	public.
		POST("/register", deps.AuthHandler.Register).
		POST("/login", deps.AuthHandler.Login).
		POST("/refresh", deps.AuthHandler.Refresh)

	session := NewDomainGroup("session", "/auth").Use(jwtAuth)
	session.
		POST("/logout", deps.AuthHandler.Logout).
		GET("/me", deps.AuthHandler.Me)

	subs := NewDomainGroup("subscriptions", "/subscriptions").Use(jwtAuth)
	subs.
		POST("", deps.SubscriptionHandler.Create).
		GET("", deps.SubscriptionHandler.List).
		GET("/active", deps.SubscriptionHandler.ListActive).
		GET("/cost/monthly", deps.SubscriptionHandler.MonthlyCost).
		GET("/:id", deps.SubscriptionHandler.Get).
		PUT("/:id", deps.SubscriptionHandler.Update).
		DELETE("/:id", deps.SubscriptionHandler.Cancel)

	NewRouter(engine, WithAPIVersion("v1")).
		Register(public).
		Register(session).
		Register(subs).
		Setup()

	return engine, stop, nil
}
