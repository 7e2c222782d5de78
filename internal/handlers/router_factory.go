package handlers

import (
	"context"
	"net/http"
	"time"

	"bugtracker/internal/config"
	"bugtracker/internal/middleware"
	"bugtracker/internal/observability"
	"bugtracker/internal/serviceinterfaces"
	"bugtracker/internal/version"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// RouterDeps are the services the HTTP API is built from
type RouterDeps struct {
	Config     *config.Config
	BugService serviceinterfaces.BugServiceInterface
	Schemas    *middleware.SchemaLoader
	Logger     *observability.Logger
}

// NewRouter creates the gin engine with all middleware and routes
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	schemas := deps.Schemas
	if schemas == nil {
		loaded, err := middleware.DefaultSchemaLoader()
		if err != nil {
			panic(err)
		}
		schemas = loaded
	}

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}
	RegisterValidators()

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(middleware.ErrorRecoveryMiddleware(logger, nil))
	router.Use(requestLogger(logger))

	// Health check before tracing so probes do not create spans
	router.GET("/health", healthHandler(deps.BugService))

	router.Use(observability.GinMiddleware(cfg.OpenTelemetry.ServiceName))
	router.Use(observability.GinErrorAnnotator())

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", config.ActorHeader, config.SessionHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	router.Use(middleware.MaxBodySize(cfg.Server.MaxBodyBytes))
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	router.Use(middleware.ActorContext(cfg.Server.DefaultActor))

	bugHandler := NewBugHandler(deps.BugService, cfg, logger)
	aiHandler := NewAIHandler(deps.BugService, logger)
	routeListing := NewRouteListingHandler(cfg.OpenTelemetry.ServiceName)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, version.Get(cfg.OpenTelemetry.ServiceName))
		})
		v1.GET("/routes", routeListing.GetRouteListingJSON)

		bugs := v1.Group("/bugs")
		{
			bugs.POST("", bugHandler.SubmitReport)
			bugs.GET("", bugHandler.ListOpen)
			bugs.GET("/assignable", bugHandler.ListAssignable)
			bugs.GET("/mine", bugHandler.MyOpenBugs)
			bugs.GET("/testing", bugHandler.TestingQueue)
			bugs.GET("/dashboard", bugHandler.TeamDashboard)
			bugs.GET("/audit", bugHandler.AuditResolved)
			bugs.POST("/assign", middleware.RequestValidationMiddleware(schemas, middleware.SchemaAssign, logger), bugHandler.AssignBulk)
			bugs.POST("/progress", middleware.RequestValidationMiddleware(schemas, middleware.SchemaProgressUpdate, logger), bugHandler.UpdateProgress)

			bugs.GET("/:id", bugHandler.GetReport)
			bugs.PUT("/:id/severity", bugHandler.SetSeverity)
			bugs.PUT("/:id/category", bugHandler.SetCategory)
			bugs.PUT("/:id/status", bugHandler.SetStatus)
			bugs.POST("/:id/fix", bugHandler.MarkFixed)
			bugs.POST("/:id/resolve", bugHandler.Resolve)
			bugs.POST("/:id/send-back", bugHandler.SendBack)
			bugs.POST("/:id/dismiss", bugHandler.Dismiss)
			bugs.POST("/:id/linear", bugHandler.ExportLinear)
		}

		ai := v1.Group("/ai")
		{
			ai.GET("/bugs", aiHandler.Feed)
			ai.POST("/bugs/updates", middleware.RequestValidationMiddleware(schemas, middleware.SchemaAIBulkUpdate, logger), aiHandler.BulkUpdate)
		}

		v1.GET("/docs", ListDocs)
		v1.GET("/docs/:name", ReadDoc)
	}

	router.NoRoute(func(c *gin.Context) {
		StandardizeHTTPError(c, http.StatusNotFound, "Endpoint not found", c.Request.Method+" "+c.Request.URL.Path)
	})

	routeListing.CollectRoutes(router)
	return router
}

// healthHandler reports liveness and whether the store answers a ping
func healthHandler(bugService serviceinterfaces.BugServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), config.DatabasePingTimeout)
		defer cancel()

		if err := bugService.Ping(ctx); err != nil {
			HandleAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": config.DefaultServiceName, "version": version.Version})
	}
}

// requestLogger logs one line per request at a level matching the status code
func requestLogger(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if actor := c.GetString(middleware.ActorKey); actor != "" {
			fields["actor"] = actor
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	}
}
