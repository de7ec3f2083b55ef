package router

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/wcag-monitor/internal/api/handler"
	"github.com/wcag-monitor/internal/api/middleware"
	"github.com/wcag-monitor/internal/api/validator"
	"github.com/wcag-monitor/internal/auth"
	"github.com/wcag-monitor/internal/metrics"
	"github.com/wcag-monitor/internal/report"
	"github.com/wcag-monitor/internal/store"
	"github.com/wcag-monitor/internal/worker"
	"github.com/wcag-monitor/pkg/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies are the collaborators the HTTP layer needs. Redis, Queue,
// Metrics and Gatherer are optional.
type Dependencies struct {
	Config   *config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	Users    *store.UserStore
	Tasks    *store.TaskStore
	Results  *store.ResultStore
	Runner   worker.TaskRunner
	Queue    handler.Enqueuer
	Tokens   *auth.JWTManager
	Hasher   *auth.PasswordHasher
	PDF      *report.PDFRenderer
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func SetupRouter(deps Dependencies) *gin.Engine {
	validator.Register()

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.LoggerMiddleware(deps.Log))
	router.Use(gin.Recovery())
	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
	}
	router.Use(cors.New(corsConfig(deps.Config.Server.CORSOrigins)))

	healthHandler := handler.NewHealthHandler(deps.DB, deps.Redis)
	authHandler := handler.NewAuthHandler(deps.Users, deps.Tokens, deps.Hasher, deps.Log)
	taskHandler := handler.NewTaskHandler(deps.Tasks, deps.Results, deps.Runner, deps.Queue, deps.Config.Quota, deps.Log)
	resultHandler := handler.NewResultHandler(deps.Tasks, deps.Results)
	reportHandler := handler.NewReportHandler(deps.Tasks, deps.Results, deps.PDF)

	router.GET("/", healthHandler.Info)
	router.GET("/api", healthHandler.Info)
	router.GET("/health", healthHandler.Health)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	requireAuth := middleware.Auth(deps.Tokens, deps.Users)
	runLimiter := middleware.NewUserRateLimiter(deps.Config.RateLimit.ManualRunsPerMinute, deps.Config.RateLimit.Burst)

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.Signup)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.GET("/me", requireAuth, authHandler.Me)
			authGroup.PATCH("/profile", requireAuth, authHandler.UpdateProfile)
			authGroup.PATCH("/password", requireAuth, authHandler.ChangePassword)
		}

		tasks := apiV1.Group("/tasks", requireAuth)
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.GET("/results", resultHandler.ListResults)
			tasks.GET("/stats", taskHandler.Stats)
			tasks.GET("/:taskId", taskHandler.GetTask)
			tasks.PATCH("/:taskId", taskHandler.UpdateTask)
			tasks.DELETE("/:taskId", taskHandler.DeleteTask)
			tasks.POST("/:taskId/run", runLimiter.Middleware(), taskHandler.RunTask)
			tasks.GET("/:taskId/results", resultHandler.ListTaskResults)
			tasks.GET("/:taskId/results/:resultId", resultHandler.GetTaskResult)
			tasks.GET("/:taskId/trend", resultHandler.Trend)
			tasks.GET("/:taskId/report", reportHandler.Report)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Location", "Content-Disposition", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
