package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/wcag-monitor/internal/api/router"
	"github.com/wcag-monitor/internal/auth"
	"github.com/wcag-monitor/internal/database"
	"github.com/wcag-monitor/internal/metrics"
	"github.com/wcag-monitor/internal/report"
	"github.com/wcag-monitor/internal/scanner"
	"github.com/wcag-monitor/internal/scheduler"
	"github.com/wcag-monitor/internal/store"
	"github.com/wcag-monitor/internal/worker"
	"github.com/wcag-monitor/pkg/config"
	"github.com/wcag-monitor/pkg/logger"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(&cfg.Logger, "web")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync()

	db, err := database.InitDB(&cfg.Database, logr)
	if err != nil {
		logr.Fatal("database init failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	engine, err := scanner.NewChromeEngine(&cfg.Scanner, logr)
	if err != nil {
		logr.Fatal("scanner init failed", zap.Error(err))
	}
	defer engine.Close()

	users := store.NewUserStore(db, logr)
	tasks := store.NewTaskStore(db, logr)
	results := store.NewResultStore(db, logr)
	executor := worker.NewExecutor(tasks, results, engine, m, logr)
	runner := worker.NewRunner(executor, cfg.Scheduler.Workers, logr)

	deps := router.Dependencies{
		Config:   cfg,
		Log:      logr,
		DB:       db,
		Users:    users,
		Tasks:    tasks,
		Results:  results,
		Runner:   executor,
		Tokens:   auth.NewJWTManager(&cfg.Auth),
		Hasher:   auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		PDF:      report.NewPDFRenderer(cfg.Report.FontPath),
		Metrics:  m,
		Gatherer: reg,
	}
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer queue.Close()
		deps.Redis = rdb
		deps.Queue = queue
	} else {
		logr.Info("redis not configured, background runs disabled")
	}

	var sched *scheduler.Scheduler
	if !cfg.App.IsTest() {
		sched, err = scheduler.New(&cfg.Scheduler, tasks, runner, m, logr)
		if err != nil {
			logr.Fatal("scheduler init failed", zap.Error(err))
		}
		sched.Start()
	}

	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router.SetupRouter(deps),
	}
	go func() {
		logr.Info("server is running", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	if sched != nil {
		if err := sched.Stop(ctx); err != nil {
			logr.Warn("scheduler did not stop in time", zap.Error(err))
		}
	}
}
