package main

import (
	"log"

	"github.com/hibiken/asynq"
	"github.com/wcag-monitor/internal/database"
	"github.com/wcag-monitor/internal/scanner"
	"github.com/wcag-monitor/internal/store"
	"github.com/wcag-monitor/internal/worker"
	"github.com/wcag-monitor/pkg/config"
	"github.com/wcag-monitor/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(&cfg.Logger, "worker")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync()

	if !cfg.Redis.Enabled() {
		logr.Fatal("redis.addr is required to run the worker")
	}

	db, err := database.InitDB(&cfg.Database, logr)
	if err != nil {
		logr.Fatal("database init failed", zap.Error(err))
	}
	logr.Info("worker database connected")

	engine, err := scanner.NewChromeEngine(&cfg.Scanner, logr)
	if err != nil {
		logr.Fatal("scanner init failed", zap.Error(err))
	}
	defer engine.Close()

	tasks := store.NewTaskStore(db, logr)
	results := store.NewResultStore(db, logr)
	executor := worker.NewExecutor(tasks, results, engine, nil, logr)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB},
		asynq.Config{
			// separate from the web process's scheduled batch pool
			Concurrency: cfg.Worker.Concurrency,
			Logger:      logr.Sugar(),
		},
	)

	mux := asynq.NewServeMux()
	worker.NewTaskProcessor(executor, logr).Register(mux)

	logr.Info("worker started, waiting for tasks", zap.Int("concurrency", cfg.Worker.Concurrency))
	if err := srv.Run(mux); err != nil {
		logr.Fatal("worker server failed", zap.Error(err))
	}
}
