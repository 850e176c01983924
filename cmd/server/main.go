package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skufu/bloodpanel/internal/classifier"
	"github.com/Skufu/bloodpanel/internal/dataset"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()
	var db HealthChecker
	var pool *pgxpool.Pool
	if cfg.EnableDB {
		pool, err = connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("database connection failed: %v", err)
		}
		defer pool.Close()
		db = pool
	}

	source := trainingSource(cfg, pool)
	svc, err := classifier.New(source, cfg.classifierOptions(), logger.WithField("component", "classifier"))
	if err != nil {
		logger.Fatalf("classifier setup failed: %v", err)
	}
	if err := svc.Warm(ctx); err != nil {
		logger.Fatalf("classifier warm-up failed: %v", err)
	}
	if m := svc.Current(); m != nil {
		logger.WithFields(logrus.Fields{
			"accuracy":   m.Accuracy,
			"train_rows": m.TrainRows,
			"duration":   m.Duration,
		}).Info("pretrained model ready")
	}

	router := setupRouter(cfg, db, svc, logger)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.AnalyzeTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	logger.WithFields(logrus.Fields{
		"port":            cfg.Port,
		"classifier_mode": cfg.ClassifierMode,
		"training_source": fmt.Sprint(source),
	}).Info("server listening")
	waitForShutdown(server, logger)
}

func newLogger(level, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	logger.SetLevel(lvl)

	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be json or text, got %q", format)
	}
	return logger, nil
}

func trainingSource(cfg *Config, pool *pgxpool.Pool) dataset.Source {
	if cfg.TrainingSource == TrainingSourcePostgres {
		return dataset.PostgresSource{DB: pool, Table: cfg.TrainingTable}
	}
	return dataset.CSVSource{Path: cfg.TrainingDataPath}
}

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

func waitForShutdown(server *http.Server, logger logrus.FieldLogger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}
