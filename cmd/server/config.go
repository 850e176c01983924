package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Skufu/bloodpanel/internal/classifier"
	"github.com/Skufu/bloodpanel/internal/dataset"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	TrainingSourceCSV      = "csv"
	TrainingSourcePostgres = "postgres"
)

type Config struct {
	Port        string
	GinMode     string
	DatabaseURL string
	EnableDB    bool

	TrainingSource   string
	TrainingDataPath string
	TrainingTable    string

	ClassifierMode   classifier.Mode
	ForestTrees      int
	ForestSeed       int64
	SplitSeed        int64
	TestSize         float64
	ModelCacheSize   int
	TrainConcurrency int

	AnalyzeTimeout   time.Duration
	AnalyzeRateLimit float64
	AnalyzeRateBurst int
	MaxBodyBytes     int64
	CORSOrigins      []string

	LogLevel  string
	LogFormat string
}

func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "5000"),
		GinMode:          getEnv("GIN_MODE", "release"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		EnableDB:         strings.EqualFold(getEnv("ENABLE_DB", "false"), "true"),
		TrainingSource:   strings.ToLower(getEnv("TRAINING_SOURCE", TrainingSourceCSV)),
		TrainingDataPath: os.Getenv("TRAINING_DATA_PATH"),
		TrainingTable:    getEnv("TRAINING_TABLE", dataset.DefaultTableName),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}

	mode, err := classifier.ParseMode(getEnv("CLASSIFIER_MODE", string(classifier.ModeRetrain)))
	if err != nil {
		return nil, err
	}
	cfg.ClassifierMode = mode

	if cfg.ForestTrees, err = getEnvInt("FOREST_TREES", 100); err != nil {
		return nil, err
	}
	if cfg.ForestSeed, err = getEnvInt64("FOREST_SEED", 0); err != nil {
		return nil, err
	}
	if cfg.SplitSeed, err = getEnvInt64("SPLIT_SEED", classifier.DefaultSplitSeed); err != nil {
		return nil, err
	}
	if cfg.TestSize, err = getEnvFloat("TEST_SIZE", classifier.DefaultTestSize); err != nil {
		return nil, err
	}
	if cfg.ModelCacheSize, err = getEnvInt("MODEL_CACHE_SIZE", 0); err != nil {
		return nil, err
	}
	if cfg.TrainConcurrency, err = getEnvInt("TRAIN_CONCURRENCY", runtime.NumCPU()); err != nil {
		return nil, err
	}
	if cfg.AnalyzeTimeout, err = getEnvDuration("ANALYZE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.AnalyzeRateLimit, err = getEnvFloat("ANALYZE_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if cfg.AnalyzeRateBurst, err = getEnvInt("ANALYZE_RATE_BURST", 10); err != nil {
		return nil, err
	}
	maxBody, err := getEnvInt("MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxBodyBytes = int64(maxBody)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return fmt.Errorf("GIN_MODE must be %s, %s or %s, got %q", gin.DebugMode, gin.ReleaseMode, gin.TestMode, c.GinMode)
	}
	if c.EnableDB && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	switch c.TrainingSource {
	case TrainingSourceCSV:
	case TrainingSourcePostgres:
		if !c.EnableDB {
			return fmt.Errorf("TRAINING_SOURCE=postgres requires ENABLE_DB=true")
		}
	default:
		return fmt.Errorf("unknown TRAINING_SOURCE %q", c.TrainingSource)
	}
	if c.ForestTrees <= 0 {
		return fmt.Errorf("FOREST_TREES must be positive, got %d", c.ForestTrees)
	}
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return fmt.Errorf("TEST_SIZE must be between 0 and 1, got %v", c.TestSize)
	}
	if c.TrainConcurrency <= 0 {
		return fmt.Errorf("TRAIN_CONCURRENCY must be positive, got %d", c.TrainConcurrency)
	}
	if c.AnalyzeTimeout <= 0 {
		return fmt.Errorf("ANALYZE_TIMEOUT must be positive, got %s", c.AnalyzeTimeout)
	}
	if c.AnalyzeRateLimit < 0 {
		return fmt.Errorf("ANALYZE_RATE_LIMIT must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin")
	}
	return nil
}

func (c *Config) classifierOptions() classifier.Options {
	return classifier.Options{
		Mode:        c.ClassifierMode,
		Trees:       c.ForestTrees,
		ForestSeed:  c.ForestSeed,
		SplitSeed:   c.SplitSeed,
		TestSize:    c.TestSize,
		CacheSize:   c.ModelCacheSize,
		Concurrency: c.TrainConcurrency,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, val)
	}
	return n, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, val)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, val)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, val)
	}
	return d, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
