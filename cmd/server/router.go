package main

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Skufu/bloodpanel/internal/classifier"
	"github.com/Skufu/bloodpanel/internal/panel"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// Predictor is the part of classifier.Service the handlers depend on.
type Predictor interface {
	Predict(ctx context.Context, input panel.Measurements) (int, error)
	Ready() bool
	Mode() classifier.Mode
}

func setupRouter(cfg *Config, db HealthChecker, predictor Predictor, logger logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(
		requestID(),
		requestLogger(logger),
		gin.CustomRecoveryWithWriter(nil, recoverPanic(logger)),
		limitBodySize(cfg.MaxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins:  cfg.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders: []string{requestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		dbStatus := databaseStatus(c.Request.Context(), db)
		modelStatus := "ok"
		if !predictor.Ready() {
			modelStatus = "not trained"
		}

		if (dbStatus != "ok" && dbStatus != "disabled") || modelStatus != "ok" {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "degraded",
				"db":         dbStatus,
				"classifier": modelStatus,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"db":         dbStatus,
			"classifier": modelStatus,
		})
	})

	h := &handlers{
		predictor: predictor,
		timeout:   cfg.AnalyzeTimeout,
		log:       logger,
	}

	api := router.Group("/api")
	api.GET("/health", h.health)
	api.GET("/health/detailed", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"services": gin.H{
				"database": databaseStatus(c.Request.Context(), db),
				"classifier": gin.H{
					"mode":  predictor.Mode(),
					"ready": predictor.Ready(),
				},
				"training_source": cfg.TrainingSource,
			},
		})
	})
	api.POST("/analyze", rateLimit(cfg.AnalyzeRateLimit, cfg.AnalyzeRateBurst), h.analyze)
	api.POST("/parse-pdf", h.parsePDF)

	return router
}

func databaseStatus(ctx context.Context, db HealthChecker) string {
	if db == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Sprintf("unhealthy: %v", err)
	}
	return "ok"
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start),
			"client_ip":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}

// recoverPanic replaces gin's stderr dump with a logrus entry. It sits inside
// requestLogger, which then records the 500 for the same request.
func recoverPanic(logger logrus.FieldLogger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"panic":      fmt.Sprint(recovered),
			"stack":      string(debug.Stack()),
		}).Error("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server error: internal error"})
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// rateLimit shares one token bucket across all callers. A non-positive limit
// disables it.
func rateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
