package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bookreview-backend/internal/shared/middleware"
	"bookreview-backend/pkg/container"
)

// multipartOverhead is room for the JSON field and headers next to the image.
const multipartOverhead = 1 << 20

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = c.Config.Image.MaxBytes + multipartOverhead

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	// Images written by the local driver are served by the API itself
	if c.LocalImages != nil {
		router.Static("/images", c.LocalImages.Dir())
	}

	api := router.Group("/api")
	{
		api.GET("/health", healthCheckHandler(c))

		c.BookHandler.RegisterRoutes(api, middleware.AuthMiddleware(c.JWTManager))
	}

	return router
}

// ========================================
// HEALTH CHECK
// ========================================

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
		}

		// Check database
		dbStatus := "ok"
		if appCtx.DB == nil || appCtx.DB.Pool == nil {
			dbStatus = "disconnected"
			health["status"] = "degraded"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := appCtx.DB.HealthCheck(ctx); err != nil {
				dbStatus = fmt.Sprintf("error: %v", err)
				health["status"] = "degraded"
			}
		}

		// Check redis; the API keeps serving without it
		redisStatus := "ok"
		if appCtx.Cache == nil {
			redisStatus = "disconnected"
		} else if err := appCtx.Redis.HealthCheck(c.Request.Context()); err != nil {
			redisStatus = fmt.Sprintf("error: %v", err)
		}

		// Check image storage
		storageStatus := "ok"
		if checker, ok := appCtx.Blobs.(healthChecker); ok {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := checker.HealthCheck(ctx); err != nil {
				storageStatus = fmt.Sprintf("error: %v", err)
				health["status"] = "degraded"
			}
		}

		health["services"] = gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
			"storage":  gin.H{"driver": appCtx.Config.Storage.Driver, "status": storageStatus},
		}

		statusCode := http.StatusOK
		if dbStatus != "ok" || storageStatus != "ok" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, health)
	}
}
