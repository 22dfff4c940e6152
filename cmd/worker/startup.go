package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"bookreview-backend/pkg/container"
)

const healthAddr = ":9999"

type HealthChecker struct {
	c *container.Container
}

// startServices runs the startup checks and exposes the probe endpoints.
func startServices(c *container.Container) error {
	log.Info().Msg("============================================")
	log.Info().Msg("🚀 Book Review Worker Starting...")
	log.Info().Msg("============================================")

	checker := &HealthChecker{c: c}
	if err := checker.checkAll(); err != nil {
		return err
	}

	go startHealthCheckServer(checker)
	return nil
}

func (h *HealthChecker) checkAll() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"Redis Connection", h.checkRedis},
		{"Database Connection", h.checkDatabase},
	}

	for _, check := range checks {
		log.Info().Msgf("⏳ Checking %s...", check.name)
		if err := check.fn(); err != nil {
			log.Error().Err(err).Msgf("❌ %s", check.name)
			return fmt.Errorf("%s failed: %w", check.name, err)
		}
		log.Info().Msgf("✓ %s: OK", check.name)
	}
	return nil
}

// checkRedis is mandatory here: asynq cannot run without it.
func (h *HealthChecker) checkRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.c.Redis.Ping(ctx)
}

func (h *HealthChecker) checkDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.c.DB.HealthCheck(ctx)
}

func startHealthCheckServer(h *HealthChecker) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, `{"status":"UP","service":"bookreview-worker"}`)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := h.checkAll(); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, `{"status":"NOT_READY"}`)
			return
		}
		writeStatus(w, http.StatusOK, `{"status":"READY"}`)
	})

	log.Info().Str("addr", healthAddr).Msg("[Health] Starting health check server")
	if err := http.ListenAndServe(healthAddr, mux); err != nil {
		log.Error().Err(err).Msg("[Health] Failed to start")
	}
}

func writeStatus(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
