package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Get("/health", s.handleHealth)
		r.Post("/sign-up", s.handleSignUp)
		r.Post("/rfid/validate-access", s.handleValidateAccess)
		r.Post("/rfid/create", s.handleCreateGrant)

		// Device-authenticated endpoints. Group middleware runs after
		// routing, so {device_id} is already resolved.
		r.Group(func(r chi.Router) {
			r.Use(s.deviceAuthMiddleware)

			r.Get("/rfid/rooms/{room_id}", s.handleListRoomGrants)
			r.Post("/rfid/sync", s.handleSync)

			r.Get("/devices/{device_id}", s.handleGetDevice)
			r.Post("/devices/{device_id}/telemetry", s.handleTelemetry)

			r.Get("/monitoring/rooms/{room_id}/devices", s.handleListRoomDevices)

			r.Get("/system/stats", s.handleSystemStats)
			r.Get("/audit", s.handleListAuditLogs)

			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth reports whether the node can serve requests. Storage is the
// only hard dependency; MQTT and InfluxDB are reported but never fail it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("health check: database unavailable", "error", err)
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "unavailable"
		} else {
			body["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		body["mqtt_connected"] = s.mqtt.IsConnected()
	}
	if s.influx != nil {
		body["influxdb_connected"] = s.influx.IsConnected()
	}

	writeJSON(w, status, body)
}
