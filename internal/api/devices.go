package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fog-access-core/internal/auth"
	"github.com/nerrad567/fog-access-core/internal/device"
	"github.com/nerrad567/fog-access-core/internal/events"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/database"
)

// signUpResponse is returned once per device. The API key cannot be
// retrieved again.
type signUpResponse struct {
	DeviceID string      `json:"device_id"`
	APIKey   string      `json:"api_key"`
	Kind     device.Kind `json:"kind"`
	RoomID   string      `json:"room_id,omitempty"`
}

// handleSignUp registers a device and issues its API key.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.CreateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.RegistrationFailed("invalid")
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d, err := s.gateway.CreateDevice(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrMissingDeviceID):
		s.metrics.RegistrationFailed("missing")
		writeBadRequest(w, "device_id is required")
		return
	case errors.Is(err, device.ErrInvalidDevice):
		s.metrics.RegistrationFailed("invalid")
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	case errors.Is(err, device.ErrDuplicateDevice):
		s.metrics.RegistrationFailed("duplicate")
		writeError(w, http.StatusConflict, ErrCodeConflict, "device_id is already registered")
		return
	case database.IsStorageFault(err):
		s.metrics.RegistrationFailed("storage_error")
		s.logger.Error("device sign-up failed", "device_id", req.DeviceID, "error", err)
		writeStorageError(w, err)
		return
	default:
		s.metrics.RegistrationFailed("error")
		s.logger.Error("device sign-up failed", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to register device")
		return
	}

	writeJSON(w, http.StatusCreated, signUpResponse{
		DeviceID: d.DeviceID,
		APIKey:   d.Credential,
		Kind:     d.Kind,
		RoomID:   d.RoomID,
	})
}

// handleGetDevice returns the authenticated device's own record.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	caller := deviceFromContext(r.Context())
	if caller.DeviceID != chi.URLParam(r, "device_id") {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "devices may only read their own record")
		return
	}
	writeJSON(w, http.StatusOK, caller.Redacted())
}

// telemetryRequest is a batch of readings reported by a device.
type telemetryRequest struct {
	Readings   map[string]any `json:"readings"`
	ReportedAt *time.Time     `json:"reported_at,omitempty"`
}

// handleTelemetry accepts readings from the authenticated device and
// forwards them to InfluxDB, MQTT and WebSocket subscribers.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	caller := deviceFromContext(r.Context())
	if caller.DeviceID != chi.URLParam(r, "device_id") {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "devices may only report their own telemetry")
		return
	}

	var req telemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := validateReadings(*caller, req.Readings); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	t := events.Telemetry{
		DeviceID: caller.DeviceID,
		Kind:     caller.Kind,
		RoomID:   caller.RoomID,
		Readings: req.Readings,
	}
	if req.ReportedAt != nil {
		t.ReportedAt = req.ReportedAt.UTC()
	}
	if s.events != nil {
		s.events.PublishTelemetry(r.Context(), t)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": caller.DeviceID,
		"accepted":  len(req.Readings),
	})
}

// validateReadings checks that every reading is numeric or boolean and,
// for typed devices, one of the metrics the kind reports.
func validateReadings(d device.Device, readings map[string]any) error {
	if len(readings) == 0 {
		return fmt.Errorf("readings must not be empty")
	}

	var allowed []string
	if sensor, ok := d.Sensor(); ok {
		allowed = sensor.Metrics()
	}
	for name, value := range readings {
		if allowed != nil && !slices.Contains(allowed, name) {
			return fmt.Errorf("%s devices do not report %q", d.Kind, name)
		}
		switch value.(type) {
		case float64, bool:
		default:
			return fmt.Errorf("reading %q must be a number or boolean", name)
		}
	}
	return nil
}

// handleListRoomDevices returns the devices assigned to a room.
func (s *Server) handleListRoomDevices(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")

	devices, err := s.devices.ListByRoom(r.Context(), roomID)
	switch {
	case err == nil:
	case errors.Is(err, device.ErrInvalidDevice):
		writeBadRequest(w, "room_id is required")
		return
	case database.IsStorageFault(err):
		s.logger.Error("listing room devices failed", "room_id", roomID, "error", err)
		writeStorageError(w, err)
		return
	default:
		s.logger.Error("listing room devices failed", "room_id", roomID, "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	if devices == nil {
		devices = []device.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id": roomID,
		"devices": devices,
		"count":   len(devices),
	})
}
