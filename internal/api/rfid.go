package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fog-access-core/internal/access"
	"github.com/nerrad567/fog-access-core/internal/backend"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/database"
)

// validateAccessRequest asks whether a card may open a room.
type validateAccessRequest struct {
	UID    string            `json:"rfid_uid"`
	RoomID access.FlexString `json:"room_id"`
}

// validateAccessResponse always carries a decision. Reason tells a denial
// for lack of a grant apart from a denial caused by a storage fault.
type validateAccessResponse struct {
	Granted bool          `json:"access_granted"`
	Reason  access.Reason `json:"reason"`
}

// handleValidateAccess answers an RFID access check.
//
// Missing fields are a client error (400). Every other outcome is 200 with
// access_granted; storage faults deny.
func (s *Server) handleValidateAccess(w http.ResponseWriter, r *http.Request) {
	var req validateAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d, err := s.access.Check(r.Context(), req.UID, req.RoomID.String())
	if errors.Is(err, access.ErrInvalidInput) {
		writeBadRequest(w, "rfid_uid and room_id are required")
		return
	}

	writeJSON(w, http.StatusOK, validateAccessResponse{Granted: d.Granted, Reason: d.Reason})
}

// createGrantRequest registers a card for a room. Identifiers may arrive
// as JSON strings or numbers.
type createGrantRequest struct {
	RoomID    access.FlexString `json:"room_id"`
	GuestID   access.FlexString `json:"guest_id"`
	BookingID access.FlexString `json:"booking_id"`
	UID       string            `json:"uuid"`
}

// handleCreateGrant stores a new access grant.
func (s *Server) handleCreateGrant(w http.ResponseWriter, r *http.Request) {
	var req createGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	g, err := s.access.RegisterGrant(r.Context(), access.GrantRequest{
		RoomID:    req.RoomID.String(),
		HolderID:  req.GuestID.String(),
		BookingID: req.BookingID.String(),
		UID:       req.UID,
	})
	switch {
	case err == nil:
	case errors.Is(err, access.ErrInvalidInput):
		writeBadRequest(w, err.Error())
		return
	case errors.Is(err, access.ErrDuplicateGrant):
		writeError(w, http.StatusConflict, ErrCodeConflict, "card is already granted access")
		return
	case database.IsStorageFault(err):
		writeStorageError(w, err)
		return
	default:
		s.logger.Error("creating grant failed", "error", err)
		writeInternalError(w, "failed to create grant")
		return
	}

	writeJSON(w, http.StatusCreated, g)
}

// handleListRoomGrants returns the grants cached locally for a room.
func (s *Server) handleListRoomGrants(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")

	grants, err := s.access.ListByRoom(r.Context(), roomID)
	switch {
	case err == nil:
	case errors.Is(err, access.ErrInvalidInput):
		writeBadRequest(w, "room_id is required")
		return
	case database.IsStorageFault(err):
		writeStorageError(w, err)
		return
	default:
		s.logger.Error("listing grants failed", "room_id", roomID, "error", err)
		writeInternalError(w, "failed to list grants")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"room_id": roomID,
		"grants":  redactGrants(grants),
		"count":   len(grants),
	})
}

// redactGrants copies grants with their card UIDs shortened. Devices see
// which grants exist, never the full UID.
func redactGrants(grants []access.Grant) []access.Grant {
	out := make([]access.Grant, len(grants))
	for i, g := range grants {
		out[i] = g.Redacted()
	}
	return out
}

type syncRequest struct {
	RoomID access.FlexString `json:"room_id"`
}

// handleSync pulls cards from the hotel backend and returns the room's
// grants afterwards.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotImplemented, "backend sync is not configured")
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	caller := deviceFromContext(r.Context())
	result, err := s.syncer.SyncRoom(r.Context(), req.RoomID.String())
	switch {
	case err == nil:
	case errors.Is(err, access.ErrInvalidInput):
		writeBadRequest(w, "room_id is required")
		return
	case database.IsStorageFault(err):
		s.logger.Error("backend sync failed", "room_id", req.RoomID.String(), "error", err)
		writeStorageError(w, err)
		return
	case errors.Is(err, backend.ErrAuthFailed),
		errors.Is(err, backend.ErrUnreachable),
		errors.Is(err, backend.ErrUnexpectedStatus),
		errors.Is(err, backend.ErrBadResponse):
		s.logger.Warn("backend sync failed", "room_id", req.RoomID.String(), "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, "hotel backend unavailable")
		return
	default:
		s.logger.Error("backend sync failed", "room_id", req.RoomID.String(), "error", err)
		writeInternalError(w, "backend sync failed")
		return
	}

	if s.events != nil {
		s.events.PublishSync(r.Context(), caller.DeviceID, result)
	}
	result.Grants = redactGrants(result.Grants)
	writeJSON(w, http.StatusOK, result)
}
