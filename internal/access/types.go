package access

import (
	"time"

	"github.com/nerrad567/fog-access-core/internal/infrastructure/logging"
)

// Source records where a grant came from.
type Source string

// Grant sources.
const (
	SourceAPI         Source = "api"
	SourceBackendSync Source = "backend_sync"
)

// Grant allows the card UID to open RoomID.
type Grant struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	HolderID  string    `json:"guest_id"`
	BookingID string    `json:"booking_id"`
	UID       string    `json:"uuid"`
	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Redacted returns a copy of g with the card UID shortened for display.
func (g Grant) Redacted() Grant {
	g.UID = logging.Redact(g.UID)
	return g
}

// GrantRequest is the input to Validator.RegisterGrant. All fields are
// required. UID may be in any case and contain whitespace.
type GrantRequest struct {
	RoomID    string
	HolderID  string
	BookingID string
	UID       string
}

// Reason explains an access decision.
type Reason string

// Decision reasons. Only ReasonGranted accompanies Granted=true.
const (
	ReasonGranted            Reason = "granted"
	ReasonNoGrant            Reason = "no_grant"
	ReasonInvalidInput       Reason = "invalid_input"
	ReasonStorageTimeout     Reason = "storage_timeout"
	ReasonStorageUnavailable Reason = "storage_unavailable"
)

// Decision is the outcome of one access check.
type Decision struct {
	UID       string    `json:"uuid"`
	RoomID    string    `json:"room_id"`
	Granted   bool      `json:"access_granted"`
	Reason    Reason    `json:"reason"`
	DecidedAt time.Time `json:"decided_at"`
}
