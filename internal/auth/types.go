package auth

import (
	"errors"

	"github.com/nerrad567/fog-access-core/internal/device"
)

// Sentinel errors for the auth package.
var (
	// ErrUnauthenticated means the presented identity matches no device.
	// Unknown device_id and wrong credential are deliberately the same error.
	ErrUnauthenticated = errors.New("auth: invalid device credentials")

	// ErrMissingDeviceID is returned by CreateDevice when no device_id is given.
	ErrMissingDeviceID = errors.New("auth: device_id is required")
)

// CreateDeviceRequest is the sign-up payload. Only DeviceID is required.
type CreateDeviceRequest struct {
	DeviceID   string      `json:"device_id"`
	Kind       device.Kind `json:"kind,omitempty"`
	RoomID     string      `json:"room_id,omitempty"`
	IPAddress  string      `json:"ip_address,omitempty"`
	MACAddress string      `json:"mac_address,omitempty"`
}

// RegisterRequest converts the sign-up payload for the device registry.
func (r CreateDeviceRequest) RegisterRequest() device.RegisterRequest {
	return device.RegisterRequest{
		DeviceID: r.DeviceID,
		Kind:     r.Kind,
		RoomID:   r.RoomID,
		Network:  device.Network{IPAddress: r.IPAddress, MACAddress: r.MACAddress},
	}
}
