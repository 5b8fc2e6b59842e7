package device

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"unicode"
)

// Validation limits.
const (
	maxDeviceIDLength = 128
	maxRoomIDLength   = 128
)

// ValidateDeviceID checks a device identifier supplied at registration.
// Identifiers are opaque but must be non-empty, bounded, and free of
// whitespace and control characters so they survive headers and URL paths.
func ValidateDeviceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidDevice)
	}
	if len(id) > maxDeviceIDLength {
		return fmt.Errorf("%w: device_id exceeds %d characters", ErrInvalidDevice, maxDeviceIDLength)
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: device_id must not contain whitespace or control characters", ErrInvalidDevice)
		}
	}
	return nil
}

// normaliseRegistration validates req and fills defaults in place.
// The MAC address is rewritten in canonical lower-case colon form.
func normaliseRegistration(req *RegisterRequest) error {
	if err := ValidateDeviceID(req.DeviceID); err != nil {
		return err
	}

	if req.Kind == "" {
		req.Kind = KindGeneric
	}
	if !req.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDevice, req.Kind)
	}

	req.RoomID = strings.TrimSpace(req.RoomID)
	if len(req.RoomID) > maxRoomIDLength {
		return fmt.Errorf("%w: room_id exceeds %d characters", ErrInvalidDevice, maxRoomIDLength)
	}

	if ip := strings.TrimSpace(req.Network.IPAddress); ip != "" {
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return fmt.Errorf("%w: ip_address %q is not an IP address", ErrInvalidDevice, ip)
		}
		req.Network.IPAddress = addr.String()
	}

	if mac := strings.TrimSpace(req.Network.MACAddress); mac != "" {
		hw, err := net.ParseMAC(mac)
		if err != nil {
			return fmt.Errorf("%w: mac_address %q is not a MAC address", ErrInvalidDevice, mac)
		}
		req.Network.MACAddress = hw.String()
	}

	return nil
}
