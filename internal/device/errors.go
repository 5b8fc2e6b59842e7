package device

import "errors"

// Domain errors for the device package.
//
// Storage faults are not listed here: repositories wrap them with
// database.ErrUnavailable or database.ErrTimeout.
//
//	if errors.Is(err, device.ErrDuplicateDevice) {
//	    // 409
//	}
var (
	// ErrDeviceNotFound is returned when no device matches the presented
	// identity. Unknown device and wrong credential are deliberately the
	// same error.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDuplicateDevice is returned when the device_id is already registered.
	ErrDuplicateDevice = errors.New("device: already registered")

	// ErrInvalidDevice is returned when registration input fails validation.
	ErrInvalidDevice = errors.New("device: invalid")
)
