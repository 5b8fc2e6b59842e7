package device

import (
	"time"
)

// Kind classifies what a registered device is. Authentication treats every
// kind the same way; the kind only decides which telemetry a device may
// report and which typed view it exposes.
type Kind string

// Supported device kinds.
const (
	KindGeneric     Kind = "generic"
	KindThermostat  Kind = "thermostat"
	KindSmokeSensor Kind = "smoke_sensor"
	KindRFIDReader  Kind = "rfid_reader"
)

// AllKinds returns every supported kind.
func AllKinds() []Kind {
	return []Kind{KindGeneric, KindThermostat, KindSmokeSensor, KindRFIDReader}
}

// IsValid reports whether k is a supported kind.
func (k Kind) IsValid() bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Identity is what a device presents to authenticate: its identifier and
// the opaque credential issued at registration.
//
// Credential is only ever populated on the record returned by
// Registry.Register. Records read back from storage never carry it.
type Identity struct {
	DeviceID   string `json:"device_id"`
	Credential string `json:"api_key,omitempty"`
}

// Authenticable is implemented by anything that carries a device identity.
// Consumers that only need to authenticate depend on this, not on Device.
type Authenticable interface {
	DeviceIdentity() Identity
}

// Network holds the addressing a device reported at registration.
//
// It is the secondary identity scheme: useful to operators locating a
// device on the LAN, but never consulted when authenticating.
type Network struct {
	IPAddress  string `json:"ip_address,omitempty"`
	MACAddress string `json:"mac_address,omitempty"`
}

// Device is a registered IoT device.
type Device struct {
	Identity
	Kind       Kind       `json:"kind"`
	RoomID     string     `json:"room_id,omitempty"`
	Network    Network    `json:"network"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// DeviceIdentity implements Authenticable.
func (d Device) DeviceIdentity() Identity {
	return d.Identity
}

// Redacted returns a copy of d without its credential.
func (d Device) Redacted() Device {
	d.Credential = ""
	if d.LastSeenAt != nil {
		t := *d.LastSeenAt
		d.LastSeenAt = &t
	}
	return d
}

// Sensor is a typed view over a Device that reports telemetry.
type Sensor interface {
	Authenticable
	// Metrics lists the telemetry fields this kind may report.
	Metrics() []string
}

// Thermostat is a Device of kind thermostat.
type Thermostat struct{ Device }

// Metrics implements Sensor.
func (Thermostat) Metrics() []string {
	return []string{"temperature", "setpoint", "humidity"}
}

// SmokeSensor is a Device of kind smoke_sensor.
type SmokeSensor struct{ Device }

// Metrics implements Sensor.
func (SmokeSensor) Metrics() []string {
	return []string{"smoke_detected", "co_ppm", "battery"}
}

// RFIDReader is a Device of kind rfid_reader.
type RFIDReader struct{ Device }

// Metrics implements Sensor.
func (RFIDReader) Metrics() []string {
	return []string{"door_open", "battery"}
}

// Sensor returns the typed view for d's kind. Generic devices have no
// view and report ok=false.
func (d Device) Sensor() (s Sensor, ok bool) {
	switch d.Kind {
	case KindThermostat:
		return Thermostat{d}, true
	case KindSmokeSensor:
		return SmokeSensor{d}, true
	case KindRFIDReader:
		return RFIDReader{d}, true
	default:
		return nil, false
	}
}

// RegisterRequest is the input to Registry.Register.
type RegisterRequest struct {
	DeviceID string
	Kind     Kind
	RoomID   string
	Network  Network
}
