package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementAccess    = "access_decisions"
	MeasurementTelemetry = "device_telemetry"
)

// WriteAccessDecision records one access check. The card UID is not
// written; rooms and reasons are low-cardinality tags.
//
// Example:
//
//	client.WriteAccessDecision("12", "granted", true, time.Now())
func (c *Client) WriteAccessDecision(roomID, reason string, granted bool, at time.Time) {
	c.writePoint(write.NewPoint(
		MeasurementAccess,
		map[string]string{
			"room_id": roomID,
			"reason":  reason,
		},
		map[string]any{
			"granted": granted,
		},
		at,
	))
}

// WriteDeviceTelemetry records a reading reported by a device. Fields are
// written as given; non-numeric values are the caller's responsibility.
//
// Example:
//
//	client.WriteDeviceTelemetry("thermo-101", "thermostat", "101",
//	    map[string]any{"temperature_c": 21.5}, time.Now())
func (c *Client) WriteDeviceTelemetry(deviceID, kind, roomID string, fields map[string]any, at time.Time) {
	if len(fields) == 0 {
		return
	}
	tags := map[string]string{
		"device_id": deviceID,
		"kind":      kind,
	}
	if roomID != "" {
		tags["room_id"] = roomID
	}
	c.writePoint(write.NewPoint(MeasurementTelemetry, tags, fields, at))
}

// WritePoint writes a custom point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.writePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}
