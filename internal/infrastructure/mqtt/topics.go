package mqtt

import "fmt"

// TopicRoot is the first level of every fog node topic.
const TopicRoot = "fog"

// Topics builds MQTT topics for one site. All topics are rooted at
// fog/{site}:
//
//	topics := mqtt.Topics{Site: "fog-001"}
//	topics.AccessDecision("12")
//	// Returns: "fog/fog-001/access/12/decision"
type Topics struct {
	Site string
}

func (t Topics) prefix() string {
	return fmt.Sprintf("%s/%s", TopicRoot, t.Site)
}

// AccessDecision returns the topic for access decisions on a room.
//
// Example: fog/fog-001/access/12/decision
func (t Topics) AccessDecision(roomID string) string {
	return fmt.Sprintf("%s/access/%s/decision", t.prefix(), roomID)
}

// DeviceRegistered returns the topic announcing a new device.
//
// Example: fog/fog-001/device/abc123/registered
func (t Topics) DeviceRegistered(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/registered", t.prefix(), deviceID)
}

// Telemetry returns the topic for a device reading of the given kind.
//
// Example: fog/fog-001/telemetry/thermostat/thermo-101
func (t Topics) Telemetry(kind, deviceID string) string {
	return fmt.Sprintf("%s/telemetry/%s/%s", t.prefix(), kind, deviceID)
}

// SyncCommand returns the topic on which the hotel backend requests a
// grant refresh for a room.
//
// Example: fog/fog-001/command/sync
func (t Topics) SyncCommand() string {
	return fmt.Sprintf("%s/command/sync", t.prefix())
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: fog/fog-001/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// AllDecisions matches access decisions for every room.
//
// Pattern: fog/fog-001/access/+/decision
func (t Topics) AllDecisions() string {
	return fmt.Sprintf("%s/access/+/decision", t.prefix())
}

// AllTelemetry matches every telemetry topic.
//
// Pattern: fog/fog-001/telemetry/+/+
func (t Topics) AllTelemetry() string {
	return fmt.Sprintf("%s/telemetry/+/+", t.prefix())
}

// AllTopics matches everything under the site.
//
// Pattern: fog/fog-001/#
func (t Topics) AllTopics() string {
	return t.prefix() + "/#"
}
