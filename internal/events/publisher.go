package events

import (
	"context"
	"time"

	"github.com/nerrad567/fog-access-core/internal/access"
	"github.com/nerrad567/fog-access-core/internal/audit"
	"github.com/nerrad567/fog-access-core/internal/auth"
	"github.com/nerrad567/fog-access-core/internal/backend"
	"github.com/nerrad567/fog-access-core/internal/device"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/logging"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/mqtt"
)

// WebSocket channels broadcast by the Publisher.
const (
	ChannelAccessDecision   = "access.decision"
	ChannelGrantCreated     = "grant.created"
	ChannelDeviceRegistered = "device.registered"
	ChannelTelemetry        = "device.telemetry"
	ChannelSyncCompleted    = "sync.completed"
)

// DefaultQueueSize is the number of MQTT messages queued before dropping.
const DefaultQueueSize = 512

// Logger defines the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Bus publishes JSON messages. *mqtt.Client satisfies it.
type Bus interface {
	PublishJSON(topic string, v any) error
}

// PointWriter records time series. *influxdb.Client satisfies it.
type PointWriter interface {
	WriteAccessDecision(roomID, reason string, granted bool, at time.Time)
	WriteDeviceTelemetry(deviceID, kind, roomID string, fields map[string]any, at time.Time)
}

// Broadcaster pushes events to live WebSocket clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Sinks are the optional outputs of a Publisher. Leave a field nil to
// disable it.
type Sinks struct {
	Bus     Bus
	Points  PointWriter
	Hub     Broadcaster
	Metrics *Metrics
	Audit   *audit.Recorder
}

type busMessage struct {
	topic   string
	payload any
}

// Publisher fans domain events out to MQTT, InfluxDB, WebSocket clients,
// Prometheus and the audit trail.
//
// Observer callbacks run on the request path, so nothing here blocks: MQTT
// publishes are queued and sent by Run, the other sinks are non-blocking
// already.
type Publisher struct {
	sinks  Sinks
	topics mqtt.Topics
	queue  chan busMessage
	logger Logger
	now    func() time.Time
}

var (
	_ access.DecisionObserver = (*Publisher)(nil)
	_ access.GrantObserver    = (*Publisher)(nil)
	_ auth.Observer           = (*Publisher)(nil)
)

// NewPublisher creates a Publisher for site.
func NewPublisher(site string, sinks Sinks) *Publisher {
	return &Publisher{
		sinks:  sinks,
		topics: mqtt.Topics{Site: site},
		queue:  make(chan busMessage, DefaultQueueSize),
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// Run sends queued MQTT messages until ctx is cancelled, then drains the
// queue. It returns immediately when no bus is configured.
func (p *Publisher) Run(ctx context.Context) {
	if p.sinks.Bus == nil {
		return
	}
	for {
		select {
		case msg := <-p.queue:
			p.send(msg)
		case <-ctx.Done():
			for {
				select {
				case msg := <-p.queue:
					p.send(msg)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) send(msg busMessage) {
	if err := p.sinks.Bus.PublishJSON(msg.topic, msg.payload); err != nil {
		p.logger.Warn("event publish failed", "topic", msg.topic, "error", err)
	}
}

func (p *Publisher) enqueue(topic string, payload any) {
	if p.sinks.Bus == nil {
		return
	}
	select {
	case p.queue <- busMessage{topic: topic, payload: payload}:
	default:
		if p.sinks.Metrics != nil {
			p.sinks.Metrics.EventsDropped.Inc()
		}
		p.logger.Warn("event queue full, dropping", "topic", topic)
	}
}

func (p *Publisher) broadcast(channel string, payload any) {
	if p.sinks.Hub != nil {
		p.sinks.Hub.Broadcast(channel, payload)
	}
}

// decisionEvent is the published form of an access decision. The card UID
// is redacted.
type decisionEvent struct {
	RoomID    string        `json:"room_id"`
	Granted   bool          `json:"access_granted"`
	Reason    access.Reason `json:"reason"`
	UID       string        `json:"uuid"`
	DecidedAt time.Time     `json:"decided_at"`
}

// ObserveDecision implements access.DecisionObserver.
func (p *Publisher) ObserveDecision(_ context.Context, d access.Decision) {
	if p.sinks.Metrics != nil {
		p.sinks.Metrics.AccessDecisions.WithLabelValues(string(d.Reason)).Inc()
	}
	if d.Reason == access.ReasonInvalidInput {
		return
	}
	if p.sinks.Points != nil {
		p.sinks.Points.WriteAccessDecision(d.RoomID, string(d.Reason), d.Granted, d.DecidedAt)
	}

	uid := logging.Redact(d.UID)
	action := audit.ActionDeny
	if d.Granted {
		action = audit.ActionGrant
	}
	p.sinks.Audit.Record(&audit.AuditLog{
		Action:     action,
		EntityType: "room",
		EntityID:   d.RoomID,
		Details: map[string]any{
			"reason": string(d.Reason),
			"uuid":   uid,
		},
		CreatedAt: d.DecidedAt,
	})

	ev := decisionEvent{
		RoomID:    d.RoomID,
		Granted:   d.Granted,
		Reason:    d.Reason,
		UID:       uid,
		DecidedAt: d.DecidedAt,
	}
	p.enqueue(p.topics.AccessDecision(d.RoomID), ev)
	p.broadcast(ChannelAccessDecision, ev)
}

// ObserveGrant implements access.GrantObserver.
func (p *Publisher) ObserveGrant(_ context.Context, g access.Grant) {
	p.sinks.Audit.Record(&audit.AuditLog{
		Action:     audit.ActionCreate,
		EntityType: "grant",
		EntityID:   g.ID,
		Source:     string(g.Source),
		Details: map[string]any{
			"room_id":    g.RoomID,
			"booking_id": g.BookingID,
		},
	})
	p.broadcast(ChannelGrantCreated, map[string]any{
		"id":         g.ID,
		"room_id":    g.RoomID,
		"booking_id": g.BookingID,
		"created_at": g.CreatedAt,
	})
}

// ObserveAuth implements auth.Observer.
func (p *Publisher) ObserveAuth(_ context.Context, _ string, result auth.Result) {
	if p.sinks.Metrics != nil {
		p.sinks.Metrics.AuthAttempts.WithLabelValues(string(result)).Inc()
	}
}

// ObserveRegistration implements auth.Observer.
func (p *Publisher) ObserveRegistration(_ context.Context, d device.Device) {
	if p.sinks.Metrics != nil {
		p.sinks.Metrics.Registrations.WithLabelValues("success").Inc()
	}
	p.sinks.Audit.Record(&audit.AuditLog{
		Action:     audit.ActionRegister,
		EntityType: "device",
		EntityID:   d.DeviceID,
		DeviceID:   d.DeviceID,
		Details: map[string]any{
			"kind":    string(d.Kind),
			"room_id": d.RoomID,
		},
	})

	payload := d.Redacted()
	p.enqueue(p.topics.DeviceRegistered(d.DeviceID), payload)
	p.broadcast(ChannelDeviceRegistered, payload)
}

// Telemetry is one reading batch reported by a device.
type Telemetry struct {
	DeviceID   string         `json:"device_id"`
	Kind       device.Kind    `json:"kind"`
	RoomID     string         `json:"room_id,omitempty"`
	Readings   map[string]any `json:"readings"`
	ReportedAt time.Time      `json:"reported_at"`
}

// PublishTelemetry records t in InfluxDB and forwards it to MQTT and
// WebSocket subscribers.
func (p *Publisher) PublishTelemetry(_ context.Context, t Telemetry) {
	if t.ReportedAt.IsZero() {
		t.ReportedAt = p.now()
	}
	if p.sinks.Points != nil {
		p.sinks.Points.WriteDeviceTelemetry(t.DeviceID, string(t.Kind), t.RoomID, t.Readings, t.ReportedAt)
	}
	p.enqueue(p.topics.Telemetry(string(t.Kind), t.DeviceID), t)
	p.broadcast(ChannelTelemetry, t)
}

// PublishSync records a completed backend sync. deviceID is empty for
// periodic or MQTT-triggered syncs.
func (p *Publisher) PublishSync(_ context.Context, deviceID string, r backend.Result) {
	if p.sinks.Metrics != nil {
		p.sinks.Metrics.GrantsSynced.WithLabelValues("inserted").Add(float64(r.Inserted))
		p.sinks.Metrics.GrantsSynced.WithLabelValues("skipped").Add(float64(r.Skipped))
		p.sinks.Metrics.GrantsSynced.WithLabelValues("invalid").Add(float64(r.Invalid))
	}

	source := "schedule"
	if deviceID != "" {
		source = "api"
	}
	p.sinks.Audit.Record(&audit.AuditLog{
		Action:     audit.ActionSync,
		EntityType: "room",
		EntityID:   r.RoomID,
		DeviceID:   deviceID,
		Source:     source,
		Details: map[string]any{
			"fetched":  r.Fetched,
			"inserted": r.Inserted,
			"skipped":  r.Skipped,
			"invalid":  r.Invalid,
		},
	})

	p.broadcast(ChannelSyncCompleted, syncEvent{
		RoomID:   r.RoomID,
		Fetched:  r.Fetched,
		Inserted: r.Inserted,
		Skipped:  r.Skipped,
		Invalid:  r.Invalid,
		SyncedAt: r.SyncedAt,
	})
}

// syncEvent is the broadcast form of a sync result, without card UIDs.
type syncEvent struct {
	RoomID   string    `json:"room_id,omitempty"`
	Fetched  int       `json:"fetched"`
	Inserted int       `json:"inserted"`
	Skipped  int       `json:"skipped"`
	Invalid  int       `json:"invalid"`
	SyncedAt time.Time `json:"synced_at"`
}
