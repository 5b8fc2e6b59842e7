package mqtt

import "errors"

// Broker errors. Event publishing treats all of them as non-fatal; only
// Connect failures are reported at startup.
var (
	ErrNotConnected      = errors.New("mqtt: broker link down")
	ErrConnectionFailed  = errors.New("mqtt: broker connect failed")
	ErrPublishFailed     = errors.New("mqtt: event publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: command subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: command unsubscribe failed")

	// ErrInvalidQoS rejects levels outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
