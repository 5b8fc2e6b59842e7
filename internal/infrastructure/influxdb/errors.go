package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when the node runs without a
	// time-series store. Callers treat it as "skip history", not a failure.
	ErrDisabled = errors.New("influxdb: history store disabled")

	// ErrConnectionFailed wraps a failed or unhealthy startup ping.
	ErrConnectionFailed = errors.New("influxdb: history store unreachable")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: history store closed")
)
