package influxdb

import "errors"

// Sentinel errors returned by Client. Wrapped errors carry the cause.
var (
	ErrDisabled         = errors.New("influxdb: telemetry sink disabled")
	ErrConnectionFailed = errors.New("influxdb: health check failed")
	ErrNotConnected     = errors.New("influxdb: client closed")
)
