package mqtt

import "errors"

// Connection state.
var (
	ErrConnectionFailed = errors.New("mqtt: broker unreachable")
	ErrNotConnected     = errors.New("mqtt: no broker connection")
)

// Per-operation failures, wrapped with the broker's error.
var (
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
)

// Argument checks made before anything reaches the broker.
var (
	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
