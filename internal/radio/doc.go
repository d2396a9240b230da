// Package radio holds the concrete discovery.Radio backends.
//
//   - bluez: classic and LE discovery through BlueZ on the system D-Bus
//   - le:    LE-only scanning through tinygo.org/x/bluetooth
//   - fake:  a scripted radio for demos and tests
//
// Backends only translate platform notifications into discovery.Event values.
// Deduplication and scan state live in the discovery package.
package radio

import "errors"

// Errors shared by backends.
var (
	// ErrNotAvailable is returned when the host has no usable adapter.
	ErrNotAvailable = errors.New("radio: adapter not available")

	// ErrPoweredOff is returned when discovery is requested on a powered-off adapter.
	ErrPoweredOff = errors.New("radio: adapter powered off")

	// ErrClosed is returned by operations on a closed radio.
	ErrClosed = errors.New("radio: closed")
)
