package telemetry

import "errors"

var (
	// ErrUnknownCommand is returned for a command action other than scan or stop.
	ErrUnknownCommand = errors.New("telemetry: unknown command")

	// ErrInvalidCommand is returned for a command payload that is not JSON.
	ErrInvalidCommand = errors.New("telemetry: invalid command payload")

	// ErrMissingSession is returned by New without a session.
	ErrMissingSession = errors.New("telemetry: session is required")
)
