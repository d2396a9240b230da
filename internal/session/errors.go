package session

import "errors"

var (
	// ErrEnded is returned by actions on a session that has ended.
	ErrEnded = errors.New("session: ended")

	// ErrLoopStopped is returned when the dispatch loop is no longer running.
	ErrLoopStopped = errors.New("session: dispatch loop stopped")

	// ErrDeviceNotFound is returned by Detail for an unknown address.
	ErrDeviceNotFound = errors.New("session: device not found")

	// ErrSnapshotNotFound is returned by a Store that holds no snapshot.
	ErrSnapshotNotFound = errors.New("session: snapshot not found")

	// ErrMissingDependency is returned by New when a required option is nil.
	ErrMissingDependency = errors.New("session: missing dependency")
)
