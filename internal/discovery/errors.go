package discovery

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the discovery package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, discovery.ErrRadioUnavailable) {
//	    // end the session
//	}
var (
	// ErrRadioUnavailable is returned when the host has no radio adapter.
	// It is fatal for the session and never retried.
	ErrRadioUnavailable = errors.New("discovery: radio not available")

	// ErrRadioDisabled is returned by Start when the adapter is powered off.
	ErrRadioDisabled = errors.New("discovery: radio disabled")

	// ErrRadioDisabledRefused is returned when the user declined enabling the radio.
	ErrRadioDisabledRefused = errors.New("discovery: radio enable refused")

	// ErrPermissionDenied is matched by every PermissionDeniedError.
	ErrPermissionDenied = errors.New("discovery: permission denied")

	// ErrDiscoveryStartFailed is returned when the radio reported failure to begin discovery.
	ErrDiscoveryStartFailed = errors.New("discovery: start failed")
)

// PermissionDeniedError lists the capabilities missing for a scan.
type PermissionDeniedError struct {
	Missing []string
}

// Error implements error.
func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrPermissionDenied, strings.Join(e.Missing, ", "))
}

// Is makes errors.Is(err, ErrPermissionDenied) match.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}
