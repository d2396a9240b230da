package permission

import "errors"

var (
	// ErrUnknownCapability is returned when a capability name is not recognised.
	ErrUnknownCapability = errors.New("permission: unknown capability")

	// ErrOverlappingRules is returned when two policy rules cover the same version.
	ErrOverlappingRules = errors.New("permission: overlapping policy rules")

	// ErrNoPlatform is returned when a Gate is built without a Platform.
	ErrNoPlatform = errors.New("permission: platform is required")
)
