// CLAUDE:SUMMARY Sentinel errors for the comparison engine: fatal geometry failure and invalid configuration.
package compare

import "errors"

// ErrGeometry is returned when either session's initial scroll-reset and
// measurement fails. It is the only condition that aborts a whole run —
// without geometry there is nothing to plan against.
var ErrGeometry = errors.New("compare: geometry measurement failed")

// ErrInvalidConfig is returned when run configuration fails validation.
var ErrInvalidConfig = errors.New("compare: invalid configuration")
