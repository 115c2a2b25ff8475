package platformconfig

import "errors"

// ErrUnknownPlatform is returned when a platform tag has no loaded config.
var ErrUnknownPlatform = errors.New("platformconfig: unknown platform")
