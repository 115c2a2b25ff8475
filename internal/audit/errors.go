package audit

import "errors"

// ErrFinalized is returned by Append once Finalize has already run.
var ErrFinalized = errors.New("audit: append after finalize")

// ErrNotInitialized is returned when Append/Finalize run before Initialize.
var ErrNotInitialized = errors.New("audit: writer not initialized")
