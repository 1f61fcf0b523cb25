package anchor

import "errors"

var (
	// ErrNotConfigured is returned by operations that need a configured Identity.
	ErrNotConfigured = errors.New("anchor: identity not configured")

	// ErrAlreadyConfigured is returned when Configure is called twice.
	// The existing configuration is left untouched.
	ErrAlreadyConfigured = errors.New("anchor: identity already configured")

	// ErrEmptyID is returned when an empty identifier would become active.
	ErrEmptyID = errors.New("anchor: empty identifier")
)
