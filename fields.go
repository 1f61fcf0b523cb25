package anchor

import "github.com/zoobzio/capitan"

// Field keys for Identity events.
var (
	// KeyID is the identifier in effect.
	KeyID = capitan.NewStringKey("id")

	// KeyPreviousID is the identifier before a change.
	KeyPreviousID = capitan.NewStringKey("previous_id")

	// KeyCandidate is the identifier requested before delegate adjustment.
	KeyCandidate = capitan.NewStringKey("candidate")

	// KeyOrigin is the entry point that requested a change.
	KeyOrigin = capitan.NewStringKey("origin")

	// KeyResolution is where Configure found the identifier.
	KeyResolution = capitan.NewStringKey("resolution")

	// KeyPolicy is the configuration policy.
	KeyPolicy = capitan.NewStringKey("policy")

	// KeyStage is the store operation that failed.
	KeyStage = capitan.NewStringKey("stage")

	// KeyStoreKey is the storage key the identifier lives under.
	KeyStoreKey = capitan.NewStringKey("store_key")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyDebounce is the configured debounce duration.
	KeyDebounce = capitan.NewDurationKey("debounce")
)
