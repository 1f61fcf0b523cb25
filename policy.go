package anchor

// Policy decides how an explicit identifier competes with a stored one at
// configuration time.
type Policy int32

const (
	// ForceUpdate uses the explicit identifier even if a stored one exists.
	ForceUpdate Policy = iota

	// PreferStored keeps a stored identifier and only falls back to the
	// explicit one when neither store holds a value. Use it for identifier
	// sources that are expensive or one-shot.
	PreferStored
)

// String returns the string representation of the policy.
func (p Policy) String() string {
	switch p {
	case ForceUpdate:
		return "force-update"
	case PreferStored:
		return "prefer-stored"
	default:
		return "unknown"
	}
}

// Resolution reports where the identifier chosen by Configure came from.
type Resolution int32

const (
	// ResolvedExplicit means Config.ID was used.
	ResolvedExplicit Resolution = iota

	// ResolvedRemote means the remote store supplied the identifier.
	ResolvedRemote

	// ResolvedLocal means the local store supplied the identifier.
	ResolvedLocal

	// ResolvedGenerated means the generator minted a fresh identifier.
	ResolvedGenerated
)

// String returns the string representation of the resolution.
func (r Resolution) String() string {
	switch r {
	case ResolvedExplicit:
		return "explicit"
	case ResolvedRemote:
		return "remote"
	case ResolvedLocal:
		return "local"
	case ResolvedGenerated:
		return "generated"
	default:
		return "unknown"
	}
}

// Origin identifies the entry point that requested a change.
// It is reported to signals and metrics, never to the Delegate.
type Origin int32

const (
	// OriginIdentify is a change requested through Identify.
	OriginIdentify Origin = iota

	// OriginGenerate is a change requested through GenerateNewID.
	OriginGenerate

	// OriginRemote is a change reported by the remote store.
	OriginRemote
)

// String returns the string representation of the origin.
func (o Origin) String() string {
	switch o {
	case OriginIdentify:
		return "identify"
	case OriginGenerate:
		return "generate"
	case OriginRemote:
		return "remote"
	default:
		return "unknown"
	}
}
