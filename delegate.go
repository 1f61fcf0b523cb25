package anchor

import "context"

// Delegate observes identifier changes and may override them.
//
// Both methods run while the Identity holds its mutation lock. A Delegate may
// read ID() but must not call Identify, GenerateNewID, Configure or Reset.
type Delegate interface {
	// WillChangeID is offered every pending change. Returning ok == true with
	// a non-empty value replaces candidate for the rest of the change.
	// Returning current redirects the change back to the active identifier;
	// the change cannot be aborted entirely.
	WillChangeID(ctx context.Context, current, candidate string) (adjusted string, ok bool)

	// DidChangeID is called once the change is in effect and persisted.
	DidChangeID(ctx context.Context, id string)
}

// NoOpDelegate accepts every change unmodified.
// Use this as an embedded type to implement only the methods you need.
type NoOpDelegate struct{}

func (NoOpDelegate) WillChangeID(_ context.Context, _, _ string) (string, bool) { return "", false }
func (NoOpDelegate) DidChangeID(_ context.Context, _ string)                    {}

// DelegateFuncs adapts a pair of functions to the Delegate interface.
// Nil fields are skipped.
type DelegateFuncs struct {
	WillChange func(ctx context.Context, current, candidate string) (string, bool)
	DidChange  func(ctx context.Context, id string)
}

// WillChangeID calls WillChange if set.
func (d DelegateFuncs) WillChangeID(ctx context.Context, current, candidate string) (string, bool) {
	if d.WillChange == nil {
		return "", false
	}
	return d.WillChange(ctx, current, candidate)
}

// DidChangeID calls DidChange if set.
func (d DelegateFuncs) DidChangeID(ctx context.Context, id string) {
	if d.DidChange != nil {
		d.DidChange(ctx, id)
	}
}

// delegateRef boxes an interface value for atomic.Pointer.
type delegateRef struct {
	Delegate
}
