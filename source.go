package anchor

import (
	"context"
	"errors"
	"fmt"
)

// ErrVerification matches every error returned by FetchID.
var ErrVerification = errors.New("anchor: identifier could not be verified")

// Source fetches an identifier attested by the platform, such as an original
// purchase transaction identifier. Fetching may be slow and is independent
// of any Identity; its result is an input to Configure.
type Source interface {
	FetchID(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (string, error)

// FetchID calls f.
func (f SourceFunc) FetchID(ctx context.Context) (string, error) {
	return f(ctx)
}

// VerificationError reports that a Source could not attest an identifier.
type VerificationError struct {
	Err error
}

// Error implements error.
func (e *VerificationError) Error() string {
	if e.Err == nil {
		return ErrVerification.Error()
	}
	return fmt.Sprintf("%s: %v", ErrVerification.Error(), e.Err)
}

// Unwrap returns the source error.
func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrVerification.
func (*VerificationError) Is(target error) bool {
	return target == ErrVerification
}

// FetchID fetches an identifier from src. Every failure, including an empty
// identifier, is returned as a *VerificationError.
func FetchID(ctx context.Context, src Source) (string, error) {
	id, err := src.FetchID(ctx)
	if err != nil {
		return "", &VerificationError{Err: err}
	}
	if id == "" {
		return "", &VerificationError{Err: ErrEmptyID}
	}
	return id, nil
}

// ConfigureFrom fetches an identifier from src and configures i with it under
// PreferStored, so an identifier already stored keeps precedence. On a fetch
// failure i is left untouched and the *VerificationError is returned.
func ConfigureFrom(ctx context.Context, i *Identity, src Source, gen Generator) error {
	id, err := FetchID(ctx, src)
	if err != nil {
		return err
	}
	return i.Configure(ctx, Config{
		ID:        id,
		Generator: gen,
		Policy:    PreferStored,
	})
}
