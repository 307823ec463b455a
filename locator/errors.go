package locator

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error in this package unwraps to one of
// these, so callers can branch with errors.Is regardless of which layer
// produced the error.
var (
	// ErrNotFound is returned when no searched profile holds the requested key.
	ErrNotFound = errors.New("service not found")

	// ErrAlreadyRegistered is returned when a key is registered twice in the
	// same profile without override permission.
	ErrAlreadyRegistered = errors.New("service already registered")

	// ErrProfileNotFound is returned for lookups of unknown profile names.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileAlreadyRegistered is returned when a profile name is taken.
	ErrProfileAlreadyRegistered = errors.New("profile already registered")

	// ErrCircularDependency is returned when activating a profile would walk
	// a dependency cycle. The error message includes the full chain.
	ErrCircularDependency = errors.New("circular profile dependency")

	// ErrRequiredByActiveProfile is returned when deactivation is blocked
	// because another active profile depends on the target.
	ErrRequiredByActiveProfile = errors.New("profile required by an active profile")

	// ErrDisposed is returned when resolution is attempted on a registration
	// that has already been disposed.
	ErrDisposed = errors.New("registration disposed")

	// ErrDisposal marks a non-fatal disposal failure. The registration was
	// still removed; the original error is wrapped alongside.
	ErrDisposal = errors.New("disposal failed")

	// ErrValidation is returned when a caller-supplied validator rejects a
	// freshly produced instance.
	ErrValidation = errors.New("instance validation failed")

	// ErrWrongKind is returned when a registration is resolved through an
	// incompatible path, e.g. an async singleton through Get, or positional
	// arguments passed to a non-parameterized factory.
	ErrWrongKind = errors.New("wrong registration kind")
)

// NotFoundError reports an unresolvable key together with the profiles that
// were searched, in the order they were consulted.
type NotFoundError struct {
	Key      ServiceKey
	Profiles []string
}

func (e *NotFoundError) Error() string {
	if len(e.Profiles) == 0 {
		return fmt.Sprintf("%v: %s (no active profiles)", ErrNotFound, e.Key)
	}
	return fmt.Sprintf("%v: %s (searched profiles: %s)", ErrNotFound, e.Key, strings.Join(e.Profiles, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadyRegisteredError reports a duplicate registration within a profile.
type AlreadyRegisteredError struct {
	Key     ServiceKey
	Profile string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("%v: %s in profile %q", ErrAlreadyRegistered, e.Key, e.Profile)
}

func (e *AlreadyRegisteredError) Unwrap() error { return ErrAlreadyRegistered }

// ProfileNotFoundError reports an unknown profile name. RequiredBy is set
// when the lookup happened while resolving another profile's dependsOn list.
type ProfileNotFoundError struct {
	Name       string
	RequiredBy string
}

func (e *ProfileNotFoundError) Error() string {
	if e.RequiredBy != "" {
		return fmt.Sprintf("%v: %q (dependency of %q)", ErrProfileNotFound, e.Name, e.RequiredBy)
	}
	return fmt.Sprintf("%v: %q", ErrProfileNotFound, e.Name)
}

func (e *ProfileNotFoundError) Unwrap() error { return ErrProfileNotFound }

// ProfileAlreadyRegisteredError reports a profile-name collision.
type ProfileAlreadyRegisteredError struct {
	Name string
}

func (e *ProfileAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("%v: %q", ErrProfileAlreadyRegistered, e.Name)
}

func (e *ProfileAlreadyRegisteredError) Unwrap() error { return ErrProfileAlreadyRegistered }

// CircularDependencyError carries the chain of profile names that forms the
// cycle, starting at the profile whose activation was requested.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCircularDependency, strings.Join(e.Chain, " -> "))
}

func (e *CircularDependencyError) Unwrap() error { return ErrCircularDependency }

// RequiredByActiveProfileError reports which active profiles block a
// deactivation.
type RequiredByActiveProfileError struct {
	Name       string
	RequiredBy []string
}

func (e *RequiredByActiveProfileError) Error() string {
	return fmt.Sprintf("%v: %q is required by %s", ErrRequiredByActiveProfile, e.Name, strings.Join(e.RequiredBy, ", "))
}

func (e *RequiredByActiveProfileError) Unwrap() error { return ErrRequiredByActiveProfile }

// DisposedError reports a resolution attempt on a disposed registration.
type DisposedError struct {
	Key ServiceKey
}

func (e *DisposedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDisposed, e.Key)
}

func (e *DisposedError) Unwrap() error { return ErrDisposed }

// DisposalError is the non-fatal record of a disposal that failed. It
// unwraps to both ErrDisposal and the underlying error.
type DisposalError struct {
	Key ServiceKey
	Err error
}

func (e *DisposalError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrDisposal, e.Key, e.Err)
}

func (e *DisposalError) Unwrap() []error { return []error{ErrDisposal, e.Err} }

// ValidationError reports a validator rejection. The produced instance is
// discarded and never cached.
type ValidationError struct {
	Key ServiceKey
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrValidation, e.Key, e.Err)
}

func (e *ValidationError) Unwrap() []error { return []error{ErrValidation, e.Err} }

// WrongKindError reports resolution through an incompatible path.
type WrongKindError struct {
	Key    ServiceKey
	Kind   Kind
	Reason string
}

func (e *WrongKindError) Error() string {
	return fmt.Sprintf("%v: %s is registered as %s: %s", ErrWrongKind, e.Key, e.Kind, e.Reason)
}

func (e *WrongKindError) Unwrap() error { return ErrWrongKind }
