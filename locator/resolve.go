package locator

import (
	"context"
	"errors"
	"fmt"
)

// ── Resolution ───────────────────────────────────────────────────────────────
//
// Resolution walks the active profiles in descending priority order and
// returns the first profile's result for the key. Positional args (at most
// two) go to parameterized factories.

// Get resolves the unnamed registration of T.
//
//	db, err := locator.Get[*Database](l)
//	conn, err := locator.Get[*Conn](l, "eu-west-1")   // 1-param factory
func Get[T any](l *Locator, args ...any) (T, error) {
	return GetNamed[T](l, "", args...)
}

// GetNamed resolves the registration of T under the given instance name.
func GetNamed[T any](l *Locator, name string, args ...any) (T, error) {
	var zero T
	key := ServiceKey{Type: typeOf[T](), Name: name}

	v, err := l.manager.Resolve(key, args...)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cannot convert %T to %s for %s", v, key.Type, key)
	}
	return out, nil
}

// TryGet is Get with absence reported as ok=false instead of an error.
// Every failure other than ErrNotFound still propagates: absence of a
// registration is the only legitimate non-error outcome.
func TryGet[T any](l *Locator, args ...any) (T, bool, error) {
	return TryGetNamed[T](l, "", args...)
}

// TryGetNamed is GetNamed with absence reported as ok=false.
func TryGetNamed[T any](l *Locator, name string, args ...any) (T, bool, error) {
	var zero T
	v, err := GetNamed[T](l, name, args...)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return zero, false, nil
		}
		return zero, false, err
	}
	return v, true, nil
}

// MustGet is Get but panics on error. For composition roots where a missing
// registration is a programming error.
func MustGet[T any](l *Locator, args ...any) T {
	v, err := Get[T](l, args...)
	if err != nil {
		panic(err)
	}
	return v
}

// MustGetNamed is GetNamed but panics on error.
func MustGetNamed[T any](l *Locator, name string, args ...any) T {
	v, err := GetNamed[T](l, name, args...)
	if err != nil {
		panic(err)
	}
	return v
}

// GetAsync resolves the unnamed registration of T through the asynchronous
// path. Async singletons are produced with single-flight semantics: however
// many callers arrive, the producer runs once and all of them receive its
// result. ctx bounds this caller's wait, not the shared production.
// Non-async registrations resolve as with Get.
func GetAsync[T any](ctx context.Context, l *Locator) (T, error) {
	return GetAsyncNamed[T](ctx, l, "")
}

// GetAsyncNamed is GetAsync for a named registration.
func GetAsyncNamed[T any](ctx context.Context, l *Locator, name string) (T, error) {
	var zero T
	key := ServiceKey{Type: typeOf[T](), Name: name}

	v, err := l.manager.ResolveAsync(ctx, key)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cannot convert %T to %s for %s", v, key.Type, key)
	}
	return out, nil
}

// TryGetAsync is GetAsync with absence reported as ok=false.
func TryGetAsync[T any](ctx context.Context, l *Locator) (T, bool, error) {
	var zero T
	v, err := GetAsync[T](ctx, l)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return zero, false, nil
		}
		return zero, false, err
	}
	return v, true, nil
}
