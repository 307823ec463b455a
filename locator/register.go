package locator

import (
	"context"
	"errors"
	"fmt"
)

// ── Registration ─────────────────────────────────────────────────────────────
//
// Producers are supplied explicitly; there is no constructor auto-wiring.
// Every function targets the default profile unless [InProfile] says
// otherwise, and the unnamed key unless [WithName] says otherwise.

// RegisterSingleton registers an eagerly supplied instance. Every Get for
// the key returns this identical instance. The validator, if any, runs
// immediately.
//
//	locator.RegisterSingleton(l, db)
//	locator.RegisterSingleton(l, replica, locator.WithName("replica"))
func RegisterSingleton[T any](l *Locator, instance T, opts ...RegisterOption) error {
	o := buildRegisterOptions(opts)
	key := ServiceKey{Type: typeOf[T](), Name: o.name}

	r := newRegistration(key, KindSingleton, o)
	if err := r.validate(instance); err != nil {
		return err
	}
	r.instance = instance
	r.created = true

	p, err := l.targetProfile(o)
	if err != nil {
		return err
	}
	if err := p.register(r, o.allowOverride); err != nil {
		return err
	}
	r.afterProduce(instance)
	return nil
}

// RegisterLazySingleton registers a producer invoked at most once, on first
// demand; the result is cached for the registration's lifetime.
func RegisterLazySingleton[T any](l *Locator, producer func() (T, error), opts ...RegisterOption) error {
	o := buildRegisterOptions(opts)
	key := ServiceKey{Type: typeOf[T](), Name: o.name}

	r := newRegistration(key, KindLazySingleton, o)
	r.producer = func() (any, error) { return producer() }
	return registerIn(l, o, r)
}

// RegisterFactory registers a producer invoked on every resolution.
func RegisterFactory[T any](l *Locator, producer func() (T, error), opts ...RegisterOption) error {
	o := buildRegisterOptions(opts)
	key := ServiceKey{Type: typeOf[T](), Name: o.name}

	r := newRegistration(key, KindFactory, o)
	r.producer = func() (any, error) { return producer() }
	return registerIn(l, o, r)
}

// RegisterFactoryParam registers a factory taking one caller-supplied
// argument, passed positionally at resolution time:
//
//	locator.RegisterFactoryParam(l, func(region string) (*Bucket, error) { ... })
//	bucket, err := locator.Get[*Bucket](l, "eu-west-1")
func RegisterFactoryParam[T, P any](l *Locator, producer func(P) (T, error), opts ...RegisterOption) error {
	o := buildRegisterOptions(opts)
	key := ServiceKey{Type: typeOf[T](), Name: o.name}

	r := newRegistration(key, KindFactoryParam, o)
	r.producerParam = func(p1, _ any) (any, error) {
		arg, ok := p1.(P)
		if !ok {
			return nil, &WrongKindError{Key: key, Kind: KindFactoryParam, Reason: paramTypeReason[P](1, p1)}
		}
		return producer(arg)
	}
	return registerIn(l, o, r)
}

// RegisterFactoryParam2 registers a factory taking two caller-supplied
// arguments.
func RegisterFactoryParam2[T, P1, P2 any](l *Locator, producer func(P1, P2) (T, error), opts ...RegisterOption) error {
	o := buildRegisterOptions(opts)
	key := ServiceKey{Type: typeOf[T](), Name: o.name}

	r := newRegistration(key, KindFactoryParam2, o)
	r.producerParam = func(p1, p2 any) (any, error) {
		arg1, ok := p1.(P1)
		if !ok {
			return nil, &WrongKindError{Key: key, Kind: KindFactoryParam2, Reason: paramTypeReason[P1](1, p1)}
		}
		arg2, ok := p2.(P2)
		if !ok {
			return nil, &WrongKindError{Key: key, Kind: KindFactoryParam2, Reason: paramTypeReason[P2](2, p2)}
		}
		return producer(arg1, arg2)
	}
	return registerIn(l, o, r)
}

// RegisterSingletonAsync registers an asynchronous producer invoked at most
// once. Resolution must go through [GetAsync]; concurrent callers share a
// single in-flight production, and the result is cached after the first
// successful completion.
func RegisterSingletonAsync[T any](l *Locator, producer func(context.Context) (T, error), opts ...RegisterOption) error {
	o := buildRegisterOptions(opts)
	key := ServiceKey{Type: typeOf[T](), Name: o.name}

	r := newRegistration(key, KindAsyncSingleton, o)
	r.producerAsync = func(ctx context.Context) (any, error) { return producer(ctx) }
	return registerIn(l, o, r)
}

func registerIn(l *Locator, o registerOptions, r *registration) error {
	p, err := l.targetProfile(o)
	if err != nil {
		return err
	}
	return p.register(r, o.allowOverride)
}

func paramTypeReason[P any](pos int, got any) string {
	if got == nil {
		return fmt.Sprintf("argument %d is nil, want %s", pos, typeOf[P]())
	}
	return fmt.Sprintf("argument %d is %T, want %s", pos, got, typeOf[P]())
}

// ── Unregistration ───────────────────────────────────────────────────────────

// Unregister removes the registration for T (optionally named via
// [WithName]). With [InProfile] only that profile is touched; otherwise
// every profile holding the key has it removed, since the same type may be
// registered under multiple profiles independently. With dispose set, each
// removed registration's instance is disposed; disposal failures are
// returned as DisposalErrors but removal still happens.
func Unregister[T any](ctx context.Context, l *Locator, dispose bool, opts ...RegisterOption) error {
	o := buildRegisterOptions(opts)
	key := ServiceKey{Type: typeOf[T](), Name: o.name}

	if o.profile != "" {
		p, ok := l.manager.Profile(o.profile)
		if !ok {
			return &ProfileNotFoundError{Name: o.profile}
		}
		return p.unregister(ctx, key, dispose)
	}

	found := false
	var disposalErrs []error
	searched := l.manager.ProfileNames()
	for _, name := range searched {
		p, ok := l.manager.Profile(name)
		if !ok || !p.IsRegistered(key) {
			continue
		}
		found = true
		if err := p.unregister(ctx, key, dispose); err != nil && errors.Is(err, ErrDisposal) {
			disposalErrs = append(disposalErrs, err)
		}
	}
	if !found {
		return &NotFoundError{Key: key, Profiles: searched}
	}
	return errors.Join(disposalErrs...)
}

// IsRegistered reports whether T (optionally named) is registered — in the
// profile named via [InProfile], or in any active profile otherwise.
func IsRegistered[T any](l *Locator, opts ...RegisterOption) bool {
	o := buildRegisterOptions(opts)
	key := ServiceKey{Type: typeOf[T](), Name: o.name}
	return l.manager.IsRegistered(key, o.profile)
}
