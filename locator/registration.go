package locator

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Kind is the lifecycle policy of a registration.
type Kind int

const (
	// KindSingleton holds an instance supplied eagerly at registration time.
	KindSingleton Kind = iota

	// KindLazySingleton invokes its producer at most once, on first demand,
	// and caches the result for the registration's lifetime.
	KindLazySingleton

	// KindFactory invokes its producer on every resolution.
	KindFactory

	// KindFactoryParam is a factory taking one caller-supplied argument.
	KindFactoryParam

	// KindFactoryParam2 is a factory taking two caller-supplied arguments.
	KindFactoryParam2

	// KindAsyncSingleton invokes an asynchronous producer at most once and
	// caches the result after the first successful completion. It must be
	// resolved through the async path.
	KindAsyncSingleton
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSingleton:
		return "singleton"
	case KindLazySingleton:
		return "lazy singleton"
	case KindFactory:
		return "factory"
	case KindFactoryParam:
		return "factory (1 param)"
	case KindFactoryParam2:
		return "factory (2 params)"
	case KindAsyncSingleton:
		return "async singleton"
	default:
		return "unknown"
	}
}

// registration holds one registered producer plus its lifecycle and
// disposal policy. Exactly one of the producer fields is set, matching kind.
type registration struct {
	key  ServiceKey
	kind Kind
	opts registerOptions

	producer      func() (any, error)           // lazy singleton, factory
	producerParam func(p1, p2 any) (any, error) // parameterized factories
	producerAsync func(context.Context) (any, error)

	// seq is the profile-local insertion sequence, assigned on register.
	seq uint64

	mu       sync.Mutex
	instance any
	created  bool
	disposed bool

	// flight collapses concurrent async productions into one producer
	// invocation. Failed productions are not cached; the next caller retries.
	flight singleflight.Group
}

func newRegistration(key ServiceKey, kind Kind, opts registerOptions) *registration {
	return &registration{key: key, kind: kind, opts: opts}
}

// cacheable reports whether the current resolution result is idempotent and
// therefore eligible for the resolution cache. Factories are never
// cacheable; an async singleton only is once its instance exists.
func (r *registration) cacheable() bool {
	switch r.kind {
	case KindSingleton, KindLazySingleton:
		return true
	case KindAsyncSingleton:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.created
	default:
		return false
	}
}

// resolve is the synchronous resolution path. argc is how many positional
// arguments the caller supplied (0, 1 or 2).
func (r *registration) resolve(p1, p2 any, argc int) (any, error) {
	switch r.kind {
	case KindSingleton, KindLazySingleton:
		if argc != 0 {
			return nil, &WrongKindError{Key: r.key, Kind: r.kind, Reason: "positional arguments are only valid for parameterized factories"}
		}
		return r.resolveCached()

	case KindFactory:
		if argc != 0 {
			return nil, &WrongKindError{Key: r.key, Kind: r.kind, Reason: "positional arguments are only valid for parameterized factories"}
		}
		return r.produceFresh(nil, nil)

	case KindFactoryParam:
		if argc != 1 {
			return nil, &WrongKindError{Key: r.key, Kind: r.kind, Reason: fmt.Sprintf("requires exactly 1 argument, got %d", argc)}
		}
		return r.produceFresh(p1, nil)

	case KindFactoryParam2:
		if argc != 2 {
			return nil, &WrongKindError{Key: r.key, Kind: r.kind, Reason: fmt.Sprintf("requires exactly 2 arguments, got %d", argc)}
		}
		return r.produceFresh(p1, p2)

	case KindAsyncSingleton:
		// An already-completed async singleton can be read synchronously;
		// triggering production requires the async path.
		r.mu.Lock()
		if r.disposed {
			r.mu.Unlock()
			return nil, &DisposedError{Key: r.key}
		}
		if r.created {
			v := r.instance
			r.mu.Unlock()
			return v, nil
		}
		r.mu.Unlock()
		return nil, &WrongKindError{Key: r.key, Kind: r.kind, Reason: "use GetAsync to trigger asynchronous production"}

	default:
		return nil, &WrongKindError{Key: r.key, Kind: r.kind, Reason: "unsupported kind"}
	}
}

// resolveCached serves Singleton and LazySingleton. The lazy producer runs
// at most once; the lock is held across production so concurrent callers
// observe exactly one invocation.
func (r *registration) resolveCached() (any, error) {
	r.mu.Lock()

	if r.disposed {
		r.mu.Unlock()
		return nil, &DisposedError{Key: r.key}
	}
	if r.created {
		v := r.instance
		r.mu.Unlock()
		return v, nil
	}

	v, err := r.producer()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if err := r.validate(v); err != nil {
		r.mu.Unlock()
		return nil, err
	}

	r.instance = v
	r.created = true
	r.mu.Unlock()

	r.afterProduce(v)
	return v, nil
}

// produceFresh serves the factory kinds: a new instance per call, validated
// but never cached.
func (r *registration) produceFresh(p1, p2 any) (any, error) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return nil, &DisposedError{Key: r.key}
	}
	r.mu.Unlock()

	var v any
	var err error
	if r.producerParam != nil {
		v, err = r.producerParam(p1, p2)
	} else {
		v, err = r.producer()
	}
	if err != nil {
		return nil, err
	}
	if err := r.validate(v); err != nil {
		return nil, err
	}

	r.afterProduce(v)
	return v, nil
}

// resolveAsync is the asynchronous resolution path. Non-async kinds fall
// through to the synchronous resolver so GetAsync works uniformly.
//
// For async singletons, concurrent callers share a single in-flight
// production (single-flight per registration). The producer itself runs
// under context.Background(): one caller's cancellation must not abort a
// production other callers are awaiting. ctx only bounds the wait.
func (r *registration) resolveAsync(ctx context.Context) (any, error) {
	if r.kind != KindAsyncSingleton {
		return r.resolve(nil, nil, 0)
	}

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return nil, &DisposedError{Key: r.key}
	}
	if r.created {
		v := r.instance
		r.mu.Unlock()
		return v, nil
	}
	r.mu.Unlock()

	ch := r.flight.DoChan("produce", func() (any, error) {
		// A previous flight may have completed and left the group between
		// the caller's created check and this call; re-check under the lock
		// so the producer never runs a second time.
		r.mu.Lock()
		if r.created {
			v := r.instance
			r.mu.Unlock()
			return v, nil
		}
		r.mu.Unlock()

		v, err := r.producerAsync(context.Background())
		if err != nil {
			return nil, err
		}
		if err := r.validate(v); err != nil {
			return nil, err
		}

		r.mu.Lock()
		if r.disposed {
			r.mu.Unlock()
			return nil, &DisposedError{Key: r.key}
		}
		r.instance = v
		r.created = true
		r.mu.Unlock()

		r.afterProduce(v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val, nil
	}
}

func (r *registration) validate(v any) error {
	if r.opts.validator == nil {
		return nil
	}
	if err := r.opts.validator(v); err != nil {
		return &ValidationError{Key: r.key, Err: err}
	}
	return nil
}

func (r *registration) afterProduce(v any) {
	if r.opts.onInitialized != nil {
		r.opts.onInitialized(v)
	}
	if r.opts.signalsReady && r.opts.onReady != nil {
		r.opts.onReady(v)
	}
}

// ready reports whether a SignalsReady registration has produced its
// instance yet. Registrations that never signal are always ready.
func (r *registration) ready() bool {
	if !r.opts.signalsReady {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

// dispose runs the disposal policy at most once: custom sync func, else
// custom async func, else the instance's own io.Closer. A registration
// whose producer never ran has nothing to dispose. When wait is false,
// async disposal is fired without awaiting completion.
func (r *registration) dispose(ctx context.Context, wait bool) error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return nil
	}
	r.disposed = true
	inst, created := r.instance, r.created
	r.instance = nil
	r.mu.Unlock()

	if !created {
		return nil
	}

	var err error
	switch {
	case r.opts.dispose != nil:
		err = r.opts.dispose(inst)
	case r.opts.asyncDispose != nil:
		if wait {
			err = r.opts.asyncDispose(ctx, inst)
		} else {
			go func() { _ = r.opts.asyncDispose(context.Background(), inst) }()
		}
	default:
		if closer, ok := inst.(io.Closer); ok {
			err = closer.Close()
		}
	}

	if r.opts.onFinalized != nil {
		r.opts.onFinalized(inst)
	}

	if err != nil {
		return &DisposalError{Key: r.key, Err: err}
	}
	return nil
}
