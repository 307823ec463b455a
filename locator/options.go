package locator

import "context"

// registerOptions is the per-registration options bundle collected from
// RegisterOption values at the call site.
type registerOptions struct {
	name          string
	profile       string
	allowOverride bool
	signalsReady  bool

	dispose      func(any) error
	asyncDispose func(context.Context, any) error
	validator    func(any) error

	onInitialized func(any)
	onReady       func(any)
	onFinalized   func(any)
}

// RegisterOption configures a single registration. Options carrying a typed
// callback (WithDispose, WithValidator, ...) are generic constructors that
// erase the callback internally, so the call site stays fully typed.
type RegisterOption func(*registerOptions)

// WithName gives the registration an instance name, isolating it from the
// unnamed registration of the same type.
//
//	locator.RegisterSingleton(l, primary, locator.WithName("primary"))
func WithName(name string) RegisterOption {
	return func(o *registerOptions) { o.name = name }
}

// InProfile targets a named profile instead of the default one. The profile
// must already exist.
func InProfile(profile string) RegisterOption {
	return func(o *registerOptions) { o.profile = profile }
}

// AllowOverride permits replacing an existing registration for the same key.
// Without it, duplicate registration fails with ErrAlreadyRegistered.
func AllowOverride() RegisterOption {
	return func(o *registerOptions) { o.allowOverride = true }
}

// SignalsReady marks the registration as participating in readiness
// tracking: [Locator.AllReady] reports false until its instance exists.
func SignalsReady() RegisterOption {
	return func(o *registerOptions) { o.signalsReady = true }
}

// WithDispose sets a custom synchronous disposal function. It takes
// precedence over WithAsyncDispose and over the instance's own io.Closer.
func WithDispose[T any](fn func(T) error) RegisterOption {
	return func(o *registerOptions) {
		o.dispose = func(v any) error { return fn(v.(T)) }
	}
}

// WithAsyncDispose sets a custom asynchronous disposal function, used when
// no synchronous one is set. Awaited by [Locator.Reset] and dispose-enabled
// deactivation; fired without waiting by [Locator.ResetFast].
func WithAsyncDispose[T any](fn func(context.Context, T) error) RegisterOption {
	return func(o *registerOptions) {
		o.asyncDispose = func(ctx context.Context, v any) error { return fn(ctx, v.(T)) }
	}
}

// WithValidator runs fn against every freshly produced instance. A non-nil
// error surfaces as a ValidationError and the instance is not cached.
func WithValidator[T any](fn func(T) error) RegisterOption {
	return func(o *registerOptions) {
		o.validator = func(v any) error { return fn(v.(T)) }
	}
}

// OnInitialized is invoked once per produced instance, right after
// production (and validation) succeeds.
func OnInitialized[T any](fn func(T)) RegisterOption {
	return func(o *registerOptions) {
		o.onInitialized = func(v any) { fn(v.(T)) }
	}
}

// OnReady is invoked when a registration marked with [SignalsReady]
// produces its instance.
func OnReady[T any](fn func(T)) RegisterOption {
	return func(o *registerOptions) {
		o.onReady = func(v any) { fn(v.(T)) }
	}
}

// OnFinalized is invoked after the registration's instance is disposed.
func OnFinalized[T any](fn func(T)) RegisterOption {
	return func(o *registerOptions) {
		o.onFinalized = func(v any) { fn(v.(T)) }
	}
}

func buildRegisterOptions(opts []RegisterOption) registerOptions {
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
