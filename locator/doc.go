// Package locator provides a profile-aware runtime service registry for Go.
//
// Services are registered as explicit producers — there is no reflection
// scanning and no constructor auto-wiring — and resolved by declared type
// plus an optional instance name. Registrations live in profiles: named,
// prioritized, independently activatable configuration layers that can
// depend on one another and override one another during resolution.
//
// # Quick Start
//
//	l := locator.New()
//	locator.RegisterSingleton(l, NewConfig())
//	locator.RegisterLazySingleton(l, func() (*Database, error) {
//	    return OpenDatabase()
//	})
//
//	db, err := locator.Get[*Database](l)
//
// # Lifecycles
//
// [RegisterSingleton] — an eagerly supplied instance, shared forever.
//
// [RegisterLazySingleton] — the producer runs at most once, on first demand.
//
// [RegisterFactory] — a fresh instance on every Get.
//
// [RegisterFactoryParam] / [RegisterFactoryParam2] — factories taking one or
// two caller-supplied arguments at resolution time.
//
// [RegisterSingletonAsync] — an asynchronous producer resolved through
// [GetAsync]; concurrent callers share one in-flight production.
//
// # Profiles
//
// Every locator owns an always-active default profile. Additional profiles
// layer on top of it by priority — higher wins when several active profiles
// register the same key:
//
//	l.CreateProfile("production", 100)
//	locator.RegisterSingleton(l, prodMailer, locator.InProfile("production"))
//	l.ActivateProfile("production")
//
// Activating a profile transitively activates everything it depends on;
// cycles are detected and rejected before any state changes. A profile
// cannot be deactivated while an active profile depends on it.
//
// # Disposal
//
// Unregistration, profile deactivation, and [Locator.Reset] can dispose the
// instances they remove: a custom [WithDispose] function first, else
// [WithAsyncDispose], else the instance's own io.Closer. Disposal runs at
// most once per registration, and individual failures never abort the rest
// of a batch — they come back as DisposalError values.
//
// # Caching
//
// A bounded LRU cache in front of resolution skips the profile scan for
// repeated lookups of idempotent results. It is a pure accelerator:
// disabling it with [WithoutCache] changes nothing observable but speed.
package locator
