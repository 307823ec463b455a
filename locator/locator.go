package locator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
)

// DefaultProfile is the reserved name of the built-in profile every locator
// owns. It is always active, has the lowest possible priority (any explicit
// profile outranks it), and cannot be created, deactivated, or switched away.
const DefaultProfile = "default"

const defaultProfilePriority = math.MinInt

// Locator is the composition root: one built-in default profile plus a
// [ProfileManager]. All registration and resolution goes through the
// package-level generic functions ([RegisterSingleton], [Get], ...); the
// methods on Locator cover profile management and lifecycle.
type Locator struct {
	manager *ProfileManager
	logger  *slog.Logger

	cacheEnabled  bool
	cacheCapacity int
}

// Option configures a locator at construction time.
type Option func(*Locator)

// WithLogger attaches a structured logger. The locator is silent without one.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// WithCache sets the resolution cache capacity. The cache is on by default
// with [DefaultCacheCapacity].
func WithCache(capacity int) Option {
	return func(l *Locator) {
		l.cacheEnabled = true
		l.cacheCapacity = capacity
	}
}

// WithoutCache disables the resolution cache entirely. Resolution semantics
// are identical either way; only repeated-lookup cost changes.
func WithoutCache() Option {
	return func(l *Locator) { l.cacheEnabled = false }
}

// New creates an isolated locator with an active default profile. Locators
// never share state: one created here is fully independent from [Default]
// and from any other New result.
func New(opts ...Option) *Locator {
	l := &Locator{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		cacheEnabled:  true,
		cacheCapacity: DefaultCacheCapacity,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.manager = NewProfileManager()
	l.manager.logger = l.logger
	if l.cacheEnabled {
		l.manager.cache = NewResolutionCache(l.cacheCapacity)
	}

	// A fresh manager cannot already hold the reserved name.
	_ = l.manager.RegisterProfile(NewProfile(DefaultProfile, defaultProfilePriority))
	_ = l.manager.ActivateProfile(DefaultProfile)
	return l
}

// Manager exposes the underlying profile manager for diagnostics.
func (l *Locator) Manager() *ProfileManager { return l.manager }

// ── Profile management ───────────────────────────────────────────────────────

// CreateProfile registers a new named profile and returns it. The profile
// starts inactive; call [Locator.ActivateProfile] to bring it into the
// resolution order. The default profile's name is reserved.
func (l *Locator) CreateProfile(name string, priority int, dependsOn ...string) (*Profile, error) {
	if name == DefaultProfile {
		return nil, &ProfileAlreadyRegisteredError{Name: name}
	}
	p := NewProfile(name, priority, dependsOn...)
	if err := l.manager.RegisterProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProfile returns the named profile.
func (l *Locator) GetProfile(name string) (*Profile, error) {
	p, ok := l.manager.Profile(name)
	if !ok {
		return nil, &ProfileNotFoundError{Name: name}
	}
	return p, nil
}

// ActivateProfile activates the named profile, auto-activating its
// dependency chain first. See [ProfileManager.ActivateProfile].
func (l *Locator) ActivateProfile(name string) error {
	return l.manager.ActivateProfile(name)
}

// DeactivateProfile deactivates the named profile, optionally clearing and
// disposing its registrations. The default profile cannot be deactivated.
func (l *Locator) DeactivateProfile(ctx context.Context, name string, dispose bool) error {
	if name == DefaultProfile {
		return fmt.Errorf("%w: %q cannot be deactivated", ErrRequiredByActiveProfile, DefaultProfile)
	}
	return l.manager.DeactivateProfile(ctx, name, dispose)
}

// SwitchToProfiles activates exactly the given profiles (plus their
// dependency chains), deactivating everything else first. The default
// profile always stays active. Deactivated profiles keep their
// registrations; use [Locator.DeactivateProfile] with dispose for teardown.
func (l *Locator) SwitchToProfiles(ctx context.Context, names ...string) error {
	return l.manager.SwitchToProfiles(ctx, names, false, DefaultProfile)
}

// ActiveProfiles returns active profile names in resolution order.
func (l *Locator) ActiveProfiles() []string {
	return l.manager.ActiveProfiles()
}

// ValidateProfiles reports dependency issues across active profiles.
func (l *Locator) ValidateProfiles() []Issue {
	return l.manager.ValidateProfiles()
}

// ClearProfile removes every registration from the named profile,
// optionally disposing instantiated ones. The profile itself survives.
func (l *Locator) ClearProfile(ctx context.Context, name string, dispose bool) error {
	p, ok := l.manager.Profile(name)
	if !ok {
		return &ProfileNotFoundError{Name: name}
	}
	return p.clear(ctx, dispose, true)
}

// ── Readiness ────────────────────────────────────────────────────────────────

// AllReady reports whether every [SignalsReady] registration across active
// profiles has produced its instance.
func (l *Locator) AllReady() bool {
	return len(l.PendingReady()) == 0
}

// PendingReady lists the keys of [SignalsReady] registrations that have not
// produced an instance yet, in profile resolution order.
func (l *Locator) PendingReady() []ServiceKey {
	var pending []ServiceKey
	for _, p := range l.manager.activeSorted() {
		pending = append(pending, p.pendingReady()...)
	}
	return pending
}

// ── Diagnostics ──────────────────────────────────────────────────────────────

// Stats is the read-only diagnostics bundle. None of it is authoritative
// for correctness.
type Stats struct {
	Resolutions    uint64
	ActiveProfiles []string
	Cache          CacheStats
	CacheEnabled   bool
}

// Stats returns a snapshot of the locator's counters.
func (l *Locator) Stats() Stats {
	s := Stats{
		Resolutions:    l.manager.Resolutions(),
		ActiveProfiles: l.manager.ActiveProfiles(),
		CacheEnabled:   l.manager.cache != nil,
	}
	if l.manager.cache != nil {
		s.Cache = l.manager.cache.Stats()
	}
	return s
}

// ── Reset ────────────────────────────────────────────────────────────────────

// Reset tears the locator back to its initial state: every non-default
// profile is deactivated, cleared, and removed; the default profile is
// replaced by a fresh, active one. With dispose set, every instantiated
// registration is disposed, awaiting asynchronous disposers (bounded by
// ctx). Disposal failures are collected into the returned error and do not
// abort the reset.
func (l *Locator) Reset(ctx context.Context, dispose bool) error {
	return l.reset(ctx, dispose, true)
}

// ResetFast is Reset without the wait: asynchronous disposers are fired and
// not awaited, trading guaranteed completion for speed. Synchronous
// disposers still run inline.
func (l *Locator) ResetFast(dispose bool) error {
	return l.reset(context.Background(), dispose, false)
}

func (l *Locator) reset(ctx context.Context, dispose, wait bool) error {
	var errs []error

	for _, name := range l.manager.ProfileNames() {
		if name == DefaultProfile {
			continue
		}
		p, ok := l.manager.removeProfile(name)
		if !ok {
			continue
		}
		if err := p.clear(ctx, dispose, wait); err != nil {
			errs = append(errs, err)
		}
	}

	old, _ := l.manager.removeProfile(DefaultProfile)
	if old != nil {
		if err := old.clear(ctx, dispose, wait); err != nil {
			errs = append(errs, err)
		}
	}
	_ = l.manager.RegisterProfile(NewProfile(DefaultProfile, defaultProfilePriority))
	_ = l.manager.ActivateProfile(DefaultProfile)

	l.logger.Debug("locator reset", "dispose", dispose, "awaited", wait)
	return errors.Join(errs...)
}

// ── Internal plumbing for the generic functions ──────────────────────────────

// targetProfile resolves the registration target: the default profile when
// no profile option was given.
func (l *Locator) targetProfile(o registerOptions) (*Profile, error) {
	name := o.profile
	if name == "" {
		name = DefaultProfile
	}
	p, ok := l.manager.Profile(name)
	if !ok {
		return nil, &ProfileNotFoundError{Name: name}
	}
	return p, nil
}
