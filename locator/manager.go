package locator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// ProfileManager owns the set of profiles, the active set, and the
// priority-ordered resolution path across them. A [Locator] embeds one;
// direct use is only needed for diagnostics or custom composition.
type ProfileManager struct {
	mu       sync.RWMutex
	profiles map[string]*Profile

	// order records profile registration order for stable priority ties.
	order []string

	active map[string]struct{}

	// sorted is the lazily computed active-profile list in descending
	// priority order. version bumps on every mutation; sortedVersion
	// records which version sorted was built for.
	sorted        []*Profile
	version       uint64
	sortedVersion uint64

	cache  *ResolutionCache // nil when caching is disabled
	logger *slog.Logger

	resolutions atomic.Uint64
}

// NewProfileManager creates an empty manager with no cache and a silent
// logger.
func NewProfileManager() *ProfileManager {
	return &ProfileManager{
		profiles: make(map[string]*Profile),
		active:   make(map[string]struct{}),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// RegisterProfile adds a profile. Names are unique; a collision fails with
// ErrProfileAlreadyRegistered.
func (m *ProfileManager) RegisterProfile(p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.profiles[p.name]; exists {
		return &ProfileAlreadyRegisteredError{Name: p.name}
	}
	p.onMutate = m.invalidate
	m.profiles[p.name] = p
	m.order = append(m.order, p.name)
	m.invalidate()
	return nil
}

// Profile returns the profile registered under name.
func (m *ProfileManager) Profile(name string) (*Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[name]
	return p, ok
}

// ProfileNames returns all profile names in registration order.
func (m *ProfileManager) ProfileNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// ActiveProfiles returns the names of active profiles in descending
// priority order, ties broken by registration order.
func (m *ProfileManager) ActiveProfiles() []string {
	profiles := m.activeSorted()
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.name
	}
	return names
}

// IsActive reports whether the named profile is currently active.
func (m *ProfileManager) IsActive(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[name]
	return ok
}

// ActivateProfile activates the named profile, first walking its dependsOn
// chain: unknown dependencies and cycles are rejected before any side
// effect, then not-yet-active dependencies are activated post-order so a
// profile never becomes active before its dependencies. Activating an
// already-active profile is a no-op.
func (m *ProfileManager) ActivateProfile(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[name]
	if !ok {
		return &ProfileNotFoundError{Name: name}
	}
	if _, isActive := m.active[name]; isActive {
		return nil
	}

	// Validation pass: no state is touched until the whole chain checks out.
	var chain []string
	if err := m.walkDependencies(name, make(map[string]visitState), chain); err != nil {
		return err
	}

	m.activateWithDependencies(p)
	return nil
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// walkDependencies depth-first validates that every dependency exists and
// that no name recurs on the current path.
func (m *ProfileManager) walkDependencies(name string, states map[string]visitState, chain []string) error {
	switch states[name] {
	case visiting:
		return &CircularDependencyError{Chain: append(append([]string(nil), chain...), name)}
	case visited:
		return nil
	}

	p, ok := m.profiles[name]
	if !ok {
		requiredBy := ""
		if len(chain) > 0 {
			requiredBy = chain[len(chain)-1]
		}
		return &ProfileNotFoundError{Name: name, RequiredBy: requiredBy}
	}

	states[name] = visiting
	chain = append(chain, name)
	for _, dep := range p.dependsOn {
		if err := m.walkDependencies(dep, states, chain); err != nil {
			return err
		}
	}
	states[name] = visited
	return nil
}

// activateWithDependencies activates p's not-yet-active dependencies first,
// then p itself. The caller has already validated the chain.
func (m *ProfileManager) activateWithDependencies(p *Profile) {
	for _, dep := range p.dependsOn {
		if _, isActive := m.active[dep]; isActive {
			continue
		}
		m.activateWithDependencies(m.profiles[dep])
	}
	m.active[p.name] = struct{}{}
	p.setActive(true)
	m.invalidate()
	m.logger.Debug("profile activated", "profile", p.name, "priority", p.priority)
}

// DeactivateProfile deactivates the named profile. It fails with
// ErrRequiredByActiveProfile while any other active profile lists it in
// dependsOn. With dispose set, the profile's registrations are cleared and
// disposed; disposal failures are collected into the returned error but do
// not undo the deactivation (match them with errors.Is(err, ErrDisposal)).
func (m *ProfileManager) DeactivateProfile(ctx context.Context, name string, dispose bool) error {
	m.mu.Lock()

	p, ok := m.profiles[name]
	if !ok {
		m.mu.Unlock()
		return &ProfileNotFoundError{Name: name}
	}
	if _, isActive := m.active[name]; !isActive {
		m.mu.Unlock()
		return nil
	}

	if dependents := m.activeDependentsLocked(name); len(dependents) > 0 {
		m.mu.Unlock()
		return &RequiredByActiveProfileError{Name: name, RequiredBy: dependents}
	}

	delete(m.active, name)
	p.setActive(false)
	m.invalidate()
	m.mu.Unlock()

	m.logger.Debug("profile deactivated", "profile", name, "dispose", dispose)

	if !dispose {
		return nil
	}
	if err := p.clear(ctx, true, true); err != nil {
		m.logger.Warn("disposal failures during profile deactivation", "profile", name, "error", err)
		return err
	}
	return nil
}

// activeDependentsLocked returns the active profiles whose dependsOn lists
// name. Must be called with m.mu held.
func (m *ProfileManager) activeDependentsLocked(name string) []string {
	var dependents []string
	for _, candidate := range m.order {
		if _, isActive := m.active[candidate]; !isActive || candidate == name {
			continue
		}
		for _, dep := range m.profiles[candidate].dependsOn {
			if dep == name {
				dependents = append(dependents, candidate)
				break
			}
		}
	}
	return dependents
}

// SwitchToProfiles makes exactly the target set (plus whatever their
// dependency chains pull in) active: profiles outside the target set are
// deactivated first, then missing ones are activated, avoiding transient
// double-registration conflicts. keep lists names that are never
// deactivated (the locator passes its default profile). With dispose set,
// disposal failures from deactivated profiles are collected into the
// returned error (match with errors.Is(err, ErrDisposal)); the switch
// itself still completes.
func (m *ProfileManager) SwitchToProfiles(ctx context.Context, targets []string, dispose bool, keep ...string) error {
	targetSet := make(map[string]struct{}, len(targets)+len(keep))
	for _, name := range targets {
		targetSet[name] = struct{}{}
	}
	for _, name := range keep {
		targetSet[name] = struct{}{}
	}

	// Targets must exist before anything is torn down.
	m.mu.RLock()
	for _, name := range targets {
		if _, ok := m.profiles[name]; !ok {
			m.mu.RUnlock()
			return &ProfileNotFoundError{Name: name}
		}
	}
	toDeactivate := make([]string, 0)
	for _, name := range m.order {
		if _, isActive := m.active[name]; !isActive {
			continue
		}
		if _, wanted := targetSet[name]; !wanted {
			toDeactivate = append(toDeactivate, name)
		}
	}
	m.mu.RUnlock()

	// Deactivation order matters: a profile cannot go while an active
	// dependent remains, so keep making passes until a pass removes
	// nothing. A stuck pass means something outside the removal set still
	// depends on a member; surface that error. Disposal failures count as
	// progress (the profile did deactivate) but are collected, not dropped.
	var disposalErrs []error
	for len(toDeactivate) > 0 {
		progressed := false
		var lastErr error
		remaining := toDeactivate[:0]
		for _, name := range toDeactivate {
			err := m.DeactivateProfile(ctx, name, dispose)
			if err != nil && !errors.Is(err, ErrDisposal) {
				lastErr = err
				remaining = append(remaining, name)
				continue
			}
			if err != nil {
				disposalErrs = append(disposalErrs, err)
			}
			progressed = true
		}
		if !progressed {
			return errors.Join(append(disposalErrs, lastErr)...)
		}
		toDeactivate = remaining
	}

	for _, name := range targets {
		if err := m.ActivateProfile(name); err != nil {
			return errors.Join(append(disposalErrs, err)...)
		}
	}
	return errors.Join(disposalErrs...)
}

// Resolve finds key across active profiles in descending priority order and
// returns the first profile's result. Positional args (at most two) are
// passed to parameterized factories. Only absence moves the scan to the
// next profile; any other failure surfaces immediately.
func (m *ProfileManager) Resolve(key ServiceKey, args ...any) (any, error) {
	m.resolutions.Add(1)

	if len(args) > 2 {
		return nil, &WrongKindError{Key: key, Kind: KindFactoryParam2, Reason: "at most 2 positional arguments are supported"}
	}
	var p1, p2 any
	if len(args) > 0 {
		p1 = args[0]
	}
	if len(args) > 1 {
		p2 = args[1]
	}

	if m.cache != nil && len(args) == 0 {
		if v, ok := m.cache.Get(key); ok {
			return v, nil
		}
	}

	profiles := m.activeSorted()
	for _, p := range profiles {
		v, reg, err := p.resolveEntry(key, p1, p2, len(args))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if m.cache != nil && len(args) == 0 && reg.cacheable() {
			m.cache.Put(key, v)
		}
		return v, nil
	}
	return nil, &NotFoundError{Key: key, Profiles: profileNames(profiles)}
}

// TryResolve is Resolve with absence reported as (zero, false, nil). All
// other error kinds still propagate.
func (m *ProfileManager) TryResolve(key ServiceKey, args ...any) (any, bool, error) {
	v, err := m.Resolve(key, args...)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// ResolveAsync awaits each candidate profile in priority order; the first
// to resolve wins. Absence in one profile moves the scan on; other errors
// (validation, disposal, producer failures) propagate rather than being
// masked by a lower-priority profile.
func (m *ProfileManager) ResolveAsync(ctx context.Context, key ServiceKey) (any, error) {
	m.resolutions.Add(1)

	if m.cache != nil {
		if v, ok := m.cache.Get(key); ok {
			return v, nil
		}
	}

	profiles := m.activeSorted()
	for _, p := range profiles {
		v, reg, err := p.resolveEntryAsync(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if m.cache != nil && reg.cacheable() {
			m.cache.Put(key, v)
		}
		return v, nil
	}
	return nil, &NotFoundError{Key: key, Profiles: profileNames(profiles)}
}

// IsRegistered reports whether any active profile (or the named one, if
// profile is non-empty) holds key.
func (m *ProfileManager) IsRegistered(key ServiceKey, profile string) bool {
	if profile != "" {
		p, ok := m.Profile(profile)
		return ok && p.IsRegistered(key)
	}
	for _, p := range m.activeSorted() {
		if p.IsRegistered(key) {
			return true
		}
	}
	return false
}

// Resolutions returns the number of Resolve/ResolveAsync calls served.
func (m *ProfileManager) Resolutions() uint64 { return m.resolutions.Load() }

// invalidate bumps the version counter so the sorted active list is rebuilt
// on next read, and drops the resolution cache (a mutation may change which
// profile wins any key). Safe to call with or without m.mu held: it only
// touches atomically-safe state.
func (m *ProfileManager) invalidate() {
	atomic.AddUint64(&m.version, 1)
	if m.cache != nil {
		m.cache.Clear()
	}
}

// activeSorted returns the cached descending-priority list of active
// profiles, rebuilding it only when the version counter moved.
func (m *ProfileManager) activeSorted() []*Profile {
	m.mu.RLock()
	version := atomic.LoadUint64(&m.version)
	if m.sorted != nil && m.sortedVersion == version {
		sorted := m.sorted
		m.mu.RUnlock()
		return sorted
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	version = atomic.LoadUint64(&m.version)
	if m.sorted != nil && m.sortedVersion == version {
		return m.sorted
	}

	sorted := make([]*Profile, 0, len(m.active))
	for _, name := range m.order {
		if _, isActive := m.active[name]; isActive {
			sorted = append(sorted, m.profiles[name])
		}
	}
	// Stable: ties keep profile registration order.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority > sorted[j].priority
	})
	m.sorted = sorted
	m.sortedVersion = version
	return sorted
}

func profileNames(profiles []*Profile) []string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.name
	}
	return names
}

// removeProfile detaches a profile from the manager entirely. Used by the
// locator's reset path; the caller handles disposal.
func (m *ProfileManager) removeProfile(name string) (*Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[name]
	if !ok {
		return nil, false
	}
	delete(m.profiles, name)
	delete(m.active, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	p.setActive(false)
	p.onMutate = nil
	m.invalidate()
	return p, true
}
