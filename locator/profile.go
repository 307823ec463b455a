package locator

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
)

// Profile is a named, prioritized, independently activatable container of
// service registrations. Among simultaneously active profiles the higher
// priority wins during resolution; ties fall back to profile registration
// order. DependsOn is declarative only — it drives auto-activation and
// validation, never visibility: a profile's registrations are not inherited
// by its dependents.
type Profile struct {
	name      string
	priority  int
	dependsOn []string

	mu            sync.RWMutex
	active        bool
	seq           uint64
	registrations map[ServiceKey]*registration

	// byType indexes instance names per declared type, for enumeration.
	byType map[reflect.Type][]string

	// onMutate is installed by the owning ProfileManager so registration
	// changes invalidate its sorted-profile and resolution caches.
	onMutate func()
}

// NewProfile creates an inactive profile. Register it with a
// [ProfileManager] (or create it through [Locator.CreateProfile]) before
// activating it.
func NewProfile(name string, priority int, dependsOn ...string) *Profile {
	return &Profile{
		name:          name,
		priority:      priority,
		dependsOn:     append([]string(nil), dependsOn...),
		registrations: make(map[ServiceKey]*registration),
		byType:        make(map[reflect.Type][]string),
	}
}

// Name returns the profile's unique name.
func (p *Profile) Name() string { return p.name }

// Priority returns the resolution precedence; higher wins.
func (p *Profile) Priority() int { return p.priority }

// DependsOn returns a copy of the declared dependency names.
func (p *Profile) DependsOn() []string {
	return append([]string(nil), p.dependsOn...)
}

// IsActive reports whether the profile currently participates in resolution.
func (p *Profile) IsActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// IsRegistered reports whether the profile holds a registration for key.
func (p *Profile) IsRegistered(key ServiceKey) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.registrations[key]
	return ok
}

// RegisteredKeys returns every registered key, ordered by registration.
func (p *Profile) RegisteredKeys() []ServiceKey {
	p.mu.RLock()
	regs := make([]*registration, 0, len(p.registrations))
	for _, r := range p.registrations {
		regs = append(regs, r)
	}
	p.mu.RUnlock()

	sort.Slice(regs, func(i, j int) bool { return regs[i].seq < regs[j].seq })
	keys := make([]ServiceKey, len(regs))
	for i, r := range regs {
		keys[i] = r.key
	}
	return keys
}

// RegisteredTypes returns the distinct declared types with at least one
// registration in this profile.
func (p *Profile) RegisteredTypes() []reflect.Type {
	p.mu.RLock()
	defer p.mu.RUnlock()
	types := make([]reflect.Type, 0, len(p.byType))
	for t := range p.byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })
	return types
}

// InstanceNames returns the instance names registered for t, in
// registration order. The unnamed registration appears as "".
func (p *Profile) InstanceNames(t reflect.Type) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.byType[t]...)
}

// Len returns the number of registrations.
func (p *Profile) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.registrations)
}

// setActive is called by the owning manager only.
func (p *Profile) setActive(active bool) {
	p.mu.Lock()
	p.active = active
	p.mu.Unlock()
}

func (p *Profile) mutated() {
	if p.onMutate != nil {
		p.onMutate()
	}
}

// register inserts or (with allowOverride) replaces a registration.
func (p *Profile) register(r *registration, allowOverride bool) error {
	p.mu.Lock()
	if old, exists := p.registrations[r.key]; exists {
		if !allowOverride {
			p.mu.Unlock()
			return &AlreadyRegisteredError{Key: r.key, Profile: p.name}
		}
		p.dropFromIndex(old.key)
	}

	r.seq = p.seq
	p.seq++
	p.registrations[r.key] = r
	p.byType[r.key.Type] = append(p.byType[r.key.Type], r.key.Name)
	p.mu.Unlock()

	p.mutated()
	return nil
}

// lookup returns the registration for key, if any.
func (p *Profile) lookup(key ServiceKey) (*registration, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.registrations[key]
	return r, ok
}

// resolveEntry resolves key within this profile only, returning the
// registration that served it so callers can inspect its kind.
func (p *Profile) resolveEntry(key ServiceKey, p1, p2 any, argc int) (any, *registration, error) {
	r, ok := p.lookup(key)
	if !ok {
		return nil, nil, &NotFoundError{Key: key, Profiles: []string{p.name}}
	}
	v, err := r.resolve(p1, p2, argc)
	if err != nil {
		return nil, nil, err
	}
	return v, r, nil
}

// resolveEntryAsync is the async counterpart of resolveEntry.
func (p *Profile) resolveEntryAsync(ctx context.Context, key ServiceKey) (any, *registration, error) {
	r, ok := p.lookup(key)
	if !ok {
		return nil, nil, &NotFoundError{Key: key, Profiles: []string{p.name}}
	}
	v, err := r.resolveAsync(ctx)
	if err != nil {
		return nil, nil, err
	}
	return v, r, nil
}

// unregister removes the registration for key. With dispose set, the
// instance (if any) is disposed first; a disposal failure does not prevent
// removal and is returned as a DisposalError for the caller to inspect.
func (p *Profile) unregister(ctx context.Context, key ServiceKey, dispose bool) error {
	p.mu.Lock()
	r, ok := p.registrations[key]
	if !ok {
		p.mu.Unlock()
		return &NotFoundError{Key: key, Profiles: []string{p.name}}
	}
	delete(p.registrations, key)
	p.dropFromIndex(key)
	p.mu.Unlock()

	p.mutated()

	if !dispose {
		return nil
	}
	return r.dispose(ctx, true)
}

// clear removes all registrations. With dispose set, every instantiated
// registration is disposed in reverse registration order; individual
// disposal failures are collected and do not abort the rest of the batch.
// With wait unset, asynchronous disposers are fired without being awaited.
func (p *Profile) clear(ctx context.Context, dispose, wait bool) error {
	p.mu.Lock()
	regs := make([]*registration, 0, len(p.registrations))
	for _, r := range p.registrations {
		regs = append(regs, r)
	}
	p.registrations = make(map[ServiceKey]*registration)
	p.byType = make(map[reflect.Type][]string)
	p.mu.Unlock()

	p.mutated()

	if !dispose {
		return nil
	}

	sort.Slice(regs, func(i, j int) bool { return regs[i].seq > regs[j].seq })
	var errs []error
	for _, r := range regs {
		if err := r.dispose(ctx, wait); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// dropFromIndex removes key's instance name from the type index. Must be
// called with p.mu held.
func (p *Profile) dropFromIndex(key ServiceKey) {
	names := p.byType[key.Type]
	for i, n := range names {
		if n == key.Name {
			p.byType[key.Type] = append(names[:i], names[i+1:]...)
			break
		}
	}
	if len(p.byType[key.Type]) == 0 {
		delete(p.byType, key.Type)
	}
}

// pendingReady returns keys of SignalsReady registrations whose instance
// does not exist yet.
func (p *Profile) pendingReady() []ServiceKey {
	p.mu.RLock()
	regs := make([]*registration, 0, len(p.registrations))
	for _, r := range p.registrations {
		regs = append(regs, r)
	}
	p.mu.RUnlock()

	sort.Slice(regs, func(i, j int) bool { return regs[i].seq < regs[j].seq })
	var pending []ServiceKey
	for _, r := range regs {
		if !r.ready() {
			pending = append(pending, r.key)
		}
	}
	return pending
}
