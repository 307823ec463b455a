package locator

import "fmt"

// IssueKind classifies a finding of [ProfileManager.ValidateProfiles].
type IssueKind int

const (
	// IssueMissingDependency — an active profile depends on a name no
	// profile is registered under.
	IssueMissingDependency IssueKind = iota

	// IssueInactiveDependency — the dependency exists but is not active.
	IssueInactiveDependency

	// IssueCircularDependency — the dependency chain loops back on itself.
	IssueCircularDependency
)

func (k IssueKind) String() string {
	switch k {
	case IssueMissingDependency:
		return "missing dependency"
	case IssueInactiveDependency:
		return "inactive dependency"
	case IssueCircularDependency:
		return "circular dependency"
	default:
		return "unknown"
	}
}

// Issue is one finding of the diagnostic validation pass.
type Issue struct {
	Profile    string
	Kind       IssueKind
	Dependency string   // set for missing/inactive findings
	Chain      []string // set for circular findings
}

func (i Issue) String() string {
	switch i.Kind {
	case IssueCircularDependency:
		return fmt.Sprintf("profile %q: %s: %v", i.Profile, i.Kind, i.Chain)
	default:
		return fmt.Sprintf("profile %q: %s: %q", i.Profile, i.Kind, i.Dependency)
	}
}

// ValidateProfiles is a read-only diagnostic pass over the active profiles.
// It reports dependencies that are missing, dependencies that exist but are
// inactive, and circular dependency chains — as data, never as an error.
// The activation/deactivation guards normally prevent these states from
// arising, but profiles mutated while inactive or registered out of band
// can still drift; this pass is how callers audit that.
func (m *ProfileManager) ValidateProfiles() []Issue {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var issues []Issue
	for _, name := range m.order {
		if _, isActive := m.active[name]; !isActive {
			continue
		}
		p := m.profiles[name]

		for _, dep := range p.dependsOn {
			if _, exists := m.profiles[dep]; !exists {
				issues = append(issues, Issue{Profile: name, Kind: IssueMissingDependency, Dependency: dep})
				continue
			}
			if _, depActive := m.active[dep]; !depActive {
				issues = append(issues, Issue{Profile: name, Kind: IssueInactiveDependency, Dependency: dep})
			}
		}

		if chain := m.findCycleLocked(name); chain != nil {
			issues = append(issues, Issue{Profile: name, Kind: IssueCircularDependency, Chain: chain})
		}
	}
	return issues
}

// findCycleLocked returns the first cycle reachable from start, or nil.
// Must be called with m.mu held (read or write).
func (m *ProfileManager) findCycleLocked(start string) []string {
	states := make(map[string]visitState)
	var cycle []string

	var walk func(name string, chain []string) bool
	walk = func(name string, chain []string) bool {
		switch states[name] {
		case visiting:
			cycle = append(append([]string(nil), chain...), name)
			return true
		case visited:
			return false
		}
		p, ok := m.profiles[name]
		if !ok {
			return false
		}
		states[name] = visiting
		chain = append(chain, name)
		for _, dep := range p.dependsOn {
			if walk(dep, chain) {
				return true
			}
		}
		states[name] = visited
		return false
	}

	walk(start, nil)
	return cycle
}
