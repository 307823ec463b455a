package locator

import "sync/atomic"

// defaultLocator is the process-wide convenience instance, initialized
// lazily. Internal logic never reads it; it is strictly a layer over New.
var defaultLocator atomic.Pointer[Locator]

// Default returns the process-wide locator, creating it on first use.
// Prefer [New] for anything test-shaped: locators created there are fully
// isolated from this one.
func Default() *Locator {
	if l := defaultLocator.Load(); l != nil {
		return l
	}
	l := New()
	if defaultLocator.CompareAndSwap(nil, l) {
		return l
	}
	return defaultLocator.Load()
}

// SetDefault replaces the process-wide locator and returns the previous one
// (nil if Default was never called). Intended for tests that need to swap
// in an isolated instance.
func SetDefault(l *Locator) *Locator {
	return defaultLocator.Swap(l)
}
