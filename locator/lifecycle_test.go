package locator_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-locator/locator"
)

type connection struct {
	closed atomic.Int32
}

func (c *connection) Close() error {
	c.closed.Add(1)
	return nil
}

func TestLifecycle_UnregisterDisposesExactlyOnce(t *testing.T) {
	l := locator.New()
	conn := &connection{}
	require.NoError(t, locator.RegisterSingleton(l, conn))

	require.NoError(t, locator.Unregister[*connection](context.Background(), l, true))
	assert.Equal(t, int32(1), conn.closed.Load())

	err := locator.Unregister[*connection](context.Background(), l, true)
	require.ErrorIs(t, err, locator.ErrNotFound)
	assert.Equal(t, int32(1), conn.closed.Load())
}

func TestLifecycle_UnregisterWithoutDisposeLeavesInstanceOpen(t *testing.T) {
	l := locator.New()
	conn := &connection{}
	require.NoError(t, locator.RegisterSingleton(l, conn))

	require.NoError(t, locator.Unregister[*connection](context.Background(), l, false))
	assert.Zero(t, conn.closed.Load())
}

func TestLifecycle_UnregisterNeverInstantiatedLazyIsSilent(t *testing.T) {
	l := locator.New()
	var produced bool
	require.NoError(t, locator.RegisterLazySingleton(l, func() (*connection, error) {
		produced = true
		return &connection{}, nil
	}))

	require.NoError(t, locator.Unregister[*connection](context.Background(), l, true))
	assert.False(t, produced)
}

func TestLifecycle_UnregisterScansAllProfiles(t *testing.T) {
	l := locator.New()
	_, err := l.CreateProfile("extra", 10)
	require.NoError(t, err)

	inDefault := &connection{}
	inExtra := &connection{}
	require.NoError(t, locator.RegisterSingleton(l, inDefault))
	require.NoError(t, locator.RegisterSingleton(l, inExtra, locator.InProfile("extra")))

	require.NoError(t, locator.Unregister[*connection](context.Background(), l, true))

	assert.Equal(t, int32(1), inDefault.closed.Load())
	assert.Equal(t, int32(1), inExtra.closed.Load())
	assert.False(t, locator.IsRegistered[*connection](l))
	assert.False(t, locator.IsRegistered[*connection](l, locator.InProfile("extra")))
}

func TestLifecycle_UnregisterScopedToOneProfile(t *testing.T) {
	l := locator.New()
	_, err := l.CreateProfile("extra", 10)
	require.NoError(t, err)

	require.NoError(t, locator.RegisterSingleton(l, &connection{}))
	require.NoError(t, locator.RegisterSingleton(l, &connection{}, locator.InProfile("extra")))

	require.NoError(t, locator.Unregister[*connection](context.Background(), l, false, locator.InProfile("extra")))

	assert.True(t, locator.IsRegistered[*connection](l))
	assert.False(t, locator.IsRegistered[*connection](l, locator.InProfile("extra")))
}

func TestLifecycle_UnregisterSurfacesDisposalFailureButStillRemoves(t *testing.T) {
	boom := errors.New("flush failed")
	l := locator.New()
	require.NoError(t, locator.RegisterSingleton(l, &connection{},
		locator.WithDispose(func(*connection) error { return boom })))

	err := locator.Unregister[*connection](context.Background(), l, true)
	require.ErrorIs(t, err, locator.ErrDisposal)
	require.ErrorIs(t, err, boom)
	assert.False(t, locator.IsRegistered[*connection](l))
}

func TestLifecycle_DeactivateWithDisposeClosesInstances(t *testing.T) {
	l := locator.New()
	_, err := l.CreateProfile("batch", 10)
	require.NoError(t, err)

	conn := &connection{}
	require.NoError(t, locator.RegisterSingleton(l, conn, locator.InProfile("batch")))
	require.NoError(t, l.ActivateProfile("batch"))

	require.NoError(t, l.DeactivateProfile(context.Background(), "batch", true))
	assert.Equal(t, int32(1), conn.closed.Load())
	assert.False(t, locator.IsRegistered[*connection](l, locator.InProfile("batch")))
}

func TestLifecycle_DeactivateWithoutDisposeKeepsRegistrations(t *testing.T) {
	l := locator.New()
	_, err := l.CreateProfile("batch", 10)
	require.NoError(t, err)

	conn := &connection{}
	require.NoError(t, locator.RegisterSingleton(l, conn, locator.InProfile("batch")))
	require.NoError(t, l.ActivateProfile("batch"))

	require.NoError(t, l.DeactivateProfile(context.Background(), "batch", false))
	assert.Zero(t, conn.closed.Load())
	assert.True(t, locator.IsRegistered[*connection](l, locator.InProfile("batch")))

	// Reactivating brings the same registration back into scope.
	require.NoError(t, l.ActivateProfile("batch"))
	got, err := locator.Get[*connection](l)
	require.NoError(t, err)
	assert.Same(t, conn, got)
}

func TestLifecycle_ClearProfileDisposesAndKeepsProfile(t *testing.T) {
	l := locator.New()
	conn := &connection{}
	require.NoError(t, locator.RegisterSingleton(l, conn))

	require.NoError(t, l.ClearProfile(context.Background(), locator.DefaultProfile, true))

	assert.Equal(t, int32(1), conn.closed.Load())
	assert.False(t, locator.IsRegistered[*connection](l))
	assert.Contains(t, l.ActiveProfiles(), locator.DefaultProfile)

	// The profile stays usable.
	require.NoError(t, locator.RegisterSingleton(l, &connection{}))
}

func TestLifecycle_ClearProfileUnknownName(t *testing.T) {
	l := locator.New()
	err := l.ClearProfile(context.Background(), "ghost", false)
	require.ErrorIs(t, err, locator.ErrProfileNotFound)
}

func TestLifecycle_ResetRemovesEverything(t *testing.T) {
	l := locator.New()
	_, err := l.CreateProfile("extra", 10)
	require.NoError(t, err)
	require.NoError(t, l.ActivateProfile("extra"))

	connDefault := &connection{}
	connExtra := &connection{}
	require.NoError(t, locator.RegisterSingleton(l, connDefault))
	require.NoError(t, locator.RegisterSingleton(l, connExtra, locator.InProfile("extra")))

	require.NoError(t, l.Reset(context.Background(), true))

	assert.Equal(t, int32(1), connDefault.closed.Load())
	assert.Equal(t, int32(1), connExtra.closed.Load())
	assert.Equal(t, []string{locator.DefaultProfile}, l.ActiveProfiles())

	_, err = l.GetProfile("extra")
	require.ErrorIs(t, err, locator.ErrProfileNotFound)

	_, err = locator.Get[*connection](l)
	require.ErrorIs(t, err, locator.ErrNotFound)

	// The locator is immediately reusable.
	require.NoError(t, locator.RegisterSingleton(l, &connection{}))
}

func TestLifecycle_ResetWithoutDisposeSkipsDisposers(t *testing.T) {
	l := locator.New()
	conn := &connection{}
	require.NoError(t, locator.RegisterSingleton(l, conn))

	require.NoError(t, l.Reset(context.Background(), false))
	assert.Zero(t, conn.closed.Load())
}

func TestLifecycle_ResetCollectsDisposalFailures(t *testing.T) {
	boom := errors.New("teardown failed")
	l := locator.New()
	require.NoError(t, locator.RegisterSingleton(l, &connection{},
		locator.WithDispose(func(*connection) error { return boom })))

	err := l.Reset(context.Background(), true)
	require.ErrorIs(t, err, locator.ErrDisposal)
	require.ErrorIs(t, err, boom)

	// The reset went through despite the failure.
	assert.Equal(t, []string{locator.DefaultProfile}, l.ActiveProfiles())
}

func TestLifecycle_ResetAwaitsAsyncDisposers(t *testing.T) {
	l := locator.New()
	var done atomic.Bool
	require.NoError(t, locator.RegisterSingleton(l, &connection{},
		locator.WithAsyncDispose(func(ctx context.Context, _ *connection) error {
			time.Sleep(5 * time.Millisecond)
			done.Store(true)
			return nil
		})))

	require.NoError(t, l.Reset(context.Background(), true))
	assert.True(t, done.Load(), "Reset must not return before async disposal finishes")
}

func TestLifecycle_ResetFastDoesNotAwaitAsyncDisposers(t *testing.T) {
	l := locator.New()
	release := make(chan struct{})
	ran := make(chan struct{})
	require.NoError(t, locator.RegisterSingleton(l, &connection{},
		locator.WithAsyncDispose(func(ctx context.Context, _ *connection) error {
			<-release
			close(ran)
			return nil
		})))

	require.NoError(t, l.ResetFast(true))
	assert.Equal(t, []string{locator.DefaultProfile}, l.ActiveProfiles())

	close(release)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("async disposer never fired")
	}
}

func TestLifecycle_SyncDisposePrecedence(t *testing.T) {
	conn := &connection{}
	var syncRan, asyncRan bool
	l := locator.New()
	require.NoError(t, locator.RegisterSingleton(l, conn,
		locator.WithDispose(func(*connection) error {
			syncRan = true
			return nil
		}),
		locator.WithAsyncDispose(func(context.Context, *connection) error {
			asyncRan = true
			return nil
		})))

	require.NoError(t, locator.Unregister[*connection](context.Background(), l, true))

	assert.True(t, syncRan)
	assert.False(t, asyncRan, "sync disposer wins over async")
	assert.Zero(t, conn.closed.Load(), "custom disposers win over io.Closer")
}

func TestLifecycle_Callbacks(t *testing.T) {
	l := locator.New()
	var events []string
	require.NoError(t, locator.RegisterLazySingleton(l, func() (*connection, error) {
		return &connection{}, nil
	},
		locator.SignalsReady(),
		locator.OnInitialized(func(*connection) { events = append(events, "initialized") }),
		locator.OnReady(func(*connection) { events = append(events, "ready") }),
		locator.OnFinalized(func(*connection) { events = append(events, "finalized") }),
	))

	assert.Empty(t, events, "callbacks wait for production")

	_, err := locator.Get[*connection](l)
	require.NoError(t, err)
	assert.Equal(t, []string{"initialized", "ready"}, events)

	// Repeated resolution of a produced singleton fires nothing new.
	_, err = locator.Get[*connection](l)
	require.NoError(t, err)
	assert.Equal(t, []string{"initialized", "ready"}, events)

	require.NoError(t, locator.Unregister[*connection](context.Background(), l, true))
	assert.Equal(t, []string{"initialized", "ready", "finalized"}, events)
}

func TestLifecycle_OnReadyRequiresSignalsReady(t *testing.T) {
	l := locator.New()
	var readyRan bool
	require.NoError(t, locator.RegisterSingleton(l, &connection{},
		locator.OnReady(func(*connection) { readyRan = true })))

	assert.False(t, readyRan, "OnReady is inert without SignalsReady")
}

func TestLifecycle_Readiness(t *testing.T) {
	l := locator.New()
	assert.True(t, l.AllReady(), "no tracked registrations means ready")

	require.NoError(t, locator.RegisterLazySingleton(l, func() (*connection, error) {
		return &connection{}, nil
	}, locator.SignalsReady()))

	assert.False(t, l.AllReady())
	pending := l.PendingReady()
	require.Len(t, pending, 1)
	assert.Equal(t, locator.KeyOf[*connection](""), pending[0])

	_, err := locator.Get[*connection](l)
	require.NoError(t, err)

	assert.True(t, l.AllReady())
	assert.Empty(t, l.PendingReady())
}

func TestLifecycle_ReadinessIgnoresInactiveProfiles(t *testing.T) {
	l := locator.New()
	_, err := l.CreateProfile("dormant", 10)
	require.NoError(t, err)

	require.NoError(t, locator.RegisterLazySingleton(l, func() (*connection, error) {
		return &connection{}, nil
	}, locator.SignalsReady(), locator.InProfile("dormant")))

	assert.True(t, l.AllReady(), "inactive profiles do not gate readiness")

	require.NoError(t, l.ActivateProfile("dormant"))
	assert.False(t, l.AllReady())
}

func TestLifecycle_EagerSingletonIsImmediatelyReady(t *testing.T) {
	l := locator.New()
	require.NoError(t, locator.RegisterSingleton(l, &connection{}, locator.SignalsReady()))
	assert.True(t, l.AllReady())
}
