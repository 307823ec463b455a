package locator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistration_LazySingleton_ProducerRunsAtMostOnce(t *testing.T) {
	var calls atomic.Int32
	r := newRegistration(KeyOf[string](""), KindLazySingleton, registerOptions{})
	r.producer = func() (any, error) {
		calls.Add(1)
		return "value", nil
	}

	for i := 0; i < 10; i++ {
		v, err := r.resolve(nil, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, "value", v)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistration_LazySingleton_ConcurrentCallersShareOneInvocation(t *testing.T) {
	var calls atomic.Int32
	r := newRegistration(KeyOf[int](""), KindLazySingleton, registerOptions{})
	r.producer = func() (any, error) {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return 42, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := r.resolve(nil, nil, 0)
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistration_LazySingleton_ProducerErrorIsNotCached(t *testing.T) {
	var calls int
	r := newRegistration(KeyOf[string](""), KindLazySingleton, registerOptions{})
	r.producer = func() (any, error) {
		calls++
		if calls == 1 {
			return nil, assert.AnError
		}
		return "ok", nil
	}

	_, err := r.resolve(nil, nil, 0)
	require.ErrorIs(t, err, assert.AnError)

	v, err := r.resolve(nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestRegistration_Factory_FreshInstanceEachCall(t *testing.T) {
	var n int
	r := newRegistration(KeyOf[*int](""), KindFactory, registerOptions{})
	r.producer = func() (any, error) {
		n++
		v := n
		return &v, nil
	}

	first, err := r.resolve(nil, nil, 0)
	require.NoError(t, err)
	second, err := r.resolve(nil, nil, 0)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestRegistration_Factory_RejectsPositionalArgs(t *testing.T) {
	r := newRegistration(KeyOf[string](""), KindFactory, registerOptions{})
	r.producer = func() (any, error) { return "v", nil }

	_, err := r.resolve("unexpected", nil, 1)
	require.ErrorIs(t, err, ErrWrongKind)
}

func TestRegistration_FactoryParam_ArgCountEnforced(t *testing.T) {
	r := newRegistration(KeyOf[string](""), KindFactoryParam, registerOptions{})
	r.producerParam = func(p1, _ any) (any, error) { return p1.(string) + "!", nil }

	_, err := r.resolve(nil, nil, 0)
	require.ErrorIs(t, err, ErrWrongKind)

	v, err := r.resolve("hey", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, "hey!", v)
}

func TestRegistration_AsyncSingleton_SyncPathBeforeProduction(t *testing.T) {
	r := newRegistration(KeyOf[string](""), KindAsyncSingleton, registerOptions{})
	r.producerAsync = func(context.Context) (any, error) { return "async", nil }

	_, err := r.resolve(nil, nil, 0)
	require.ErrorIs(t, err, ErrWrongKind)

	v, err := r.resolveAsync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "async", v)

	// Once produced, the sync path serves the cached instance.
	v, err = r.resolve(nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "async", v)
}

func TestRegistration_AsyncSingleton_SingleFlight(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	r := newRegistration(KeyOf[int](""), KindAsyncSingleton, registerOptions{})
	r.producerAsync = func(context.Context) (any, error) {
		calls.Add(1)
		<-gate
		return 7, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := r.resolveAsync(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 7, v)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(gate)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistration_AsyncSingleton_CompletionWindowNeverReruns(t *testing.T) {
	// Exercises the window where one caller's flight completes and leaves
	// the group while another caller sits between its created check and
	// joining the flight: the late caller must get the published instance,
	// not a second producer invocation.
	for i := 0; i < 5000; i++ {
		var calls atomic.Int32
		r := newRegistration(KeyOf[int](""), KindAsyncSingleton, registerOptions{})
		r.producerAsync = func(context.Context) (any, error) {
			calls.Add(1)
			return 1, nil
		}

		var wg sync.WaitGroup
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := r.resolveAsync(context.Background())
				assert.NoError(t, err)
				assert.Equal(t, 1, v)
			}()
		}
		wg.Wait()

		if !assert.Equal(t, int32(1), calls.Load(), "iteration %d", i) {
			return
		}
	}
}

func TestRegistration_AsyncSingleton_CallerCancellationDoesNotAbortProduction(t *testing.T) {
	gate := make(chan struct{})
	r := newRegistration(KeyOf[int](""), KindAsyncSingleton, registerOptions{})
	r.producerAsync = func(context.Context) (any, error) {
		<-gate
		return 99, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := r.resolveAsync(ctx)
		errc <- err
	}()

	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	// The shared production keeps going; a later caller gets its result.
	close(gate)
	v, err := r.resolveAsync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}

func TestRegistration_AsyncSingleton_FailureNotCached(t *testing.T) {
	var calls int
	r := newRegistration(KeyOf[string](""), KindAsyncSingleton, registerOptions{})
	r.producerAsync = func(context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, assert.AnError
		}
		return "recovered", nil
	}

	_, err := r.resolveAsync(context.Background())
	require.ErrorIs(t, err, assert.AnError)

	v, err := r.resolveAsync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
}

func TestRegistration_Validator_RejectionSurfacesAndNothingIsCached(t *testing.T) {
	boom := errors.New("bad instance")
	r := newRegistration(KeyOf[string](""), KindLazySingleton, registerOptions{
		validator: func(any) error { return boom },
	})
	r.producer = func() (any, error) { return "v", nil }

	_, err := r.resolve(nil, nil, 0)
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, boom)

	r.mu.Lock()
	assert.False(t, r.created)
	r.mu.Unlock()
}

func TestRegistration_Dispose_CustomFuncTakesPrecedenceOverCloser(t *testing.T) {
	closer := &countingCloser{}
	var customCalls int
	r := newRegistration(KeyOf[*countingCloser](""), KindSingleton, registerOptions{
		dispose: func(any) error {
			customCalls++
			return nil
		},
	})
	r.instance = closer
	r.created = true

	require.NoError(t, r.dispose(context.Background(), true))
	assert.Equal(t, 1, customCalls)
	assert.Zero(t, closer.closed, "io.Closer must not run when a custom dispose func is set")
}

func TestRegistration_Dispose_FallsBackToCloser(t *testing.T) {
	closer := &countingCloser{}
	r := newRegistration(KeyOf[*countingCloser](""), KindSingleton, registerOptions{})
	r.instance = closer
	r.created = true

	require.NoError(t, r.dispose(context.Background(), true))
	assert.Equal(t, 1, closer.closed)
}

func TestRegistration_Dispose_RunsAtMostOnce(t *testing.T) {
	closer := &countingCloser{}
	r := newRegistration(KeyOf[*countingCloser](""), KindSingleton, registerOptions{})
	r.instance = closer
	r.created = true

	require.NoError(t, r.dispose(context.Background(), true))
	require.NoError(t, r.dispose(context.Background(), true))
	assert.Equal(t, 1, closer.closed)
}

func TestRegistration_Dispose_NeverInstantiatedIsNoop(t *testing.T) {
	var produced bool
	r := newRegistration(KeyOf[*countingCloser](""), KindLazySingleton, registerOptions{})
	r.producer = func() (any, error) {
		produced = true
		return &countingCloser{}, nil
	}

	require.NoError(t, r.dispose(context.Background(), true))
	assert.False(t, produced)
}

func TestRegistration_Dispose_RejectsFurtherResolution(t *testing.T) {
	r := newRegistration(KeyOf[string](""), KindSingleton, registerOptions{})
	r.instance = "v"
	r.created = true

	require.NoError(t, r.dispose(context.Background(), true))

	_, err := r.resolve(nil, nil, 0)
	require.ErrorIs(t, err, ErrDisposed)
}

func TestRegistration_Dispose_FailureWrappedAsDisposalError(t *testing.T) {
	boom := errors.New("close failed")
	r := newRegistration(KeyOf[string](""), KindSingleton, registerOptions{
		dispose: func(any) error { return boom },
	})
	r.instance = "v"
	r.created = true

	err := r.dispose(context.Background(), true)
	require.ErrorIs(t, err, ErrDisposal)
	require.ErrorIs(t, err, boom)
}

func TestRegistration_AsyncDispose_AwaitedWhenWaiting(t *testing.T) {
	var disposed atomic.Bool
	r := newRegistration(KeyOf[string](""), KindSingleton, registerOptions{
		asyncDispose: func(ctx context.Context, _ any) error {
			disposed.Store(true)
			return nil
		},
	})
	r.instance = "v"
	r.created = true

	require.NoError(t, r.dispose(context.Background(), true))
	assert.True(t, disposed.Load())
}

func TestRegistration_AsyncDispose_FireAndForgetWhenNotWaiting(t *testing.T) {
	done := make(chan struct{})
	r := newRegistration(KeyOf[string](""), KindSingleton, registerOptions{
		asyncDispose: func(ctx context.Context, _ any) error {
			close(done)
			return nil
		},
	})
	r.instance = "v"
	r.created = true

	require.NoError(t, r.dispose(context.Background(), false))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async disposer never ran")
	}
}
