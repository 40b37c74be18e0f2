package resilience

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnreachable = &ConnectivityError{Op: "postgres", Err: syscall.ECONNREFUSED}

func failing(ctx context.Context) (int, error) { return 0, errUnreachable }
func working(ctx context.Context) (int, error) { return 1, nil }

// clockBreaker returns a breaker whose clock is advanced by the caller.
func clockBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *time.Time) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(cfg)
	cb.nowFunc = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	v, err := Execute(context.Background(), cb, "load", working)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := clockBreaker(CircuitBreakerConfig{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = Execute(context.Background(), cb, "load", failing)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	called := false
	_, err := Execute(context.Background(), cb, "load", func(ctx context.Context) (int, error) {
		called = true
		return 0, nil
	})
	assert.False(t, called, "open circuit must not call through")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsConnectivity(err))
}

func TestCircuitBreaker_NonConnectivityErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	_, err := Execute(context.Background(), cb, "load", func(ctx context.Context) (int, error) {
		return 0, errors.New("bad row")
	})
	assert.Error(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_ProbeAfterCooldown(t *testing.T) {
	var transitions []string
	cfg := CircuitBreakerConfig{
		FailureThreshold: 1,
		Cooldown:         30 * time.Second,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	}
	cb, now := clockBreaker(cfg)

	_, _ = Execute(context.Background(), cb, "load", failing)
	assert.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(31 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	v, err := Execute(context.Background(), cb, "load", working)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, now := clockBreaker(CircuitBreakerConfig{FailureThreshold: 2, Cooldown: 10 * time.Second})

	_, _ = Execute(context.Background(), cb, "load", failing)
	_, _ = Execute(context.Background(), cb, "load", failing)
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(11 * time.Second)
	_, err := Execute(context.Background(), cb, "load", failing)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	assert.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(5 * time.Second)
	_, err = Execute(context.Background(), cb, "load", working)
	assert.ErrorIs(t, err, ErrCircuitOpen, "cooldown restarts from the failed probe")
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})
	_, _ = Execute(context.Background(), cb, "load", failing)
	_, _ = Execute(context.Background(), cb, "load", working)
	_, _ = Execute(context.Background(), cb, "load", failing)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}

func TestCircuitBreaker_HalfOpenAdmitsSingleProbe(t *testing.T) {
	cb, now := clockBreaker(CircuitBreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Second})

	_, _ = Execute(context.Background(), cb, "load", failing)
	require.Equal(t, CircuitOpen, cb.State())
	*now = now.Add(11 * time.Second)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Execute(context.Background(), cb, "load", func(ctx context.Context) (int, error) {
			close(entered)
			<-release
			return 1, nil
		})
		done <- err
	}()
	<-entered

	called := false
	_, err := Execute(context.Background(), cb, "load", func(ctx context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.False(t, called, "second caller must not run while the probe is in flight")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, CircuitClosed, cb.State())

	_, err = Execute(context.Background(), cb, "load", working)
	assert.NoError(t, err)
}

func TestCircuitBreaker_StragglerDoesNotSettleProbe(t *testing.T) {
	cb, now := clockBreaker(CircuitBreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Second})

	ok, probe := cb.allow()
	require.True(t, ok)
	require.False(t, probe)

	_, _ = Execute(context.Background(), cb, "load", failing)
	*now = now.Add(11 * time.Second)
	ok, probe = cb.allow()
	require.True(t, ok)
	require.True(t, probe)

	// The call admitted while closed finishes first; the probe still decides.
	cb.record(nil, false)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.record(errUnreachable, true)
	assert.Equal(t, CircuitOpen, cb.State())
}
