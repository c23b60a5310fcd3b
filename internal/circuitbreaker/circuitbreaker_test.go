package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func testBreaker(timeout time.Duration) *Breaker {
	return New(Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          timeout,
		Name:             "test",
	})
}

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestExecute_PassesThroughWhenClosed(t *testing.T) {
	b := testBreaker(time.Minute)

	err := b.Execute(context.Background(), succeed)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())

	err = b.Execute(context.Background(), fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateClosed, b.State())
}

func TestExecute_OpensAfterThreshold(t *testing.T) {
	b := testBreaker(time.Minute)

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(context.Background(), succeed)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestExecute_SuccessResetsFailureCount(t *testing.T) {
	b := testBreaker(time.Minute)

	_ = b.Execute(context.Background(), fail)
	_ = b.Execute(context.Background(), fail)
	require.NoError(t, b.Execute(context.Background(), succeed))
	_ = b.Execute(context.Background(), fail)
	_ = b.Execute(context.Background(), fail)

	assert.Equal(t, StateClosed, b.State())
}

func TestExecute_RecoversThroughHalfOpen(t *testing.T) {
	b := testBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	require.Equal(t, StateOpen, b.State())

	time.Sleep(15 * time.Millisecond)

	require.NoError(t, b.Execute(context.Background(), succeed))
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Execute(context.Background(), succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestExecute_FailedProbeReopens(t *testing.T) {
	b := testBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	time.Sleep(15 * time.Millisecond)

	_ = b.Execute(context.Background(), fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestExecute_ClassifierExcludesDomainErrors(t *testing.T) {
	notFound := errors.New("not found")
	b := New(Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		Name:             "classified",
		IsFailure: func(err error) bool {
			return !errors.Is(err, notFound)
		},
	})

	// Domain errors pass through unmasked and never trip the circuit.
	for i := 0; i < 10; i++ {
		err := b.Execute(context.Background(), func() error { return notFound })
		assert.ErrorIs(t, err, notFound)
	}
	assert.Equal(t, StateClosed, b.State())

	_ = b.Execute(context.Background(), fail)
	_ = b.Execute(context.Background(), fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestGetStats(t *testing.T) {
	b := testBreaker(time.Minute)

	stats := b.GetStats()
	assert.Equal(t, "closed", stats.State)
	assert.True(t, stats.Healthy)

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), fail)
	}

	stats = b.GetStats()
	assert.Equal(t, "open", stats.State)
	assert.False(t, stats.Healthy)
	assert.Equal(t, 3, stats.Failures)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
