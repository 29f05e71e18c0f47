package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/accord/internal/calendar/application"
	"github.com/felixgeelhaar/accord/internal/calendar/infrastructure/resilience"
	schedDomain "github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

// flakyBackend fails the first failures calls of each method, then succeeds.
type flakyBackend struct {
	failures    int
	eventCalls  int
	createCalls int
	deleteCalls int
}

var errBackend = errors.New("backend down")

func (b *flakyBackend) Events(context.Context, string, time.Time, time.Time) ([]application.Event, error) {
	b.eventCalls++
	if b.eventCalls <= b.failures {
		return nil, errBackend
	}
	return []application.Event{{ID: "e1", Title: "Standup"}}, nil
}

func (b *flakyBackend) Create(context.Context, application.Event) error {
	b.createCalls++
	if b.createCalls <= b.failures {
		return errBackend
	}
	return nil
}

func (b *flakyBackend) Delete(context.Context, string) error {
	b.deleteCalls++
	if b.deleteCalls <= b.failures {
		return errBackend
	}
	return nil
}

func testConfig() resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 2 * time.Millisecond
	return cfg
}

func TestClient_Events_RetriesTransientFailures(t *testing.T) {
	backend := &flakyBackend{failures: 2}
	client := resilience.NewClient(backend, testConfig(), nil)

	events, err := client.Events(context.Background(), "alice", time.Now(), time.Now().Add(time.Hour))

	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 3, backend.eventCalls)
}

func TestClient_Events_ExhaustedRetriesSurfaceExternalError(t *testing.T) {
	backend := &flakyBackend{failures: 100}
	client := resilience.NewClient(backend, testConfig(), nil)

	_, err := client.Events(context.Background(), "alice", time.Now(), time.Now().Add(time.Hour))

	require.Error(t, err)
	assert.True(t, schedDomain.IsExternalService(err))
	assert.Equal(t, 4, backend.eventCalls, "initial call plus retry budget")
}

func TestClient_MutationsAreNeverRetried(t *testing.T) {
	backend := &flakyBackend{failures: 1}
	client := resilience.NewClient(backend, testConfig(), nil)

	err := client.Create(context.Background(), application.Event{ID: "e1"})
	require.Error(t, err)
	assert.True(t, schedDomain.IsExternalService(err))
	assert.Equal(t, 1, backend.createCalls)

	err = client.Delete(context.Background(), "e1")
	require.Error(t, err)
	assert.Equal(t, 1, backend.deleteCalls)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	backend := &flakyBackend{failures: 1000}
	cfg := testConfig()
	cfg.MaxRetries = 0
	cfg.FailureThreshold = 3
	client := resilience.NewClient(backend, cfg, nil)

	ctx := context.Background()
	window := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Events(ctx, "alice", window, window.Add(time.Hour))
		require.Error(t, err)
	}
	callsBeforeOpen := backend.eventCalls

	_, err := client.Events(ctx, "alice", window, window.Add(time.Hour))

	require.Error(t, err)
	assert.True(t, schedDomain.IsExternalService(err))
	assert.Equal(t, callsBeforeOpen, backend.eventCalls, "open breaker short-circuits the backend")
}
