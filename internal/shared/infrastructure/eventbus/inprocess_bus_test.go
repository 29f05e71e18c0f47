package eventbus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/accord/internal/shared/domain"
	"github.com/felixgeelhaar/accord/internal/shared/infrastructure/eventbus"
)

func TestInProcessBus_RoutesByKey(t *testing.T) {
	bus := eventbus.NewInProcessBus(nil)
	ctx := context.Background()

	var matched, wildcard, other int
	bus.Subscribe("negotiation.opened", func(context.Context, string, []byte) error {
		matched++
		return nil
	})
	bus.Subscribe("#", func(context.Context, string, []byte) error {
		wildcard++
		return nil
	})
	bus.Subscribe("negotiation.rejected", func(context.Context, string, []byte) error {
		other++
		return nil
	})

	require.NoError(t, bus.Publish(ctx, "negotiation.opened", []byte(`{}`)))

	assert.Equal(t, 1, matched)
	assert.Equal(t, 1, wildcard, "# receives every message")
	assert.Equal(t, 0, other)
}

func TestInProcessBus_HandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := eventbus.NewInProcessBus(nil)

	bus.Subscribe("#", func(context.Context, string, []byte) error {
		return errors.New("handler broken")
	})

	err := bus.Publish(context.Background(), "scheduling.scheduled", []byte(`{}`))
	assert.NoError(t, err, "local consumers are observers, not participants")
}

type failingPublisher struct {
	calls int
}

func (p *failingPublisher) Publish(context.Context, string, []byte) error {
	p.calls++
	return errors.New("broker down")
}

func (p *failingPublisher) Close() error { return nil }

type stubEvent struct {
	domain.BaseEvent
}

func TestPublishDomainEvents_BestEffort(t *testing.T) {
	publisher := &failingPublisher{}
	events := []domain.DomainEvent{
		stubEvent{domain.NewBaseEvent(uuid.New(), "negotiation_session", "negotiation.opened")},
		stubEvent{domain.NewBaseEvent(uuid.New(), "negotiation_session", "scheduling.scheduled")},
	}

	eventbus.PublishDomainEvents(context.Background(), publisher, events, nil)

	assert.Equal(t, 2, publisher.calls, "a failed publish does not stop the batch")
}
