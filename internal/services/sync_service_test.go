package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func notification(entityType, entityID, payload string, ts time.Time) ChangeNotification {
	return ChangeNotification{
		EntityType:      entityType,
		EntityID:        entityID,
		Snapshot:        json.RawMessage(payload),
		ServerTimestamp: ts,
	}
}

func TestReconciler_Apply(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("newer notification wins", func(t *testing.T) {
		rc := NewReconciler()

		assert.True(t, rc.Apply(notification("order", "order-1", `{"status":"shipped"}`, base)))
		assert.True(t, rc.Apply(notification("order", "order-1", `{"status":"delivered"}`, base.Add(time.Second))))

		held, ok := rc.Get("order", "order-1")
		assert.True(t, ok)
		assert.JSONEq(t, `{"status":"delivered"}`, string(held))
	})

	t.Run("stale notification ignored", func(t *testing.T) {
		rc := NewReconciler()

		assert.True(t, rc.Apply(notification("order", "order-1", `{"status":"delivered"}`, base.Add(time.Second))))
		assert.False(t, rc.Apply(notification("order", "order-1", `{"status":"shipped"}`, base)))

		held, _ := rc.Get("order", "order-1")
		assert.JSONEq(t, `{"status":"delivered"}`, string(held))
	})

	t.Run("duplicate notification ignored", func(t *testing.T) {
		rc := NewReconciler()

		n := notification("order", "order-1", `{"status":"shipped"}`, base)
		assert.True(t, rc.Apply(n))
		assert.False(t, rc.Apply(n))
	})

	t.Run("entities are keyed by type and id", func(t *testing.T) {
		rc := NewReconciler()

		assert.True(t, rc.Apply(notification("order", "x", `{"kind":"order"}`, base)))
		assert.True(t, rc.Apply(notification("campaign", "x", `{"kind":"campaign"}`, base)))

		held, ok := rc.Get("campaign", "x")
		assert.True(t, ok)
		assert.JSONEq(t, `{"kind":"campaign"}`, string(held))
	})
}

func TestReconciler_Resync(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("replaces the whole mirror", func(t *testing.T) {
		rc := NewReconciler()
		rc.Apply(notification("order", "stale-order", `{"status":"shipped"}`, base))

		rc.Resync([]ChangeNotification{
			notification("order", "order-1", `{"status":"completed"}`, base.Add(time.Minute)),
		})

		_, ok := rc.Get("order", "stale-order")
		assert.False(t, ok, "entities absent from server truth are dropped")

		held, ok := rc.Get("order", "order-1")
		assert.True(t, ok)
		assert.JSONEq(t, `{"status":"completed"}`, string(held))
	})

	t.Run("marks the mirror connected", func(t *testing.T) {
		rc := NewReconciler()
		assert.False(t, rc.Connected())

		rc.Resync(nil)
		assert.True(t, rc.Connected())

		rc.MarkDisconnected()
		assert.False(t, rc.Connected())
	})
}

func TestReconciler_Snapshots(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rc := NewReconciler()
	rc.Apply(notification("order", "order-1", `{"id":"order-1"}`, base))
	rc.Apply(notification("order", "order-2", `{"id":"order-2"}`, base))
	rc.Apply(notification("campaign", "campaign-1", `{"id":"campaign-1"}`, base))

	assert.Len(t, rc.Snapshots("order"), 2)
	assert.Len(t, rc.Snapshots("campaign"), 1)
	assert.Empty(t, rc.Snapshots("earning"))
}

func TestEventBus(t *testing.T) {
	t.Run("delivers to subscribers", func(t *testing.T) {
		bus := NewEventBus()
		defer bus.Close()

		ch := bus.Subscribe(4)
		bus.Publish(Event{Type: EventOrderShipped, EntityType: EntityTypeOrder, EntityID: "order-1"})

		select {
		case event := <-ch:
			assert.Equal(t, "order-1", event.EntityID)
			assert.False(t, event.OccurredAt.IsZero())
		case <-time.After(time.Second):
			t.Fatal("expected event was not delivered")
		}
	})

	t.Run("drops when the buffer is full", func(t *testing.T) {
		bus := NewEventBus()
		defer bus.Close()

		ch := bus.Subscribe(1)
		bus.Publish(Event{Type: EventOrderShipped, EntityType: EntityTypeOrder, EntityID: "order-1"})
		bus.Publish(Event{Type: EventOrderDelivered, EntityType: EntityTypeOrder, EntityID: "order-1"})

		event := <-ch
		assert.Equal(t, EventOrderShipped, event.Type)

		select {
		case <-ch:
			t.Fatal("second event should have been dropped")
		default:
		}
	})

	t.Run("publish after close is a no-op", func(t *testing.T) {
		bus := NewEventBus()
		bus.Close()
		bus.Publish(Event{Type: EventOrderShipped, EntityType: EntityTypeOrder, EntityID: "order-1"})
	})
}
