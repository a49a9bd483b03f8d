package services

import (
	"log"
	"sync"
	"time"
)

// Entity types carried in change notifications
const (
	EntityTypeCampaign    = "campaign"
	EntityTypeApplication = "application"
	EntityTypeOrder       = "order"
	EntityTypeTransaction = "transaction"
	EntityTypeEarning     = "earning"
)

// Domain event types
const (
	EventCampaignUpdated      = "CampaignUpdated"
	EventApplicationSubmitted = "ApplicationSubmitted"
	EventApplicationApproved  = "ApplicationApproved"
	EventApplicationRejected  = "ApplicationRejected"
	EventOrderCreated         = "OrderCreated"
	EventOrderShipped         = "OrderShipped"
	EventOrderDelivered       = "OrderDelivered"
	EventReviewSubmitted      = "ReviewSubmitted"
	EventSubmissionRejected   = "SubmissionRejected"
	EventOrderCompleted       = "OrderCompleted"
	EventOrderCancelled       = "OrderCancelled"
	EventWalletUpdated        = "WalletUpdated"
)

// Event is emitted by the workflow after a mutation commits. Snapshot is
// the full post-mutation entity, so subscribers never re-derive state.
type Event struct {
	Type       string
	EntityType string
	EntityID   string
	Snapshot   any
	OccurredAt time.Time
}

// EventBus fans domain events out to independent subscribers. Publishing
// never blocks the workflow: a subscriber that falls behind loses events
// and is expected to resync.
type EventBus struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a new subscriber channel with the given buffer.
func (b *EventBus) Subscribe(buffer int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers the event to every subscriber without blocking.
func (b *EventBus) Publish(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			log.Printf("[EVENTS] Dropped %s for %s %s: subscriber buffer full",
				event.Type, event.EntityType, event.EntityID)
		}
	}
}

// Close shuts down all subscriber channels.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
