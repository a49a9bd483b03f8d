package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// SyncChannel is the Redis pub/sub channel carrying change notifications.
const SyncChannel = "sync:changes"

// ChangeNotification is the wire form of one entity change. Clients merge
// these into their local mirror by server timestamp, never by arrival
// order.
type ChangeNotification struct {
	EntityType      string          `json:"entityType"`
	EntityID        string          `json:"entityId"`
	Snapshot        json.RawMessage `json:"snapshot"`
	ServerTimestamp time.Time       `json:"serverTimestamp"`
}

// SyncPublisher bridges the domain event bus to the push channel. It runs
// after commits only; a dropped or failed publish is recovered by client
// resync, so publishing is fire-and-forget.
type SyncPublisher struct {
	redis *redis.Client
	bus   *EventBus
}

func NewSyncPublisher(redisClient *redis.Client, bus *EventBus) *SyncPublisher {
	return &SyncPublisher{
		redis: redisClient,
		bus:   bus,
	}
}

// Run consumes domain events until the context is cancelled or the bus
// closes.
func (p *SyncPublisher) Run(ctx context.Context) {
	events := p.bus.Subscribe(256)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			p.publish(ctx, event)
		}
	}
}

func (p *SyncPublisher) publish(ctx context.Context, event Event) {
	if p.redis == nil {
		return
	}

	snapshot, err := json.Marshal(event.Snapshot)
	if err != nil {
		log.Printf("[SYNC] Failed to marshal snapshot for %s %s: %v", event.EntityType, event.EntityID, err)
		return
	}

	notification := ChangeNotification{
		EntityType:      event.EntityType,
		EntityID:        event.EntityID,
		Snapshot:        snapshot,
		ServerTimestamp: event.OccurredAt,
	}

	data, err := json.Marshal(notification)
	if err != nil {
		log.Printf("[SYNC] Failed to marshal notification for %s %s: %v", event.EntityType, event.EntityID, err)
		return
	}

	if err := p.redis.Publish(ctx, SyncChannel, data).Err(); err != nil {
		log.Printf("[SYNC] Publish failed for %s %s: %v", event.EntityType, event.EntityID, err)
	}
}

type entityKey struct {
	Type string
	ID   string
}

type entityState struct {
	Snapshot        json.RawMessage
	ServerTimestamp time.Time
}

// Reconciler is a pure state mirror of server truth held by a connected
// client. It applies change notifications last-writer-wins by server
// timestamp and recovers from gaps with a full-replace resync. It never
// validates business transitions.
type Reconciler struct {
	mu        sync.RWMutex
	state     map[entityKey]entityState
	connected bool
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		state: make(map[entityKey]entityState),
	}
}

// Apply merges one notification into the mirror. It returns false when the
// notification is stale or a duplicate: the held snapshot carries a server
// timestamp that is not older.
func (rc *Reconciler) Apply(n ChangeNotification) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	key := entityKey{Type: n.EntityType, ID: n.EntityID}
	if held, ok := rc.state[key]; ok && !n.ServerTimestamp.After(held.ServerTimestamp) {
		return false
	}

	rc.state[key] = entityState{
		Snapshot:        n.Snapshot,
		ServerTimestamp: n.ServerTimestamp,
	}
	return true
}

// Resync replaces the entire mirror with server truth. Called on
// (re)connect or after a detected gap; both missed and duplicated events
// are resolved by the replacement, so no sequence numbers are tracked.
func (rc *Reconciler) Resync(snapshots []ChangeNotification) {
	fresh := make(map[entityKey]entityState, len(snapshots))
	for _, n := range snapshots {
		fresh[entityKey{Type: n.EntityType, ID: n.EntityID}] = entityState{
			Snapshot:        n.Snapshot,
			ServerTimestamp: n.ServerTimestamp,
		}
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.state = fresh
	rc.connected = true
}

// MarkDisconnected records a connection gap. The mirror keeps serving its
// (possibly stale) state until the next Resync.
func (rc *Reconciler) MarkDisconnected() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.connected = false
}

// Connected reports whether the mirror is known to be gap-free.
func (rc *Reconciler) Connected() bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.connected
}

// Get returns the held snapshot for one entity.
func (rc *Reconciler) Get(entityType, entityID string) (json.RawMessage, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	held, ok := rc.state[entityKey{Type: entityType, ID: entityID}]
	if !ok {
		return nil, false
	}
	return held.Snapshot, true
}

// Snapshots returns every held snapshot of the given entity type.
func (rc *Reconciler) Snapshots(entityType string) []json.RawMessage {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	var out []json.RawMessage
	for key, held := range rc.state {
		if key.Type == entityType {
			out = append(out, held.Snapshot)
		}
	}
	return out
}

// Listen subscribes to the push channel and feeds the reconciler until the
// context is cancelled. On subscription loss it marks the mirror
// disconnected and invokes refetch to resync from server truth.
func (rc *Reconciler) Listen(ctx context.Context, redisClient *redis.Client, refetch func(context.Context) ([]ChangeNotification, error)) error {
	sub := redisClient.Subscribe(ctx, SyncChannel)
	defer sub.Close()

	// Initial full fetch replaces whatever the mirror held before.
	snapshots, err := refetch(ctx)
	if err != nil {
		return err
	}
	rc.Resync(snapshots)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			rc.MarkDisconnected()
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				// Subscription lost; the caller reconnects by invoking
				// Listen again, which starts with a full resync.
				rc.MarkDisconnected()
				return ErrSubscriptionLost
			}

			var n ChangeNotification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				log.Printf("[SYNC] Malformed notification: %v", err)
				continue
			}
			rc.Apply(n)
		}
	}
}
