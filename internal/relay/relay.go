// Package relay fans change events out between instances over Redis
// Pub/Sub so that sessions joined to the same list on different nodes
// see each other's mutations. Subscriptions follow room lifecycle:
// the hub's onRoomActive/onRoomEmpty callbacks drive Subscribe and
// Unsubscribe, so an instance only listens for lists it has local
// members for.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Niza-Khunga/collaborative-todo/internal/metrics"
)

const publishTimeout = 2 * time.Second

// message is the wire format on the Redis channel. Origin lets an
// instance skip events it broadcast locally already.
type message struct {
	Origin uuid.UUID       `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

func listChannel(listID uuid.UUID) string {
	return "list-events:" + listID.String()
}

// LocalSink receives envelopes that originated on other instances.
type LocalSink interface {
	PublishRaw(listID uuid.UUID, data []byte)
}

// Relay bridges the local room hub and Redis Pub/Sub.
type Relay struct {
	rdb    *goredis.Client
	nodeID uuid.UUID
	sink   LocalSink

	mu   sync.Mutex
	subs map[uuid.UUID]*subscription
}

type subscription struct {
	pubsub *goredis.PubSub
	cancel context.CancelFunc
}

// NewClient connects to Redis and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func New(rdb *goredis.Client, sink LocalSink) *Relay {
	return &Relay{
		rdb:    rdb,
		nodeID: uuid.New(),
		sink:   sink,
		subs:   make(map[uuid.UUID]*subscription),
	}
}

// Publish forwards an already-enveloped event to other instances.
// Fire-and-forget: failures are logged and dropped.
func (r *Relay) Publish(listID uuid.UUID, data []byte) {
	msg := message{Origin: r.nodeID, Data: data}
	body, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal relay message", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.rdb.Publish(ctx, listChannel(listID), body).Err(); err != nil {
		slog.Error("Failed to publish relay message", "list_id", listID.String(), "error", err)
		return
	}
	metrics.RelayMessagesTotal.WithLabelValues("published").Inc()
}

// Subscribe starts listening for a list's events from other
// instances. Idempotent.
func (r *Relay) Subscribe(listID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[listID]; exists {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := r.rdb.Subscribe(ctx, listChannel(listID))
	r.subs[listID] = &subscription{pubsub: pubsub, cancel: cancel}

	go r.consume(ctx, listID, pubsub)
	slog.Debug("Relay subscribed", "list_id", listID.String())
}

// Unsubscribe stops listening for a list's events. Idempotent.
func (r *Relay) Unsubscribe(listID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.subs[listID]
	if !exists {
		return
	}
	delete(r.subs, listID)

	sub.cancel()
	_ = sub.pubsub.Close()
	slog.Debug("Relay unsubscribed", "list_id", listID.String())
}

// Close tears down every active subscription.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for listID, sub := range r.subs {
		sub.cancel()
		_ = sub.pubsub.Close()
		delete(r.subs, listID)
	}
}

func (r *Relay) consume(ctx context.Context, listID uuid.UUID, pubsub *goredis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case raw, ok := <-ch:
			if !ok {
				return
			}
			var msg message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				slog.Error("Failed to unmarshal relay message", "error", err)
				continue
			}
			if msg.Origin == r.nodeID {
				metrics.RelayMessagesTotal.WithLabelValues("skipped").Inc()
				continue
			}
			metrics.RelayMessagesTotal.WithLabelValues("received").Inc()
			r.sink.PublishRaw(listID, msg.Data)
		case <-ctx.Done():
			return
		}
	}
}
