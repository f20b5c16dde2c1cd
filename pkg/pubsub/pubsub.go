// Package pubsub routes broadcast payloads to subscribed components.
// Delivery is a direct call into the engine, which enqueues the payload on
// the target component's serial queue.
package pubsub

import (
	"log/slog"
	"sync"
)

// DeliverFunc hands one broadcast payload to one subscribed component.
type DeliverFunc func(componentID, channel string, payload any)

// Bus tracks channel subscriptions with two-sided bookkeeping so both
// "who listens to this channel" and "what does this component listen to"
// are O(1). Empty channels are dropped on last unsubscribe.
type Bus struct {
	mu       sync.RWMutex
	channels map[string]map[string]struct{}
	subs     map[string]map[string]struct{}

	deliver DeliverFunc
	logger  *slog.Logger
}

// NewBus returns an empty bus delivering through fn. A nil logger uses
// slog.Default.
func NewBus(fn DeliverFunc, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		channels: make(map[string]map[string]struct{}),
		subs:     make(map[string]map[string]struct{}),
		deliver:  fn,
		logger:   logger.With("component", "pubsub"),
	}
}

// Subscribe adds a component to a channel. Subscribing twice is a no-op.
func (b *Bus) Subscribe(channel, componentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channels[channel] == nil {
		b.channels[channel] = make(map[string]struct{})
	}
	b.channels[channel][componentID] = struct{}{}
	if b.subs[componentID] == nil {
		b.subs[componentID] = make(map[string]struct{})
	}
	b.subs[componentID][channel] = struct{}{}
}

// Unsubscribe removes a component from a channel, dropping the channel
// when it empties.
func (b *Bus) Unsubscribe(channel, componentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(channel, componentID)
}

// UnsubscribeAll removes every subscription a component holds. Called on
// unmount.
func (b *Bus) UnsubscribeAll(componentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for channel := range b.subs[componentID] {
		b.removeLocked(channel, componentID)
	}
}

func (b *Bus) removeLocked(channel, componentID string) {
	if members := b.channels[channel]; members != nil {
		delete(members, componentID)
		if len(members) == 0 {
			delete(b.channels, channel)
		}
	}
	if chans := b.subs[componentID]; chans != nil {
		delete(chans, channel)
		if len(chans) == 0 {
			delete(b.subs, componentID)
		}
	}
}

// Broadcast delivers payload to every component subscribed to channel.
// Subscribers are snapshotted before delivery, so handlers may subscribe
// or unsubscribe without deadlocking the bus.
func (b *Bus) Broadcast(channel string, payload any) int {
	b.mu.RLock()
	members := make([]string, 0, len(b.channels[channel]))
	for id := range b.channels[channel] {
		members = append(members, id)
	}
	b.mu.RUnlock()

	for _, id := range members {
		b.deliver(id, channel, payload)
	}
	if len(members) > 0 {
		b.logger.Debug("broadcast delivered", "channel", channel, "subscribers", len(members))
	}
	return len(members)
}

// Subscribers returns how many components listen to channel.
func (b *Bus) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}

// Channels returns how many channels currently have subscribers.
func (b *Bus) Channels() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels)
}
