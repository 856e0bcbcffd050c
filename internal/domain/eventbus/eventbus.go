package eventbus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Bus wraps the underlying event bus so services depend on an injected
// publisher/subscriber instead of a package-level singleton.
type Bus struct {
	bus   evbus.Bus
	async *AsyncBus
}

// New creates a bus with an async worker pool for fire-and-forget publishes.
func New(workers int) *Bus {
	b := &Bus{
		bus:   evbus.New(),
		async: newAsyncBus(workers),
	}
	b.async.start()
	return b
}

// Publish delivers the event synchronously to all subscribers.
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// PublishAsync queues the event for delivery by the worker pool.
func (b *Bus) PublishAsync(topic string, args ...interface{}) {
	b.async.publish(b.bus, topic, args...)
}

// Subscribe registers a handler for the topic.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// HasSubscribers reports whether any handler listens on the topic.
func (b *Bus) HasSubscribers(topic string) bool {
	return b.bus.HasCallback(topic)
}

// Close stops the async workers. Pending queued events are dropped.
func (b *Bus) Close() {
	b.async.stop()
}
