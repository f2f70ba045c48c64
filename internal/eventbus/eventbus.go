// Package eventbus is an in-process synchronous publish/subscribe bus:
// Publish calls every matching subscriber in turn on the publishing
// goroutine, with no queue and no buffering.
package eventbus

import (
	"log/slog"
	"sync"
	"time"
)

// Topic names the nine lifecycle events the engine emits.
type Topic string

const (
	TopicExecutionStarted   Topic = "execution.started"
	TopicExecutionCompleted Topic = "execution.completed"
	TopicExecutionFailed    Topic = "execution.failed"
	TopicExecutionCancelled Topic = "execution.cancelled"
	TopicNodeStarted        Topic = "node.started"
	TopicNodeCompleted      Topic = "node.completed"
	TopicNodeFailed         Topic = "node.failed"
	TopicNodeCached         Topic = "node.cached"
	TopicNodeRetried        Topic = "node.retried"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Topic       Topic          `json:"topic"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data,omitempty"`
}

// Subscriber receives events synchronously on Publish's calling goroutine.
// A panicking or erroring subscriber never aborts delivery to the rest.
type Subscriber func(Event)

// Bus is the process-wide pub-sub hub plus the lifecycle counters the
// spec requires (executions_started, executions_completed, nodes_cached,
// nodes_failed, tokens_total).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Topic][]Subscriber
	all         []Subscriber
	log         *slog.Logger

	counters struct {
		sync.Mutex
		executionsStarted   int64
		executionsCompleted int64
		nodesCached         int64
		nodesFailed         int64
		tokensTotal         int64
	}
}

func New(log *slog.Logger) *Bus {
	return &Bus{subscribers: make(map[Topic][]Subscriber), log: log}
}

// Subscribe registers a handler for one topic.
func (b *Bus) Subscribe(topic Topic, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], sub)
}

// SubscribeAll registers a handler invoked for every topic (used by the
// WebSocket stream and the execution-store event log).
func (b *Bus) SubscribeAll(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, sub)
}

// Publish delivers ev synchronously to every matching subscriber,
// recovering from subscriber panics so one bad handler can't take down
// the engine's hot path.
func (b *Bus) Publish(ev Event) {
	b.updateCounters(ev)

	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers[ev.Topic]...)
	all := append([]Subscriber(nil), b.all...)
	b.mu.RUnlock()

	deliver := func(sub Subscriber) {
		defer func() {
			if r := recover(); r != nil && b.log != nil {
				b.log.Error("eventbus subscriber panicked", "topic", ev.Topic, "recovered", r)
			}
		}()
		sub(ev)
	}
	for _, s := range subs {
		deliver(s)
	}
	for _, s := range all {
		deliver(s)
	}
}

func (b *Bus) updateCounters(ev Event) {
	b.counters.Lock()
	defer b.counters.Unlock()
	switch ev.Topic {
	case TopicExecutionStarted:
		b.counters.executionsStarted++
	case TopicExecutionCompleted:
		b.counters.executionsCompleted++
	case TopicNodeCached:
		b.counters.nodesCached++
	case TopicNodeFailed:
		b.counters.nodesFailed++
	}
	if tok, ok := ev.Data["tokens"].(int); ok {
		b.counters.tokensTotal += int64(tok)
	}
}

// Counters is a point-in-time snapshot of the telemetry counters.
type Counters struct {
	ExecutionsStarted   int64 `json:"executions_started"`
	ExecutionsCompleted int64 `json:"executions_completed"`
	NodesCached         int64 `json:"nodes_cached"`
	NodesFailed         int64 `json:"nodes_failed"`
	TokensTotal         int64 `json:"tokens_total"`
}

func (b *Bus) Counters() Counters {
	b.counters.Lock()
	defer b.counters.Unlock()
	return Counters{
		ExecutionsStarted:   b.counters.executionsStarted,
		ExecutionsCompleted: b.counters.executionsCompleted,
		NodesCached:         b.counters.nodesCached,
		NodesFailed:         b.counters.nodesFailed,
		TokensTotal:         b.counters.tokensTotal,
	}
}
