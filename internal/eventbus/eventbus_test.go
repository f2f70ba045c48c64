package eventbus

import (
	"sync"
	"testing"
)

func TestSubscribeReceivesMatchingTopic(t *testing.T) {
	b := New(nil)
	var got Event
	var wg sync.WaitGroup
	wg.Add(1)
	b.Subscribe(TopicNodeCompleted, func(ev Event) {
		got = ev
		wg.Done()
	})

	b.Publish(Event{Topic: TopicNodeCompleted, ExecutionID: "e1", NodeID: "n1"})
	wg.Wait()

	if got.NodeID != "n1" {
		t.Errorf("NodeID = %q, want n1", got.NodeID)
	}
}

func TestSubscribeDoesNotReceiveOtherTopics(t *testing.T) {
	b := New(nil)
	called := false
	b.Subscribe(TopicNodeFailed, func(Event) { called = true })

	b.Publish(Event{Topic: TopicNodeCompleted})

	if called {
		t.Error("expected subscriber not to be called for a different topic")
	}
}

func TestSubscribeAllReceivesEveryTopic(t *testing.T) {
	b := New(nil)
	var count int
	var mu sync.Mutex
	b.SubscribeAll(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Publish(Event{Topic: TopicExecutionStarted})
	b.Publish(Event{Topic: TopicNodeCompleted})

	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestPublishRecoversFromSubscriberPanic(t *testing.T) {
	b := New(nil)
	called := false
	b.Subscribe(TopicNodeFailed, func(Event) { panic("boom") })
	b.Subscribe(TopicNodeFailed, func(Event) { called = true })

	b.Publish(Event{Topic: TopicNodeFailed})

	if !called {
		t.Error("expected second subscriber to still run after the first panicked")
	}
}

func TestCountersTrackLifecycleEvents(t *testing.T) {
	b := New(nil)
	b.Publish(Event{Topic: TopicExecutionStarted})
	b.Publish(Event{Topic: TopicExecutionCompleted})
	b.Publish(Event{Topic: TopicNodeCached})
	b.Publish(Event{Topic: TopicNodeFailed})
	b.Publish(Event{Topic: TopicNodeCompleted, Data: map[string]any{"tokens": 42}})

	c := b.Counters()
	if c.ExecutionsStarted != 1 || c.ExecutionsCompleted != 1 || c.NodesCached != 1 || c.NodesFailed != 1 {
		t.Errorf("counters = %+v", c)
	}
	if c.TokensTotal != 42 {
		t.Errorf("TokensTotal = %d, want 42", c.TokensTotal)
	}
}
