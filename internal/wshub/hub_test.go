package wshub

import (
	"testing"
	"time"

	"github.com/orbitalflow/engine/internal/eventbus"
)

func TestHubRegisterBroadcastUnregister(t *testing.T) {
	h := New(nil)
	go h.Run()

	c := &client{hub: h, executionID: "exec-1", send: make(chan []byte, 4)}
	h.register <- c
	// give the Run goroutine a chance to process the registration
	time.Sleep(10 * time.Millisecond)

	h.broadcast("exec-1", []byte(`{"topic":"node.completed"}`))
	select {
	case msg := <-c.send:
		if string(msg) != `{"topic":"node.completed"}` {
			t.Errorf("broadcast payload = %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}

	h.unregister <- c
	time.Sleep(10 * time.Millisecond)

	h.mu.RLock()
	_, stillPresent := h.connections["exec-1"]
	h.mu.RUnlock()
	if stillPresent {
		t.Error("expected execution entry to be removed after last client unregisters")
	}

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected send channel to be closed after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for send channel to close")
	}
}

func TestHubBroadcastIgnoresUnknownExecution(t *testing.T) {
	h := New(nil)
	// should not panic or block when nobody is watching this execution
	h.broadcast("no-such-execution", []byte("{}"))
}

func TestHubAttachForwardsBusEventsToSubscribedExecution(t *testing.T) {
	h := New(nil)
	go h.Run()
	bus := eventbus.New(nil)
	h.Attach(bus)

	c := &client{hub: h, executionID: "exec-2", send: make(chan []byte, 4)}
	h.register <- c
	time.Sleep(10 * time.Millisecond)

	bus.Publish(eventbus.Event{Topic: eventbus.TopicNodeStarted, ExecutionID: "exec-2"})

	select {
	case <-c.send:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for bus event to reach the websocket client")
	}
}
