package view

import (
	"testing"
	"time"
)

func TestHub_SubscribeReceivesLatest(t *testing.T) {
	h := NewHub()
	h.Publish(State{FPS: 10})

	ch, cancel := h.Subscribe()
	defer cancel()

	select {
	case s := <-ch:
		if s.FPS != 10 || s.Version != 1 {
			t.Errorf("unexpected snapshot %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("expected latest snapshot on subscribe")
	}

	h.Publish(State{FPS: 12})
	select {
	case s := <-ch:
		if s.FPS != 12 || s.Version != 2 {
			t.Errorf("unexpected snapshot %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("expected published snapshot")
	}
}

func TestHub_SlowSubscriberKeepsNewest(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()

	for i := 1; i <= subscriberBuffer*3; i++ {
		h.Publish(State{FPS: i})
	}

	var last State
	for len(ch) > 0 {
		last = <-ch
	}
	if last.FPS != subscriberBuffer*3 {
		t.Errorf("expected newest snapshot to survive, got %d", last.FPS)
	}
	if h.Latest().FPS != subscriberBuffer*3 {
		t.Errorf("unexpected latest %d", h.Latest().FPS)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()

	if h.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.SubscriberCount())
	}

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
	if h.SubscriberCount() != 0 {
		t.Errorf("expected no subscribers, got %d", h.SubscriberCount())
	}

	h.Publish(State{})
}
