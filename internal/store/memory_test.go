package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundtrip(t *testing.T) {
	s := NewMemoryStore()

	if _, ok, _ := s.Get("missing"); ok {
		t.Fatal("missing key reported as present")
	}

	if err := s.Set(KeyCart, []byte("[1]")); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	data, ok, err := s.Get(KeyCart)
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v)", ok, err)
	}
	if string(data) != "[1]" {
		t.Fatalf("value = %q, want %q", data, "[1]")
	}

	if err := s.Delete(KeyCart); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, ok, _ := s.Get(KeyCart); ok {
		t.Fatal("deleted key still present")
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Set(KeyCart, []byte("abc"))

	data, _, _ := s.Get(KeyCart)
	data[0] = 'x'

	fresh, _, _ := s.Get(KeyCart)
	if string(fresh) != "abc" {
		t.Fatalf("stored value mutated through returned slice: %q", fresh)
	}
}

func TestMemoryStoreWatchDeliversSetAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}

	_ = s.Set(KeyCart, []byte("v"))
	_ = s.Delete(KeyCart)

	for _, want := range []string{KeyCart, KeyCart} {
		select {
		case ev := <-events:
			if ev.Key != want {
				t.Fatalf("event key = %q, want %q", ev.Key, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestMemoryStoreDeleteMissingKeyIsSilent(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _ := s.Watch(ctx)
	if err := s.Delete("missing"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v for missing key", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStoreWatchClosesOnCancel(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	events, _ := s.Watch(ctx)
	cancel()

	select {
	case _, open := <-events:
		if open {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
