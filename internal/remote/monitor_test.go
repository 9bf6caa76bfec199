package remote

import (
	"testing"
	"time"
)

func TestManualMonitorTransitions(t *testing.T) {
	m := NewManualMonitor(true)
	ch := m.Subscribe()

	m.SetOnline(true) // no transition, no event
	m.SetOnline(false)
	m.SetOnline(true)

	if !m.Online() {
		t.Fatal("monitor should report online")
	}
	want := []bool{false, true}
	for i, w := range want {
		select {
		case got := <-ch:
			if got != w {
				t.Fatalf("event %d: got %v, want %v", i, got, w)
			}
		default:
			t.Fatalf("missing transition event %d", i)
		}
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected extra event %v", got)
	default:
	}
}

func TestProbeMonitorFlipsOnReachability(t *testing.T) {
	store := NewMemStore()
	m := NewProbeMonitor(store, time.Second)

	// Missing probe document is still a reachable store.
	m.probe()
	if !m.Online() {
		t.Fatal("reachable store must read online")
	}

	store.SetUnreachable(true)
	m.probe()
	if m.Online() {
		t.Fatal("unreachable store must read offline")
	}

	store.SetUnreachable(false)
	m.probe()
	if !m.Online() {
		t.Fatal("recovered store must read online again")
	}
}
