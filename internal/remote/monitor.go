package remote

import (
	"context"
	"sync"
	"time"
)

// Monitor is the connectivity collaborator: a current online/offline answer
// plus transition events the sync engine subscribes to.
type Monitor interface {
	Online() bool
	Subscribe() <-chan bool
}

// ManualMonitor is a toggle-driven Monitor. The dev server flips it from
// config; tests flip it to simulate going offline and back.
type ManualMonitor struct {
	mu     sync.Mutex
	online bool
	subs   []chan bool
}

func NewManualMonitor(online bool) *ManualMonitor {
	return &ManualMonitor{online: online}
}

func (m *ManualMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe returns a channel receiving each transition. The channel is
// buffered; a slow subscriber drops transitions rather than blocking SetOnline.
func (m *ManualMonitor) Subscribe() <-chan bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan bool, 4)
	m.subs = append(m.subs, ch)
	return ch
}

// SetOnline updates the state and notifies subscribers on actual transitions.
func (m *ManualMonitor) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	for _, ch := range m.subs {
		select {
		case ch <- online:
		default:
		}
	}
}

// ProbeMonitor derives connectivity from periodic store probes: a cheap read
// that fails with ErrUnreachable flips the state offline, a success flips it
// back. Wraps ManualMonitor for state and subscriptions.
type ProbeMonitor struct {
	ManualMonitor
	store    DocStore
	interval time.Duration
	stop     chan struct{}
}

func NewProbeMonitor(store DocStore, interval time.Duration) *ProbeMonitor {
	return &ProbeMonitor{
		ManualMonitor: ManualMonitor{online: true},
		store:         store,
		interval:      interval,
		stop:          make(chan struct{}),
	}
}

// Start launches the probe loop. Call Stop to end it.
func (m *ProbeMonitor) Start() {
	go func() {
		tick := time.NewTicker(m.interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				m.probe()
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *ProbeMonitor) Stop() { close(m.stop) }

func (m *ProbeMonitor) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()
	// A missing probe document still proves the store is reachable; only
	// connectivity-class failures count as offline.
	_, err := m.store.GetDocument(ctx, "health", "probe")
	m.SetOnline(err == nil || !Retryable(err))
}
