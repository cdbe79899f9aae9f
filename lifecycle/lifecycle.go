// Package lifecycle carries the app foreground/background signal from
// the device shell to the session layer as a channel-based feed.
package lifecycle

import "sync"

// Phase is the application lifecycle state reported by the platform.
type Phase int

const (
	// PhaseActive: app is foregrounded and interactive.
	PhaseActive Phase = iota
	// PhaseInactive: app is transitioning or partially obscured.
	PhaseInactive
	// PhaseBackground: app is fully backgrounded.
	PhaseBackground
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseInactive:
		return "inactive"
	case PhaseBackground:
		return "background"
	default:
		return "unknown"
	}
}

// ParsePhase converts the shell's wire string to a Phase.
func ParsePhase(s string) (Phase, bool) {
	switch s {
	case "active":
		return PhaseActive, true
	case "inactive":
		return PhaseInactive, true
	case "background":
		return PhaseBackground, true
	default:
		return 0, false
	}
}

// Feed fans lifecycle transitions out to subscribers. Delivery is
// non-blocking: when a subscriber's buffer is full the oldest pending
// phase is dropped, so a slow consumer always sees the newest state.
type Feed struct {
	mu   sync.Mutex
	subs map[int]chan Phase
	next int
}

// NewFeed creates an empty Feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan Phase)}
}

// Subscribe registers a subscriber. The returned cancel func must be
// called at teardown to release the subscription.
func (f *Feed) Subscribe() (<-chan Phase, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	ch := make(chan Phase, 4)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Report publishes a lifecycle transition to all subscribers.
func (f *Feed) Report(p Phase) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p:
			default:
			}
		}
	}
}
