package runner

import (
	"sync"

	"github.com/hperssn/interviewclock/internal/domain"
)

const subscriberBuffer = 16

// Broadcaster fans session events out to subscribers. Sends never block: a
// subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]map[chan domain.Event]struct{}),
	}
}

// Subscribe registers for events of one session. The returned func
// unsubscribes and closes the channel; calling it twice is safe.
func (b *Broadcaster) Subscribe(id string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	b.mu.Lock()
	set, ok := b.subs[id]
	if !ok {
		set = make(map[chan domain.Event]struct{})
		b.subs[id] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(id, ch) })
	}
}

func (b *Broadcaster) unsubscribe(id string, ch chan domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.subs[id]
	delete(set, ch)
	if len(set) == 0 {
		delete(b.subs, id)
	}
	close(ch)
}

func (b *Broadcaster) Publish(e domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[e.InterviewID] {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *Broadcaster) Subscribers(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[id])
}
