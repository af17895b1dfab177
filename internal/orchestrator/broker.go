package orchestrator

import "sync"

// Event names pushed to dashboard subscribers.
const (
	EventStatusChanged   = "status_changed"
	EventExecutorStarted = "executor_started"
)

// Event is a named push with a pre-serialized JSON payload. Payloads are
// marshaled once per broadcast no matter how many subscribers receive them.
type Event struct {
	Name string
	Data []byte
}

// StatusBroker owns one project's set of live push channels. Subscribers
// are removed only by delivery failure or by their own cancel func; there
// is no separate cleanup phase.
type StatusBroker struct {
	mu          sync.Mutex
	closed      bool
	nextID      int64
	bufferSize  int
	subscribers map[int64]chan Event
}

func NewStatusBroker(bufferSize int) *StatusBroker {
	if bufferSize <= 0 {
		bufferSize = 8
	}
	return &StatusBroker{
		bufferSize:  bufferSize,
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a new channel and enqueues initial before releasing
// the lock, so the initial snapshot is always delivered ahead of any
// broadcast that races the registration.
func (b *StatusBroker) Subscribe(initial Event) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	b.nextID++
	id := b.nextID
	ch <- initial
	b.subscribers[id] = ch
	return ch, func() {
		b.unsubscribe(id)
	}
}

// Publish writes event to every subscriber in one pass. A subscriber whose
// buffer is full cannot accept the write and is evicted within the same
// pass; one stuck subscriber never affects the others. Returns the number
// of successful deliveries.
func (b *StatusBroker) Publish(event Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}

	delivered := 0
	for id, ch := range b.subscribers {
		select {
		case ch <- event:
			delivered++
		default:
			delete(b.subscribers, id)
			close(ch)
		}
	}
	return delivered
}

// Len reports the number of live subscribers.
func (b *StatusBroker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *StatusBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}

func (b *StatusBroker) unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subscribers[id]
	if !ok {
		return
	}
	delete(b.subscribers, id)
	close(ch)
}
