package comm

import (
	"sync"
)

// Bus delivers agent-state broadcasts between planner instances. Delivery is
// best effort: the planner tolerates missed messages by reusing the last
// known state for each peer.
type Bus interface {
	// Publish broadcasts an agent state to every other subscriber.
	Publish(msg AgentStateMsg) error
	// Subscribe registers a handler for peer broadcasts. The handler must
	// not block; it is invoked from the bus's delivery goroutine or the
	// publisher's goroutine depending on the implementation.
	Subscribe(selfID int, handler func(AgentStateMsg)) error
	// Close releases the transport.
	Close() error
}

// LocalBus is the in-process Bus used for co-simulation and tests.
// Publishes are delivered synchronously to every subscriber except the
// sender, which matches the tick model: everything published before a tick
// boundary is visible at that boundary.
type LocalBus struct {
	mu   sync.Mutex
	subs map[int]func(AgentStateMsg)
}

// NewLocalBus returns an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: map[int]func(AgentStateMsg){}}
}

// Publish implements Bus.
func (b *LocalBus) Publish(msg AgentStateMsg) error {
	b.mu.Lock()
	handlers := make([]func(AgentStateMsg), 0, len(b.subs))
	for id, h := range b.subs {
		if id == msg.ID {
			continue
		}
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// Subscribe implements Bus.
func (b *LocalBus) Subscribe(selfID int, handler func(AgentStateMsg)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[selfID] = handler
	return nil
}

// Close implements Bus.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = map[int]func(AgentStateMsg){}
	return nil
}
