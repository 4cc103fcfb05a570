// Package events carries change notifications from the subsystems that
// produce them (web mutations, run supervision, the activity monitor) to the
// web layer that streams them to clients.
package events

import "sync"

type Type string

const (
	WorktreeCreated Type = "worktree_created"
	WorktreeRemoved Type = "worktree_removed"
	WorktreeSynced  Type = "worktree_synced"
	ProjectAdded    Type = "project_added"
	ProjectRemoved  Type = "project_removed"
	RunStarted      Type = "run_started"
	RunStopped      Type = "run_stopped"
	FSActivity      Type = "fs_activity"
)

// Event is one change notification. Project is the project path in stored
// form; Name identifies the worktree or run the event concerns, when it has
// one.
type Event struct {
	Type    Type   `json:"type"`
	Project string `json:"project,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Broker fans events out to subscribers. Consumers treat every event as a
// hint to re-fetch the state it names, so delivery under backpressure is
// best-effort: Publish never blocks.
type Broker struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a buffered channel that receives published events. The
// caller must call Unsubscribe when done.
func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel. Events published afterwards are
// no longer delivered to it.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
}

// Publish sends ev to all subscribers. Non-blocking: a subscriber whose
// buffer is full misses the event, and the pending ones it already holds
// still prompt the re-fetch.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
