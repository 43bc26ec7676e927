package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
)

// EventType discriminates ledger events.
type EventType string

const (
	EventOwnershipTransferred EventType = "ownership_transferred"
	EventProviderAdded        EventType = "provider_added"
	EventProviderRemoved      EventType = "provider_removed"
	EventPaused               EventType = "paused"
	EventUnpaused             EventType = "unpaused"
	EventCooldownChanged      EventType = "cooldown_changed"
	EventBatchOpened          EventType = "batch_opened"
	EventBatchClosed          EventType = "batch_closed"
	EventTimeDeposited        EventType = "time_deposited"
	EventTimeWithdrawn        EventType = "time_withdrawn"
	EventSummaryRequested     EventType = "summary_requested"
	EventSummaryDisclosed     EventType = "summary_disclosed"
)

// Event is a single entry in the ledger's audit feed. Deposit and withdraw
// events carry the encrypted handle, never the plaintext amount; the only
// event with cleartext totals is EventSummaryDisclosed, emitted after the
// oracle's proof has been verified.
type Event struct {
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`
	Type EventType `json:"type"`

	Account  Address `json:"account,omitempty"`
	NewOwner Address `json:"new_owner,omitempty"`

	BatchID   uint64         `json:"batch_id,omitempty"`
	Handle    fhe.Ciphertext `json:"handle,omitempty"`
	RequestID uint64         `json:"request_id,omitempty"`

	TotalDeposited uint32 `json:"total_deposited,omitempty"`
	TotalWithdrawn uint32 `json:"total_withdrawn,omitempty"`

	OldCooldown time.Duration `json:"old_cooldown,omitempty"`
	NewCooldown time.Duration `json:"new_cooldown,omitempty"`
}

type eventSubscriber struct {
	ctx context.Context
	ch  chan Event
}

// EventLog is an append-only in-memory event feed with subscriber
// notification. Slow subscribers miss events rather than blocking the
// ledger.
type EventLog struct {
	mu          sync.RWMutex
	events      []Event
	nextSeq     uint64
	subscribers []eventSubscriber
}

// NewEventLog creates an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{nextSeq: 1}
}

// Append records an event, assigns its sequence number, and notifies
// subscribers.
func (l *EventLog) Append(ev Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.Seq = l.nextSeq
	l.nextSeq++
	l.events = append(l.events, ev)

	toRemove := []int{}
	for i, sub := range l.subscribers {
		select {
		case <-sub.ctx.Done():
			close(sub.ch)
			toRemove = append(toRemove, i)
		case sub.ch <- ev:
		default:
			// Skip if channel is full
		}
	}

	slices.Reverse(toRemove)
	for _, i := range toRemove {
		l.subscribers = slices.Delete(l.subscribers, i, i+1)
	}

	return ev
}

// Subscribe returns a channel receiving future events until ctx is done.
func (l *EventLog) Subscribe(ctx context.Context) <-chan Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan Event, 64)
	l.subscribers = append(l.subscribers, eventSubscriber{ctx, ch})
	return ch
}

// Recent returns up to n most recent events, oldest first.
func (l *EventLog) Recent(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// Len returns the number of recorded events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
