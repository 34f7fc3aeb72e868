// Package engine keeps a per-user conversation view in sync with the
// remote message store. It consumes full-snapshot feed events, filters
// them to the active user, orders them by server timestamp, and reconciles
// optimistic local sends against their durably stored copies.
package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// contentKey is the only identity that survives the store boundary: no
// correlation id links a local send to its stored copy, so pending entries
// are matched to confirmed messages by participants and text.
type contentKey struct {
	sender   string
	receiver string
	text     string
}

type pendingEntry struct {
	msg Message
	key contentKey
	// baseline is how many identical confirmed messages were already
	// visible when this send was issued. Matches are counted against it so
	// old history never retires a fresh entry.
	baseline int
}

// Options configures engine callbacks. OnUpdate fires after every view
// change; OnError receives ErrSubscription and ErrSendFailure conditions.
// Both may be nil. Callbacks run outside the engine lock but must not be
// assumed to run on any particular goroutine.
type Options struct {
	OnUpdate func()
	OnError  func(error)
}

// Engine owns the conversation view for one active user session. One
// engine maps to one subscription; switching identity means closing the
// engine and starting a new one.
type Engine struct {
	store    Store
	user     string
	onUpdate func()
	onError  func(error)

	mu        sync.Mutex
	confirmed []Message
	pending   []pendingEntry
	retired   map[contentKey]int
	view      []Message
	frozen    bool
	closed    bool
	release   func()
}

func New(store Store, user string, opts Options) *Engine {
	e := &Engine{
		store:    store,
		user:     user,
		onUpdate: opts.OnUpdate,
		onError:  opts.OnError,
		retired:  make(map[contentKey]int),
	}
	if e.onUpdate == nil {
		e.onUpdate = func() {}
	}
	if e.onError == nil {
		e.onError = func(error) {}
	}
	return e
}

// User returns the active identity this engine filters for.
func (e *Engine) User() string {
	return e.user
}

// Start opens the live subscription against the store.
func (e *Engine) Start() error {
	release, err := e.store.Subscribe(e.applySnapshot, e.feedFailed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubscription, err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		release()
		return fmt.Errorf("engine closed")
	}
	e.release = release
	e.mu.Unlock()
	return nil
}

// Send validates and optimistically appends a message, then requests the
// durable append in the background. The message is visible in the view
// before any network round trip completes. An append failure is reported
// through OnError; the optimistic entry is not rolled back.
func (e *Engine) Send(receiver, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: message text is empty", ErrValidation)
	}
	if strings.TrimSpace(receiver) == "" {
		return fmt.Errorf("%w: receiver is empty", ErrValidation)
	}

	key := contentKey{sender: e.user, receiver: receiver, text: text}
	msg := Message{
		LocalID:  uuid.NewString(),
		Sender:   e.user,
		Receiver: receiver,
		Text:     text,
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("engine closed")
	}
	// A send issued before the first snapshot sees an empty confirmed set
	// and records baseline 0, so identical history arriving in that first
	// snapshot counts as the match and retires the entry. The client
	// subscribes before it accepts input, so sends normally start from a
	// populated view.
	e.pending = append(e.pending, pendingEntry{
		msg:      msg,
		key:      key,
		baseline: e.countConfirmedLocked(key),
	})
	// optimistic echo
	e.view = append(e.view, msg)
	e.mu.Unlock()
	e.onUpdate()

	go func() {
		if err := e.store.Append(receiver, text); err != nil {
			e.onError(fmt.Errorf("%w: %v", ErrSendFailure, err))
		}
	}()

	return nil
}

// Messages returns the current view projection: confirmed messages of the
// active user's conversations ordered by server timestamp, followed by
// unconfirmed sends in local send order.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.view))
	copy(out, e.view)
	return out
}

// PendingCount returns the number of sends still awaiting confirmation.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Frozen reports whether the feed has terminated and the view no longer
// tracks the store.
func (e *Engine) Frozen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frozen
}

// ClearView empties the view projection only. The store and the
// subscription are untouched; the next snapshot repopulates the view in
// full. This is a display reset, not a deletion.
func (e *Engine) ClearView() {
	e.mu.Lock()
	e.view = nil
	e.mu.Unlock()
	e.onUpdate()
}

// Close releases the subscription and discards the pending set and view.
// It must complete before a subscription for another identity is opened.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	release := e.release
	e.release = nil
	e.confirmed = nil
	e.pending = nil
	e.view = nil
	e.retired = make(map[contentKey]int)
	e.mu.Unlock()

	if release != nil {
		release()
	}
}

// applySnapshot reconciles one full-snapshot feed event: filter to the
// active user, order by timestamp, retire pending entries whose durable
// copies have arrived, and atomically replace the view.
func (e *Engine) applySnapshot(snapshot []Message) {
	e.mu.Lock()
	if e.frozen || e.closed {
		e.mu.Unlock()
		return
	}

	confirmed := make([]Message, 0, len(snapshot))
	for _, m := range snapshot {
		if m.Sender == e.user || m.Receiver == e.user {
			confirmed = append(confirmed, m)
		}
	}
	sort.SliceStable(confirmed, func(i, j int) bool {
		return messageLess(confirmed[i], confirmed[j])
	})

	counts := make(map[contentKey]int)
	for _, m := range confirmed {
		counts[contentKey{sender: m.Sender, receiver: m.Receiver, text: m.Text}]++
	}

	// 1:1 retirement: an entry retires only for a match beyond its
	// baseline and beyond matches already consumed by earlier entries of
	// the same content. Redelivered snapshots change no counts, so
	// retirement is idempotent.
	var kept []pendingEntry
	for _, p := range e.pending {
		if counts[p.key]-p.baseline-e.retired[p.key] >= 1 {
			e.retired[p.key]++
			continue
		}
		kept = append(kept, p)
	}
	e.pending = kept

	// retirement counters are only meaningful while entries of that
	// content are still pending
	live := make(map[contentKey]bool)
	for _, p := range e.pending {
		live[p.key] = true
	}
	for k := range e.retired {
		if !live[k] {
			delete(e.retired, k)
		}
	}

	e.confirmed = confirmed
	view := make([]Message, 0, len(e.confirmed)+len(e.pending))
	view = append(view, e.confirmed...)
	for _, p := range e.pending {
		view = append(view, p.msg)
	}
	e.view = view
	e.mu.Unlock()

	e.onUpdate()
}

// feedFailed freezes the view at its last known state and surfaces the
// terminal subscription failure. The feed is not retried.
func (e *Engine) feedFailed(err error) {
	e.mu.Lock()
	if e.frozen || e.closed {
		e.mu.Unlock()
		return
	}
	e.frozen = true
	e.mu.Unlock()

	e.onError(fmt.Errorf("%w: %v", ErrSubscription, err))
}

func (e *Engine) countConfirmedLocked(key contentKey) int {
	count := 0
	for _, m := range e.confirmed {
		if m.Sender == key.sender && m.Receiver == key.receiver && m.Text == key.text {
			count++
		}
	}
	return count
}

// messageLess orders by server timestamp ascending, store id as tiebreak.
func messageLess(a, b Message) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	ai, aerr := strconv.ParseInt(a.ID, 10, 64)
	bi, berr := strconv.ParseInt(b.ID, 10, 64)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a.ID < b.ID
}
