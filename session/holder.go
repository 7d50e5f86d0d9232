package session

import (
	"sync"
)

// EventKind identifies a session transition.
type EventKind int

const (
	// EventEstablished fires on login or restore.
	EventEstablished EventKind = iota + 1
	// EventRenewed fires when a renewal installs new tokens.
	EventRenewed
	// EventEnded fires on logout or forced logout.
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventEstablished:
		return "established"
	case EventRenewed:
		return "renewed"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event describes a session transition. Session is zero for EventEnded.
type Event struct {
	Kind    EventKind
	Session Session
}

// Holder is the single live Session for one authenticated lifetime.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Readers must call Current on every use rather than keep a copy.
// - Listeners run synchronously after the change, outside the lock.
type Holder struct {
	mu        sync.RWMutex
	session   *Session
	profile   *Profile
	listeners map[int]func(Event)
	nextID    int
}

// NewHolder creates an empty Holder.
func NewHolder() *Holder {
	return &Holder{listeners: make(map[int]func(Event))}
}

// Current returns the live session.
func (h *Holder) Current() (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return Session{}, false
	}
	return *h.session, true
}

// AccessToken returns the live access token, or "" when logged out.
func (h *Holder) AccessToken() string {
	s, _ := h.Current()
	return s.AccessToken
}

// Profile returns the live user profile.
func (h *Holder) Profile() (Profile, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.profile == nil {
		return Profile{}, false
	}
	return *h.profile, true
}

// Establish installs a new session and profile.
func (h *Holder) Establish(s Session, p Profile) {
	h.mu.Lock()
	h.session = &s
	h.profile = &p
	listeners := h.snapshotListeners()
	h.mu.Unlock()

	notify(listeners, Event{Kind: EventEstablished, Session: s})
}

// InstallIf replaces the tokens of the current session, keeping the
// profile, only while its access token is still expected. persist runs
// under the lock before the swap, so a Clear cannot slip between persisting
// and installing; when it fails nothing is installed. It reports whether s
// was installed.
func (h *Holder) InstallIf(expected string, s Session, persist func() error) (bool, error) {
	h.mu.Lock()
	if h.session == nil || h.session.AccessToken != expected {
		h.mu.Unlock()
		return false, nil
	}
	if persist != nil {
		if err := persist(); err != nil {
			h.mu.Unlock()
			return false, err
		}
	}
	h.session = &s
	listeners := h.snapshotListeners()
	h.mu.Unlock()

	notify(listeners, Event{Kind: EventRenewed, Session: s})
	return true, nil
}

// Clear drops the session and profile. Clearing an empty holder still
// notifies listeners.
func (h *Holder) Clear() {
	h.mu.Lock()
	h.session = nil
	h.profile = nil
	listeners := h.snapshotListeners()
	h.mu.Unlock()

	notify(listeners, Event{Kind: EventEnded})
}

// Subscribe registers fn for every transition and returns its unsubscribe.
func (h *Holder) Subscribe(fn func(Event)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

func (h *Holder) snapshotListeners() []func(Event) {
	if len(h.listeners) == 0 {
		return nil
	}
	out := make([]func(Event), 0, len(h.listeners))
	for id := 0; id < h.nextID; id++ {
		if fn, ok := h.listeners[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(listeners []func(Event), ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}
