// Package bus implements the Live-Reload Bus: an in-process fan-out
// notification channel to subscribed client sessions (spec §4.D).
package bus

import (
	"sync"
	"time"
)

// EventType enumerates the typed emissions named in spec §4.D.
type EventType string

const (
	EventReload               EventType = "reload"
	EventUpdate               EventType = "update"
	EventRemove               EventType = "remove"
	EventPeerOnline           EventType = "peer-online"
	EventPeerOffline          EventType = "peer-offline"
	EventPeerDocumentReceived EventType = "peer-document-received"
	EventSyncStatusChanged    EventType = "sync-status-changed"
)

// Event is the small JSON value delivered to subscribers, stamped with a
// wall-clock millisecond per §4.D.
type Event struct {
	Type      EventType `json:"type"`
	TS        int64     `json:"ts"`
	Path      string    `json:"path,omitempty"`
	Peer      string    `json:"peer,omitempty"`
	Host      string    `json:"host,omitempty"`
	OldStatus string    `json:"oldStatus,omitempty"`
	NewStatus string    `json:"newStatus,omitempty"`
}

// Session is a subscriber handle: a buffered delivery channel plus the ID
// used to unsubscribe. The transport layer (internal/api/ws.go) drains Ch.
type Session struct {
	id int64
	Ch chan Event
}

// Bus fans out typed events to any number of subscribed client sessions.
// Delivery is best-effort: a subscriber whose buffer is full is dropped
// (never blocks the publisher), matching §4.D. Within one subscriber,
// emissions are delivered in enqueue order; no ordering is promised
// across subscribers.
type Bus struct {
	mu      sync.Mutex
	nextID  int64
	subs    map[int64]*Session
	bufSize int
}

// New creates a Bus whose per-subscriber channel buffer holds bufSize
// pending events before a slow subscriber is dropped.
func New(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Bus{subs: make(map[int64]*Session), bufSize: bufSize}
}

// Subscribe registers a new session and returns its handle.
func (b *Bus) Subscribe() *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Session{id: b.nextID, Ch: make(chan Event, b.bufSize)}
	b.subs[s.id] = s
	return s
}

// Unsubscribe removes a session and closes its channel.
func (b *Bus) Unsubscribe(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s.id]; !ok {
		return
	}
	delete(b.subs, s.id)
	close(s.Ch)
}

// emit stamps ev and fans it out to every subscriber; a subscriber whose
// buffer is full is dropped entirely (treated as having failed to
// receive, per §4.D: "a subscriber that fails to receive is dropped").
func (b *Bus) emit(ev Event) {
	ev.TS = time.Now().UnixMilli()

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.subs {
		select {
		case s.Ch <- ev:
		default:
			delete(b.subs, id)
			close(s.Ch)
		}
	}
}

// Reload forces clients to re-fetch everything.
func (b *Bus) Reload() { b.emit(Event{Type: EventReload}) }

// Update notifies subscribers that path changed.
func (b *Bus) Update(path string) { b.emit(Event{Type: EventUpdate, Path: path}) }

// Remove notifies subscribers that path was removed.
func (b *Bus) Remove(path string) { b.emit(Event{Type: EventRemove, Path: path}) }

// PeerOnline notifies subscribers that peer transitioned to online.
func (b *Bus) PeerOnline(peer, host string) {
	b.emit(Event{Type: EventPeerOnline, Peer: peer, Host: host})
}

// PeerOffline notifies subscribers that peer transitioned to offline.
func (b *Bus) PeerOffline(peer, host string) {
	b.emit(Event{Type: EventPeerOffline, Peer: peer, Host: host})
}

// PeerDocumentReceived notifies subscribers a pushed document landed at path.
func (b *Bus) PeerDocumentReceived(path string) {
	b.emit(Event{Type: EventPeerDocumentReceived, Path: path})
}

// SyncStatusChanged notifies subscribers a document's sync status changed.
func (b *Bus) SyncStatusChanged(path, oldStatus, newStatus, peer string) {
	b.emit(Event{
		Type:      EventSyncStatusChanged,
		Path:      path,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Peer:      peer,
	})
}

// SubscriberCount reports the current number of live subscribers (used by
// /api/status).
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
