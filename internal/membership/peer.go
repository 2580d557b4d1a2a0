// Package membership implements bully-style leader election and a peer
// table keyed by node id, never pruned once a peer is seen.
package membership

import (
	"sync"
)

type NodeID uint64

// Role is the node's exactly-one-at-a-time state.
type Role int

const (
	Startup Role = iota
	Idle
	ElectionRole
	Master
	Slave
)

func (r Role) String() string {
	switch r {
	case Startup:
		return "startup"
	case Idle:
		return "idle"
	case ElectionRole:
		return "election"
	case Master:
		return "master"
	case Slave:
		return "slave"
	default:
		return "unknown"
	}
}

// Peer is one entry in the peer table, keyed by id and never removed
// once seen.
type Peer struct {
	ID         NodeID
	IP         uint32
	Role       Role
	Group      string
	DeviceName string
	LastSeenMs int64
}

// Table is the peer map. Reads tolerate staleness; every method takes the
// table's own lock, so the radio callback's Touch/Upsert writes are safe
// alongside readers on other threads.
type Table struct {
	mu    sync.RWMutex
	peers map[NodeID]*Peer
}

func NewTable() *Table {
	return &Table{peers: make(map[NodeID]*Peer)}
}

// Upsert inserts-or-updates a peer by id from an inbound PeerAnnouncement.
func (t *Table) Upsert(id NodeID, ip uint32, role Role, group, deviceName string, nowMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[id]
	if !ok {
		p = &Peer{ID: id}
		t.peers[id] = p
	}
	p.IP = ip
	p.Role = role
	p.Group = group
	p.DeviceName = deviceName
	p.LastSeenMs = nowMs
}

// Touch updates only LastSeenMs, used on receipt of any frame; a sender
// not yet in the table gets a new entry (Peer lifecycle rule).
func (t *Table) Touch(id NodeID, nowMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[id]
	if !ok {
		t.peers[id] = &Peer{ID: id, LastSeenMs: nowMs}
		return
	}
	p.LastSeenMs = nowMs
}

// SetRole updates a known peer's role in place (e.g. on Coordinator
// receipt), a no-op if the peer is unknown.
func (t *Table) SetRole(id NodeID, role Role) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[id]; ok {
		p.Role = role
	}
}

// Get returns a copy of the peer record, or ok=false if unknown.
func (t *Table) Get(id NodeID) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[id]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// All returns a snapshot of every known peer. The core never removes
// entries; a surrounding UI layer may call Prune for display purposes.
func (t *Table) All() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, *p)
	}
	return out
}

// Prune returns the ids of peers not seen within olderThan of nowMs,
// without removing them from the core's table — liveness inference only,
// invariant that the core never removes entries.
func (t *Table) Prune(nowMs int64, olderThanMs int64) []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var stale []NodeID
	for id, p := range t.peers {
		if nowMs-p.LastSeenMs > olderThanMs {
			stale = append(stale, id)
		}
	}
	return stale
}

// GreatestID returns the highest known NodeID including self. The
// election Machine compares sender ids directly and does not call it.
func (t *Table) GreatestID(self NodeID) NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	greatest := self
	for id := range t.peers {
		if id > greatest {
			greatest = id
		}
	}
	return greatest
}
