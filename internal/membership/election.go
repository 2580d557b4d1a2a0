package membership

import (
	"math/rand"
	"sync"

	"github.com/meshnode/meshnode/internal/config"
)

// outboundKind names the frame a Machine wants broadcast; the caller
// (internal/node) turns these into wire.Frame fragments and hands them to
// the bus on the network thread, preserving the single-writer invariant
// — the Machine itself never touches the bus.
type outboundKind int

const (
	outHeartbeat outboundKind = iota
	outElection
	outOk
	outCoordinator
	outShutdown
	outAnnouncement
	outTimeSync
)

// Outbound is one queued broadcast intent.
type Outbound struct {
	Kind outboundKind
}

func (o Outbound) IsHeartbeat() bool    { return o.Kind == outHeartbeat }
func (o Outbound) IsElection() bool     { return o.Kind == outElection }
func (o Outbound) IsOk() bool           { return o.Kind == outOk }
func (o Outbound) IsCoordinator() bool  { return o.Kind == outCoordinator }
func (o Outbound) IsShutdown() bool     { return o.Kind == outShutdown }
func (o Outbound) IsAnnouncement() bool { return o.Kind == outAnnouncement }
func (o Outbound) IsTimeSync() bool     { return o.Kind == outTimeSync }

// Machine is the bully election state machine, driven by
// Tick(now) from the network thread; inbound frames are applied through
// the HandleX methods, called from the radio-callback dispatcher. Both
// sides are serialized by mu so Machine itself is safe to call from two
// goroutines, even though only the bus itself is restricted to a single
// writer.
type Machine struct {
	mu sync.Mutex

	self  NodeID
	table *Table
	cfg   config.ElectionConfig
	rng   *rand.Rand

	role     Role
	masterID NodeID

	lastHeartbeatMs int64 // last heartbeat/coordinator heard (slave/idle view)

	electionPending    bool // jitter delay before actually sending Election
	electionSendAtMs   int64
	electionOkDeadline int64
	electionCoordDeadline int64
	okReceived         bool

	nextHeartbeatAtMs  int64
	nextAnnounceAtMs   int64
	nextTimeSyncAtMs   int64

	outbox []Outbound
}

func NewMachine(self NodeID, table *Table, cfg config.ElectionConfig) *Machine {
	return &Machine{
		self:  self,
		table: table,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(int64(self))),
		role:  Startup,
	}
}

// Start transitions Startup -> Idle immediately after bus initialization.
func (m *Machine) Start(nowMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.role = Idle
	m.lastHeartbeatMs = nowMs
}

func (m *Machine) Role() Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

func (m *Machine) MasterID() NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.masterID
}

// DrainOutbox returns and clears every queued broadcast intent.
func (m *Machine) DrainOutbox() []Outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.outbox
	m.outbox = nil
	return out
}

func (m *Machine) enqueue(k outboundKind) {
	m.outbox = append(m.outbox, Outbound{Kind: k})
}

// Tick evaluates every deadline against nowMs and performs timer-driven
// state transitions and emits. Called by the network thread only.
func (m *Machine) Tick(nowMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.role {
	case Idle:
		if nowMs-m.lastHeartbeatMs > m.cfg.MasterTimeout.Milliseconds() {
			m.enterElection(nowMs)
		}
	case ElectionRole:
		if m.electionPending && nowMs >= m.electionSendAtMs {
			m.electionPending = false
			m.enqueue(outElection)
			m.electionOkDeadline = nowMs + m.cfg.ElectionWait.Milliseconds()
			m.electionCoordDeadline = nowMs + m.cfg.CoordinatorWait.Milliseconds()
			m.okReceived = false
			return
		}
		if m.electionPending {
			return
		}
		if !m.okReceived && nowMs >= m.electionOkDeadline {
			m.becomeCoordinator(nowMs)
			return
		}
		if m.okReceived && nowMs >= m.electionCoordDeadline {
			// waited for a Coordinator announcement and none came: restart
			m.enterElection(nowMs)
		}
	case Master:
		if nowMs >= m.nextHeartbeatAtMs {
			m.enqueue(outHeartbeat)
			m.nextHeartbeatAtMs = nowMs + m.cfg.HeartbeatInterval.Milliseconds()
		}
		if nowMs >= m.nextTimeSyncAtMs {
			m.enqueue(outTimeSync)
			m.nextTimeSyncAtMs = nowMs + 10_000
		}
	case Slave:
		if nowMs-m.lastHeartbeatMs > m.cfg.SlaveTimeout.Milliseconds() {
			m.enterElection(nowMs)
		}
	}

	if nowMs >= m.nextAnnounceAtMs {
		m.enqueue(outAnnouncement)
		m.nextAnnounceAtMs = nowMs + m.cfg.AnnounceInterval.Milliseconds()
	}
}

// enterElection schedules a jittered Election send (10-50ms) to avoid
// lockstep collisions after simultaneous boot.
func (m *Machine) enterElection(nowMs int64) {
	m.role = ElectionRole
	m.electionPending = true
	jitter := 10 + m.rng.Int63n(41)
	m.electionSendAtMs = nowMs + jitter
}

func (m *Machine) becomeCoordinator(nowMs int64) {
	m.role = Master
	m.masterID = m.self
	m.enqueue(outCoordinator)
	m.nextHeartbeatAtMs = nowMs + m.cfg.HeartbeatInterval.Milliseconds()
	m.nextTimeSyncAtMs = nowMs + 10_000
}

// HandleElection processes an inbound Election from sender: a lower
// sender always gets an Ok reply from us, and we enter Election
// ourselves unless we are already Master.
func (m *Machine) HandleElection(sender NodeID, nowMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sender >= m.self {
		return
	}
	m.enqueue(outOk)
	if m.role != Master {
		m.enterElection(nowMs)
	}
}

// HandleOk records that some higher-priority peer answered our Election
// during our own election wait, so we must not become Coordinator.
func (m *Machine) HandleOk(nowMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.role == ElectionRole {
		m.okReceived = true
	}
}

// HandleCoordinator accepts sender as master and becomes Slave if
// sender's NodeId is >= ours, or if we were still in an election.
func (m *Machine) HandleCoordinator(sender NodeID, nowMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sender >= m.self || m.role == ElectionRole {
		m.role = Slave
		m.masterID = sender
		m.lastHeartbeatMs = nowMs
	}
}

// HandleHeartbeat applies a heartbeat from sender, implementing the
// split-brain rule: if we are Master and hear a heartbeat from a higher
// NodeId, we step down.
func (m *Machine) HandleHeartbeat(sender NodeID, nowMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.role == Master {
		if sender > m.self {
			m.role = Slave
			m.masterID = sender
			m.lastHeartbeatMs = nowMs
		}
		return
	}
	if sender == m.masterID || m.role == Idle || m.role == ElectionRole {
		m.role = Slave
		m.masterID = sender
		m.lastHeartbeatMs = nowMs
	}
}

// HandleShutdown starts a fresh election immediately when the current
// master announces Shutdown.
func (m *Machine) HandleShutdown(sender NodeID, nowMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sender == m.masterID {
		m.enterElection(nowMs)
	}
}

// AnnounceNow schedules an immediate PeerAnnouncement, bypassing the
// regular AnnounceInterval timer — used when local state a peer cares
// about (e.g. group) changes between scheduled announcements.
func (m *Machine) AnnounceNow(nowMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueue(outAnnouncement)
	m.nextAnnounceAtMs = nowMs + m.cfg.AnnounceInterval.Milliseconds()
}

// BeginShutdown is called locally when this node is about to OTA-quiesce
// while Master: queue a Shutdown broadcast and drop to Idle so it will
// not become Master again during the upgrade window.
func (m *Machine) BeginShutdown(nowMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.role == Master {
		m.enqueue(outShutdown)
	}
	m.role = Idle
	m.lastHeartbeatMs = nowMs
}
