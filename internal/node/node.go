// Package node is the composition root: it wires the datagram bus, wire
// codec, clock, membership, preset store, replication engine, command
// bus, and animation scheduler into one running mesh node, and owns the
// three threads that drive it (render, network, radio callback).
package node

import (
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/meshnode/meshnode/internal/animation"
	"github.com/meshnode/meshnode/internal/animation/kinds"
	"github.com/meshnode/meshnode/internal/clock"
	"github.com/meshnode/meshnode/internal/commandbus"
	"github.com/meshnode/meshnode/internal/config"
	"github.com/meshnode/meshnode/internal/datagrambus"
	"github.com/meshnode/meshnode/internal/logger"
	"github.com/meshnode/meshnode/internal/membership"
	"github.com/meshnode/meshnode/internal/pixeldriver"
	"github.com/meshnode/meshnode/internal/presets"
	"github.com/meshnode/meshnode/internal/replication"
	"github.com/meshnode/meshnode/internal/storage"
	"github.com/meshnode/meshnode/internal/wire"
)

const networkTickPeriod = 50 * time.Millisecond // ~20 Hz

// Node is one running mesh participant.
type Node struct {
	self   uint64
	cfg    *config.Config
	fs     storage.Storage
	localIP uint32

	bus     *datagrambus.Bus
	reasm   *wire.Reassembler
	outSeq  uint32

	clockSvc *clock.Service
	table    *membership.Table
	election *membership.Machine

	registry  *animation.Registry
	scheduler *animation.Scheduler
	driver    pixeldriver.Driver

	store *presets.Store
	repl  *replication.Engine
	cmd   *commandbus.Engine

	mu       sync.Mutex
	shutdown bool

	stopNetwork  chan struct{}
	stopSchedule chan struct{}
}

// New wires every component together without opening the bus socket or
// starting any goroutine (Start does that).
func New(self uint64, cfg *config.Config, fs storage.Storage, driver pixeldriver.Driver) *Node {
	if driver == nil {
		driver = pixeldriver.Null{}
	}

	registry := animation.NewRegistry()
	registry.Register(kinds.NewSolid())
	registry.Register(kinds.NewBreathing())
	registry.Register(kinds.NewFire())
	registry.Register(kinds.NewAurora())
	registry.Register(kinds.NewBouncingBall())

	clockSvc := clock.New(cfg.Clock.LatencyCompMs, cfg.Clock.SmoothingAlpha, cfg.Clock.SnapThresholdMs)
	scheduler := animation.NewScheduler(clockSvc, registry, driver, cfg.PixelCount)
	store := presets.NewStore(fs, registry)
	table := membership.NewTable()
	election := membership.NewMachine(membership.NodeID(self), table, cfg.Election)

	group := config.LoadGroup(fs)
	cmdEngine := commandbus.NewEngine(self, group, registry, scheduler, store)

	n := &Node{
		self:         self,
		cfg:          cfg,
		fs:           fs,
		localIP:      localIPv4(cfg.Interface),
		reasm:        wire.NewReassembler(),
		clockSvc:     clockSvc,
		table:        table,
		election:     election,
		registry:     registry,
		scheduler:    scheduler,
		driver:       driver,
		store:        store,
		repl:         replication.NewEngine(self, store, cfg.Replication),
		cmd:          cmdEngine,
		stopNetwork:  make(chan struct{}),
		stopSchedule: make(chan struct{}),
	}
	cmdEngine.SetGroupChangedHook(n.onGroupChanged)
	return n
}

func localIPv4(iface string) uint32 {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return 0
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return 0
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil {
			continue
		}
		return binary.LittleEndian.Uint32(ip4)
	}
	return 0
}

// onGroupChanged is the commandbus hook run after a self-targeted
// AssignGroup: persist the new group and trigger an immediate
// PeerAnnouncement so peers learn about the change without waiting for
// the next scheduled one.
func (n *Node) onGroupChanged(group string) {
	if err := config.SaveGroup(n.fs, group); err != nil {
		logger.Warnf("[node] persist group failed: %v", err)
	}
	n.election.AnnounceNow(n.nowMs())
}

func (n *Node) nowMs() int64 {
	return n.clockSvc.LocalMonotonicMs()
}

// Start opens the bus and spawns the render, network, and radio-callback
// threads. Boot sequence: load the persisted selection, enter Idle, and
// start the election timer.
func (n *Node) Start() error {
	bus, err := datagrambus.Open(n.cfg.Interface, n.cfg.BroadcastPort)
	if err != nil {
		return err
	}
	n.bus = bus
	n.bus.SetHandler(func(_ net.Addr, data []byte) {
		n.HandleInbound(data, time.Now())
	})

	if selected := config.LoadSelected(n.fs); selected != "" {
		if err := n.store.SetAnimation(selected); err != nil {
			logger.Warnf("[node] restore selection %q failed: %v", selected, err)
		}
	}

	n.election.Start(n.nowMs())

	go n.bus.Run()
	go n.scheduler.Run(n.stopSchedule)
	go n.runNetworkThread()
	return nil
}

// Stop performs the OTA-quiesce sequence: broadcast Shutdown if we're
// Master, give it time to reach the wire, then halt the scheduler and
// close the bus.
func (n *Node) Stop() {
	n.mu.Lock()
	if n.shutdown {
		n.mu.Unlock()
		return
	}
	n.shutdown = true
	n.mu.Unlock()

	n.election.BeginShutdown(n.nowMs())
	n.drainElectionOutbox()
	time.Sleep(100 * time.Millisecond)

	n.scheduler.Halt()
	close(n.stopSchedule)
	close(n.stopNetwork)
	if n.bus != nil {
		n.bus.Close()
	}
}

func (n *Node) runNetworkThread() {
	ticker := time.NewTicker(networkTickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopNetwork:
			return
		case now := <-ticker.C:
			n.update(now)
		}
	}
}

// update runs every network-thread tick, at ~20 Hz: drive election
// timers, drain the replication and command-bus outboxes, and send
// whatever they produced.
func (n *Node) update(now time.Time) {
	n.election.Tick(n.nowMs())
	n.drainElectionOutbox()

	for _, f := range n.repl.Tick(now) {
		n.sendFrame(f)
	}
	for _, f := range n.cmd.DrainOutbox() {
		n.sendFrame(f)
	}
}

func (n *Node) drainElectionOutbox() {
	for _, o := range n.election.DrainOutbox() {
		switch {
		case o.IsHeartbeat():
			n.broadcast(wire.KindHeartbeat, nil)
		case o.IsElection():
			n.broadcast(wire.KindElection, nil)
		case o.IsOk():
			n.broadcast(wire.KindOk, nil)
		case o.IsCoordinator():
			n.clockSvc.BecomeMaster(clock.NodeID(n.self))
			n.broadcast(wire.KindCoordinator, nil)
		case o.IsShutdown():
			n.broadcast(wire.KindShutdown, nil)
		case o.IsAnnouncement():
			n.broadcast(wire.KindPeerAnnouncement, encodePeerAnnouncement(n.localIP, n.election.Role(), n.cmd.Group(), n.cfg.DeviceName))
		case o.IsTimeSync():
			n.broadcast(wire.KindTimeSync, encodeTimeSync(n.clockSvc.LocalMonotonicMs()))
		}
	}
}

func (n *Node) nextSeq() uint32 {
	n.outSeq++
	return n.outSeq
}

func (n *Node) broadcast(kind wire.Kind, payload []byte) {
	frames, err := wire.Fragment(kind, n.self, n.nextSeq(), payload)
	if err != nil {
		logger.Warnf("[node] fragment kind %d failed: %v", kind, err)
		return
	}
	for _, f := range frames {
		n.sendFrame(f)
	}
}

func (n *Node) sendFrame(f *wire.Frame) {
	if err := n.bus.Broadcast(wire.Encode(f)); err != nil {
		logger.Warnf("[node] broadcast kind %d failed: %v", f.Type, err)
	}
}

// HandleInbound is the radio-callback dispatcher: decode, self-filter,
// reassemble, and route a completed message to its owning component.
// Exported so tests can drive it without a real socket.
func (n *Node) HandleInbound(data []byte, now time.Time) {
	f, err := wire.Decode(data)
	if err != nil {
		return
	}
	if f.Sender == n.self {
		return // never process our own broadcast
	}
	n.table.Touch(membership.NodeID(f.Sender), n.nowMs())

	res := n.reasm.Feed(f, now)
	if res == nil {
		return
	}
	n.dispatch(res, now)
}

func (n *Node) dispatch(res *wire.Result, now time.Time) {
	sender := res.Sender
	nowMs := n.nowMs()
	switch res.Kind {
	case wire.KindHeartbeat:
		n.election.HandleHeartbeat(membership.NodeID(sender), nowMs)
	case wire.KindElection:
		n.election.HandleElection(membership.NodeID(sender), nowMs)
	case wire.KindOk:
		n.election.HandleOk(nowMs)
	case wire.KindCoordinator:
		n.election.HandleCoordinator(membership.NodeID(sender), nowMs)
	case wire.KindShutdown:
		n.election.HandleShutdown(membership.NodeID(sender), nowMs)
	case wire.KindPeerAnnouncement:
		ip, role, group, deviceName, err := decodePeerAnnouncement(res.Data)
		if err == nil {
			n.table.Upsert(membership.NodeID(sender), ip, role, group, deviceName, nowMs)
		}
	case wire.KindTimeSync:
		if membership.NodeID(sender) == n.election.MasterID() && n.election.Role() != membership.Master {
			if masterLocalMs, err := decodeTimeSync(res.Data); err == nil {
				n.clockSvc.ApplyTimeSync(clock.NodeID(sender), masterLocalMs, nowMs)
			}
		}
	case wire.KindQueryPreset:
		n.repl.HandleQueryPreset(sender, res.Data, now)
	case wire.KindPresetExistResponse:
		n.repl.HandlePresetExistResponse(sender, res.Data, now)
	case wire.KindSavePreset:
		if err := n.repl.HandleSavePreset(sender, res.Data); err != nil {
			logger.Warnf("[node] apply SavePreset failed: %v", err)
		}
	case wire.KindDeletePreset:
		if err := n.repl.HandleDeletePreset(sender, res.Data); err != nil {
			logger.Warnf("[node] apply DeletePreset failed: %v", err)
		}
	case wire.KindRenamePreset:
		if err := n.repl.HandleRenamePreset(sender, res.Data); err != nil {
			logger.Warnf("[node] apply RenamePreset failed: %v", err)
		}
	case wire.KindRequestSyncPresets:
		n.repl.HandleRequestSyncPresets(sender, now)
	case wire.KindPresetManifest:
		n.repl.HandlePresetManifest(sender, res.Data, now)
	case wire.KindRequestPresetData:
		n.repl.HandleRequestPresetData(sender, res.Data, now)
	case wire.KindSyncParam:
		if err := n.cmd.HandleSyncParam(sender, res.Data); err != nil {
			logger.Warnf("[node] apply SyncParam failed: %v", err)
		}
	case wire.KindSyncPower:
		if err := n.cmd.HandleSyncPower(sender, res.Data); err != nil {
			logger.Warnf("[node] apply SyncPower failed: %v", err)
		}
	case wire.KindAnimationState:
		if err := n.cmd.HandleAnimationState(sender, res.Data); err != nil {
			logger.Warnf("[node] apply AnimationState failed: %v", err)
		}
	case wire.KindAssignGroup:
		if err := n.cmd.HandleAssignGroup(sender, res.Data); err != nil {
			logger.Warnf("[node] apply AssignGroup failed: %v", err)
		}
	default:
		if !res.Kind.Reserved() {
			logger.Debugf("[node] unhandled kind %d from %x", res.Kind, sender)
		}
	}
}

var errUnknownAnimation = errors.New("node: unknown preset or base animation")
