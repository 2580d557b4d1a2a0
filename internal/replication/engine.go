// Package replication implements the eventually-consistent preset
// replication engine: redundant fragmented SavePreset broadcast on local
// save, pull-based anti-entropy via periodic manifest broadcast and
// directed RequestPresetData, and a synchronous bounded existence check.
// Uses a pacing queue for metered retransmission rather than sleeping
// inline, since every send here must happen from the network thread's
// Tick.
package replication

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/meshnode/meshnode/internal/config"
	"github.com/meshnode/meshnode/internal/presets"
	"github.com/meshnode/meshnode/internal/wire"
)

// job is one scheduled outbound frame; Engine.Tick releases frames whose
// SendAt has arrived, in order.
type job struct {
	frame  *wire.Frame
	sendAt time.Time
}

type pendingQuery struct {
	ch       chan bool
	deadline time.Time
}

// Engine is the replication state machine. Inbound frames reach it
// through the HandleX methods (called from the radio-callback
// dispatcher) and timers through Tick (called from the network thread);
// CheckExists/SaveLocal/etc. are also reachable from the external
// control-plane thread, so every exported method that touches engine
// state takes mu — this is the one package where the bus's single-writer
// rule doesn't by itself make the Go struct safe to share.
// HandleSavePreset, HandleDeletePreset and HandleRenamePreset do not take
// mu: they only call into the preset store, which has its own lock.
type Engine struct {
	mu sync.Mutex

	self  uint64
	cfg   config.ReplicationConfig
	store *presets.Store

	seq uint32

	jobs []job

	pullQueue  []pullRequest // names we've learned we're missing, awaiting a paced RequestPresetData
	nextPullAt time.Time
	requested  *ttlSet // names we've already pulled recently

	nextManifestBroadcastAt time.Time

	queries map[string]*pendingQuery
}

// pullRequest is one queued directed pull: the peer whose manifest first
// surfaced the missing name, and the name itself.
type pullRequest struct {
	target uint64
	name   string
}

func NewEngine(self uint64, store *presets.Store, cfg config.ReplicationConfig) *Engine {
	return &Engine{
		self:      self,
		cfg:       cfg,
		store:     store,
		requested: newTTLSet(cfg.RequestTTL),
		queries:   make(map[string]*pendingQuery),
	}
}

func (e *Engine) nextSeq() uint32 {
	e.seq++
	return e.seq
}

// enqueueFragments schedules one round of frames, each FragmentPacing
// apart, starting at from. Returns the time of the round's last frame.
func (e *Engine) enqueueFragments(frames []*wire.Frame, from time.Time) time.Time {
	for i, f := range frames {
		e.jobs = append(e.jobs, job{frame: f, sendAt: from.Add(time.Duration(i) * e.cfg.FragmentPacing)})
	}
	if len(frames) == 0 {
		return from
	}
	return from.Add(time.Duration(len(frames)-1) * e.cfg.FragmentPacing)
}

// enqueueRedundant schedules rounds copies of a fragmented message,
// each round RoundGap apart and internally paced by FragmentPacing.
func (e *Engine) enqueueRedundant(kind wire.Kind, payload []byte, now time.Time, rounds int) error {
	seq := e.nextSeq()
	frames, err := wire.Fragment(kind, e.self, seq, payload)
	if err != nil {
		return err
	}
	at := now
	for r := 0; r < rounds; r++ {
		end := e.enqueueFragments(frames, at)
		at = end.Add(e.cfg.RoundGap)
	}
	return nil
}

func (e *Engine) enqueueSingle(kind wire.Kind, payload []byte, now time.Time) error {
	return e.enqueueRedundant(kind, payload, now, 1)
}

// drainReady pops every job whose schedule has arrived, preserving order.
func (e *Engine) drainReady(now time.Time) []*wire.Frame {
	var ready []*wire.Frame
	remaining := e.jobs[:0]
	for _, j := range e.jobs {
		if !j.sendAt.After(now) {
			ready = append(ready, j.frame)
		} else {
			remaining = append(remaining, j)
		}
	}
	e.jobs = remaining
	return ready
}

// Tick drains every job whose schedule has arrived and runs the periodic
// anti-entropy timers. Returns the frames ready to send, in
// order; the caller (internal/node) encodes and broadcasts them.
func (e *Engine) Tick(now time.Time) []*wire.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	ready := e.drainReady(now)

	if e.nextManifestBroadcastAt.IsZero() {
		e.nextManifestBroadcastAt = now
	}
	if !now.Before(e.nextManifestBroadcastAt) {
		e.enqueueSingle(wire.KindRequestSyncPresets, nil, now)
		e.nextManifestBroadcastAt = now.Add(e.cfg.ManifestInterval)
	}

	if len(e.pullQueue) > 0 && !now.Before(e.nextPullAt) {
		req := e.pullQueue[0]
		e.pullQueue = e.pullQueue[1:]
		e.enqueueSingle(wire.KindRequestPresetData, encodeRequestPresetData(req.target, req.name), now)
		e.nextPullAt = now.Add(e.cfg.PullInterval)
	}

	for name, q := range e.queries {
		if !now.Before(q.deadline) {
			delete(e.queries, name)
			select {
			case q.ch <- false:
			default:
			}
		}
	}
	e.requested.Prune(now)

	// The timers above may have queued frames scheduled for "now"; fold
	// them into this tick's result rather than waiting another period.
	ready = append(ready, e.drainReady(now)...)
	return ready
}

// SaveLocal persists a preset and broadcasts it RedundantRounds times,
// fragmented.
func (e *Engine) SaveLocal(name, baseType string, params json.RawMessage, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.SaveFromData(name, baseType, params); err != nil {
		return err
	}
	return e.enqueueRedundant(wire.KindSavePreset, encodeSavePreset(name, baseType, params), now, e.cfg.RedundantRounds)
}

// DeleteLocal removes a preset and broadcasts a single DeletePreset frame.
func (e *Engine) DeleteLocal(name string, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Delete(name); err != nil {
		return err
	}
	return e.enqueueSingle(wire.KindDeletePreset, encodeName(name), now)
}

// RenameLocal renames a preset and broadcasts a single RenamePreset frame.
func (e *Engine) RenameLocal(oldName, newName string, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Rename(oldName, newName); err != nil {
		return err
	}
	return e.enqueueSingle(wire.KindRenamePreset, encodeRename(oldName, newName), now)
}

// CheckExists returns a channel that receives the existence answer once
// either a PresetExistResponse names this preset or QueryTimeout elapses
// (synchronous bounded existence check). A local hit answers
// immediately without touching the bus. The deadline is enforced by
// Tick, not a sleeping goroutine, so the caller must keep ticking the
// engine for the channel to ever resolve false.
func (e *Engine) CheckExists(name string, now time.Time) <-chan bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan bool, 1)
	if e.store.Exists(name) {
		ch <- true
		return ch
	}
	e.queries[name] = &pendingQuery{ch: ch, deadline: now.Add(e.cfg.QueryTimeout)}
	e.enqueueSingle(wire.KindQueryPreset, encodeName(name), now)
	return ch
}

// HandleQueryPreset answers a QueryPreset broadcast with a
// PresetExistResponse, but only when we hold the named preset: absence
// is signalled by every peer's silence, which the querier's deadline
// turns into false.
func (e *Engine) HandleQueryPreset(sender uint64, payload []byte, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sender == e.self {
		return
	}
	name, err := decodeName(payload)
	if err != nil || !e.store.Exists(name) {
		return
	}
	e.enqueueSingle(wire.KindPresetExistResponse, encodeName(name), now)
}

// HandlePresetExistResponse resolves a pending CheckExists query if one
// is waiting on name. Responses for other names are ignored.
func (e *Engine) HandlePresetExistResponse(sender uint64, payload []byte, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	name, err := decodeName(payload)
	if err != nil {
		return
	}
	if q, ok := e.queries[name]; ok {
		delete(e.queries, name)
		select {
		case q.ch <- true:
		default:
		}
	}
}

// HandleSavePreset applies a replicated SavePreset to local storage.
func (e *Engine) HandleSavePreset(sender uint64, payload []byte) error {
	name, baseType, params, err := decodeSavePreset(payload)
	if err != nil {
		return err
	}
	return e.store.SaveFromData(name, baseType, params)
}

// HandleDeletePreset applies a replicated delete, ignoring
// presets.ErrNotFound since the peer that originated it may race with
// our own anti-entropy pull of the same name.
func (e *Engine) HandleDeletePreset(sender uint64, payload []byte) error {
	name, err := decodeName(payload)
	if err != nil {
		return err
	}
	err = e.store.Delete(name)
	if err == presets.ErrNotFound {
		return nil
	}
	return err
}

// HandleRenamePreset applies a replicated rename.
func (e *Engine) HandleRenamePreset(sender uint64, payload []byte) error {
	oldName, newName, err := decodeRename(payload)
	if err != nil {
		return err
	}
	err = e.store.Rename(oldName, newName)
	if err == presets.ErrNotFound || err == presets.ErrDuplicate {
		return nil
	}
	return err
}

// HandleRequestSyncPresets answers with our entire preset list as
// individual PresetManifest messages, one every ManifestPacing,
// interleaved with the main loop by the jobs queue rather than blocking.
func (e *Engine) HandleRequestSyncPresets(sender uint64, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sender == e.self {
		return
	}
	at := now
	for _, name := range e.store.List() {
		frames, err := wire.Fragment(wire.KindPresetManifest, e.self, e.nextSeq(), encodeName(name))
		if err != nil {
			continue
		}
		e.jobs = append(e.jobs, job{frame: frames[0], sendAt: at})
		at = at.Add(e.cfg.ManifestPacing)
	}
}

// HandlePresetManifest checks one advertised name against local
// knowledge and queues a directed pull from the advertising peer if the
// preset is missing and wasn't already requested within RequestTTL.
func (e *Engine) HandlePresetManifest(sender uint64, payload []byte, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sender == e.self {
		return
	}
	name, err := decodeName(payload)
	if err != nil || name == "" || e.store.Exists(name) {
		return
	}
	if !e.requested.MarkIfAbsent(name, now) {
		return
	}
	e.pullQueue = append(e.pullQueue, pullRequest{target: sender, name: name})
}

// HandleRequestPresetData serves a directed pull by re-initiating a
// fresh redundant SavePreset broadcast, but only when we are the
// addressed node.
func (e *Engine) HandleRequestPresetData(sender uint64, payload []byte, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sender == e.self {
		return
	}
	targetID, name, err := decodeRequestPresetData(payload)
	if err != nil || targetID != e.self {
		return
	}
	baseType, params, err := e.store.GetData(name)
	if err != nil {
		return
	}
	e.enqueueRedundant(wire.KindSavePreset, encodeSavePreset(name, baseType, params), now, e.cfg.RedundantRounds)
}
