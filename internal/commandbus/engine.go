// Package commandbus implements the group-scoped command bus:
// SyncParam/SyncPower/AnimationState propagate edits within a node's
// group (or unconditionally for AnimationState's empty-group case), and
// AssignGroup retargets a single node's group by id. Uses a
// single-purpose typed-message-handler per kind rather than a generic
// dispatch table.
package commandbus

import (
	"encoding/json"
	"sync"

	"github.com/meshnode/meshnode/internal/animation"
	"github.com/meshnode/meshnode/internal/wire"
)

// Selector resolves an animation selection by name, preset names
// included: a preset name loads its saved params into the matching base
// animation before making it current.
type Selector interface {
	SetAnimation(name string) error
}

// Engine holds local group state and the animation collaborators command
// messages act on. Outbound sends append to outbox under mu; the network
// thread drains it every tick via DrainOutbox — nothing in this package
// ever touches the bus directly.
type Engine struct {
	mu sync.Mutex

	self      uint64
	group     string
	registry  *animation.Registry
	scheduler *animation.Scheduler
	selector  Selector
	seq       uint32

	outbox []*wire.Frame

	onGroupChanged func(group string)
}

func NewEngine(self uint64, group string, registry *animation.Registry, scheduler *animation.Scheduler, selector Selector) *Engine {
	return &Engine{self: self, group: group, registry: registry, scheduler: scheduler, selector: selector}
}

// SetGroupChangedHook installs the callback run after a local AssignGroup
// takes effect (persisting the new group and triggering an immediate
// PeerAnnouncement is internal/node's job, not this package's).
func (e *Engine) SetGroupChangedHook(fn func(group string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onGroupChanged = fn
}

func (e *Engine) Group() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.group
}

func (e *Engine) nextSeq() uint32 {
	e.seq++
	return e.seq
}

func (e *Engine) enqueue(kind wire.Kind, payload []byte) {
	frames, err := wire.Fragment(kind, e.self, e.nextSeq(), payload)
	if err != nil {
		return
	}
	e.outbox = append(e.outbox, frames...)
}

// DrainOutbox returns and clears every frame queued for broadcast.
func (e *Engine) DrainOutbox() []*wire.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.outbox
	e.outbox = nil
	return out
}

// SendSyncParam applies name/value to the live animation locally and
// queues a SyncParam broadcast scoped to this node's own group. If the
// local group is empty the broadcast still goes out but no peer will
// match it, since HandleSyncParam rejects an empty group.
func (e *Engine) SendSyncParam(name string, value json.RawMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if anim := e.registry.Current(); anim != nil {
		if err := animation.SetParamByName(anim, name, value); err != nil && err != animation.ErrIncompatibleType {
			return err
		}
	}
	e.enqueue(wire.KindSyncParam, encodeSyncParam(e.group, name, value))
	return nil
}

// SendSyncPower sets local scheduler power and broadcasts the change.
func (e *Engine) SendSyncPower(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduler.SetPower(on)
	e.enqueue(wire.KindSyncPower, encodeSyncPower(e.group, on))
}

// SendAnimationState selects name locally through the Selector and
// broadcasts the selection to this node's own group. The broadcast
// carries name as given — a preset name stays a preset name, so each
// receiver resolves it against its own replicated store rather than
// inheriting only our resolved base type.
func (e *Engine) SendAnimationState(name string, startTime uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.selector.SetAnimation(name); err != nil {
		return err
	}
	e.enqueue(wire.KindAnimationState, encodeAnimationState(name, e.group, startTime))
	return nil
}

// SendAssignGroup broadcasts an AssignGroup targeting id, applying it to
// our own state immediately if id is ourself — the originator included.
func (e *Engine) SendAssignGroup(targetID uint64, newGroup string) {
	e.mu.Lock()
	e.enqueue(wire.KindAssignGroup, encodeAssignGroup(targetID, newGroup))
	var hook func(string)
	if targetID == e.self {
		hook = e.applyGroupChangeLocked(newGroup)
	}
	e.mu.Unlock()
	if hook != nil {
		hook(newGroup)
	}
}

// applyGroupChangeLocked updates group state while mu is held and
// returns the change hook (if any) for the caller to invoke after
// unlocking, so a hook that calls back into Engine cannot deadlock.
func (e *Engine) applyGroupChangeLocked(newGroup string) func(string) {
	e.group = newGroup
	return e.onGroupChanged
}

// HandleSyncParam applies an inbound SyncParam if its group matches ours
// and ours is non-empty.
func (e *Engine) HandleSyncParam(sender uint64, payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sender == e.self {
		return nil
	}
	group, name, value, err := decodeSyncParam(payload)
	if err != nil {
		return err
	}
	if e.group == "" || group != e.group {
		return nil
	}
	anim := e.registry.Current()
	if anim == nil {
		return nil
	}
	if err := animation.SetParamByName(anim, name, value); err != nil && err != animation.ErrIncompatibleType {
		return err
	}
	return nil
}

// HandleSyncPower applies an inbound SyncPower under the same group rule.
func (e *Engine) HandleSyncPower(sender uint64, payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sender == e.self {
		return nil
	}
	group, on, err := decodeSyncPower(payload)
	if err != nil {
		return err
	}
	if e.group == "" || group != e.group {
		return nil
	}
	e.scheduler.SetPower(on)
	return nil
}

// HandleAnimationState applies an inbound AnimationState if its group is
// empty (broadcast to everyone) or matches ours. Selection goes through
// the Selector so a replicated preset name lands with its saved params,
// not just a bare base-type switch.
func (e *Engine) HandleAnimationState(sender uint64, payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sender == e.self {
		return nil
	}
	name, group, _, err := decodeAnimationState(payload)
	if err != nil {
		return err
	}
	if group != "" && group != e.group {
		return nil
	}
	return e.selector.SetAnimation(name)
}

// HandleAssignGroup applies an inbound AssignGroup only when we are the
// target, triggering the group-changed hook.
func (e *Engine) HandleAssignGroup(sender uint64, payload []byte) error {
	e.mu.Lock()
	targetID, group, err := decodeAssignGroup(payload)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if targetID != e.self {
		e.mu.Unlock()
		return nil
	}
	hook := e.applyGroupChangeLocked(group)
	e.mu.Unlock()
	if hook != nil {
		hook(group)
	}
	return nil
}
