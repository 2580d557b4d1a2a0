package node

import (
	"encoding/json"
	"time"

	"github.com/meshnode/meshnode/internal/animation"
	"github.com/meshnode/meshnode/internal/config"
	"github.com/meshnode/meshnode/internal/membership"
)

// Status is the get_status() surface
type Status struct {
	NodeID           uint64 `json:"node_id"`
	Role             string `json:"role"`
	MasterID         uint64 `json:"master_id"`
	Group            string `json:"group"`
	HasSynced        bool   `json:"has_synced"`
	NetworkTime      uint32 `json:"network_time"`
	CurrentAnimation string `json:"current_animation"`
	PowerOn          bool   `json:"power_on"`
	PeerCount        int    `json:"peer_count"`
}

func (n *Node) GetStatus() Status {
	return Status{
		NodeID:           n.self,
		Role:             n.election.Role().String(),
		MasterID:         uint64(n.election.MasterID()),
		Group:            n.cmd.Group(),
		HasSynced:        n.clockSvc.HasSynced(),
		NetworkTime:      n.clockSvc.NetworkTime(),
		CurrentAnimation: n.registry.CurrentTypeName(),
		PowerOn:          n.scheduler.PowerOn(),
		PeerCount:        len(n.table.All()),
	}
}

// ListPresets returns every saved preset name.
func (n *Node) ListPresets() []string {
	return n.store.List()
}

// ListBaseAnimations returns every registered base animation type name.
func (n *Node) ListBaseAnimations() []string {
	return n.registry.TypeNames()
}

// CurrentParams returns the live animation's parameter descriptors.
func (n *Node) CurrentParams() ([]animation.ParamDescriptor, error) {
	anim := n.registry.Current()
	if anim == nil {
		return nil, errUnknownAnimation
	}
	return animation.CurrentParams(anim)
}

// Peers returns a snapshot of every known peer.
func (n *Node) Peers() []membership.Peer {
	return n.table.All()
}

// ExportAllPresets returns a JSON array of every preset record.
func (n *Node) ExportAllPresets() ([]byte, error) {
	return n.store.ExportAll()
}

// SetAnimation selects name (a preset or a base animation type) locally
// and broadcasts the selection, by its original name, to this node's
// group.
func (n *Node) SetAnimation(name string) error {
	if err := n.cmd.SendAnimationState(name, n.clockSvc.NetworkTime()); err != nil {
		return err
	}
	if anim := n.registry.Current(); anim != nil {
		anim.SetPhase(config.LoadPhase(n.fs))
	}
	return config.SaveSelected(n.fs, name)
}

// SavePreset persists the live parameters of baseType under name and
// broadcasts it.
func (n *Node) SavePreset(name, baseType string) error {
	anim, ok := n.registry.Get(baseType)
	if !ok {
		return errUnknownAnimation
	}
	params, err := animation.MarshalParams(anim)
	if err != nil {
		return err
	}
	return n.repl.SaveLocal(name, baseType, params, time.Now())
}

// RenamePreset renames a preset and broadcasts the change.
func (n *Node) RenamePreset(oldName, newName string) error {
	return n.repl.RenameLocal(oldName, newName, time.Now())
}

// DeletePreset removes a preset and broadcasts the change.
func (n *Node) DeletePreset(name string) error {
	return n.repl.DeleteLocal(name, time.Now())
}

// CheckPresetExists performs the synchronous bounded existence check of
// blocking the calling goroutine up to QueryTimeout.
func (n *Node) CheckPresetExists(name string) bool {
	ch := n.repl.CheckExists(name, time.Now())
	return <-ch
}

// SetPower sets local power state and propagates it to this node's group.
func (n *Node) SetPower(on bool) {
	n.cmd.SendSyncPower(on)
}

// SetPhase persists the device's render phase offset and applies it to
// the live animation immediately.
func (n *Node) SetPhase(phase float64) error {
	if err := config.SavePhase(n.fs, phase); err != nil {
		return err
	}
	if anim := n.registry.Current(); anim != nil {
		anim.SetPhase(phase)
	}
	return nil
}

// SetParam applies a single parameter edit locally and propagates it.
func (n *Node) SetParam(name string, value json.RawMessage) error {
	return n.cmd.SendSyncParam(name, value)
}

// AssignGroup broadcasts a group assignment targeting id.
// Pass n.self (or the literal "local" sentinel at the control-plane
// transport layer, outside this package) to retarget this node itself.
func (n *Node) AssignGroup(targetID uint64, group string) {
	n.cmd.SendAssignGroup(targetID, group)
}

// Reboot performs the OTA-quiesce sequence and returns; the process
// supervisor (outside this module's scope) is responsible for actually
// restarting the binary.
func (n *Node) Reboot() {
	n.Stop()
}
