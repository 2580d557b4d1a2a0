package commandbus

import (
	"testing"

	"github.com/meshnode/meshnode/internal/animation"
	"github.com/meshnode/meshnode/internal/pixeldriver"
	"github.com/meshnode/meshnode/internal/presets"
	"github.com/meshnode/meshnode/internal/storage"
)

type fakeClock struct{ epoch uint32 }

func (f *fakeClock) Epoch() uint32 { return f.epoch }

func newTestEngine(self uint64, group string) (*Engine, *animation.Registry, *animation.Scheduler) {
	reg := animation.NewRegistry()
	reg.Register(&dummyAnim{level: 1})
	sched := animation.NewScheduler(&fakeClock{}, reg, &pixeldriver.Recorder{}, 8)
	store := presets.NewStore(storage.NewMemStorage(), reg)
	return NewEngine(self, group, reg, sched, store), reg, sched
}

type dummyAnim struct{ level int32 }

func (d *dummyAnim) TypeName() string { return "Dummy" }
func (d *dummyAnim) Parameters() []*animation.ParamCell {
	return []*animation.ParamCell{animation.I32Param("level", &d.level, 0, 100, 1, "")}
}
func (d *dummyAnim) SetPhase(float64)               {}
func (d *dummyAnim) Render(uint32, []animation.RGB) {}

func TestSyncParamAppliesWithinMatchingGroup(t *testing.T) {
	sender, _, _ := newTestEngine(1, "room")
	receiver, receiverReg, _ := newTestEngine(2, "room")

	if err := sender.SendSyncParam("level", []byte("42")); err != nil {
		t.Fatalf("SendSyncParam: %v", err)
	}
	frames := sender.DrainOutbox()
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}

	if err := receiver.HandleSyncParam(1, frames[0].Payload()); err != nil {
		t.Fatalf("HandleSyncParam: %v", err)
	}
	got := receiverReg.Current().(*dummyAnim).level
	if got != 42 {
		t.Errorf("expected level=42, got %d", got)
	}
}

func TestSyncParamIgnoredAcrossGroups(t *testing.T) {
	sender, _, _ := newTestEngine(1, "room")
	receiver, receiverReg, _ := newTestEngine(2, "kitchen")

	sender.SendSyncParam("level", []byte("99"))
	frames := sender.DrainOutbox()
	receiver.HandleSyncParam(1, frames[0].Payload())

	if got := receiverReg.Current().(*dummyAnim).level; got == 99 {
		t.Error("SyncParam crossed group boundary")
	}
}

func TestSyncParamIgnoredWhenLocalGroupEmpty(t *testing.T) {
	sender, _, _ := newTestEngine(1, "room")
	receiver, receiverReg, _ := newTestEngine(3, "")

	sender.SendSyncParam("level", []byte("17"))
	frames := sender.DrainOutbox()
	receiver.HandleSyncParam(1, frames[0].Payload())

	if got := receiverReg.Current().(*dummyAnim).level; got == 17 {
		t.Error("empty-group node must never apply a group-scoped command")
	}
}

func TestAnimationStateEmptyGroupAppliesUnconditionally(t *testing.T) {
	sender, senderReg, _ := newTestEngine(1, "")
	receiver, receiverReg, _ := newTestEngine(2, "kitchen")
	receiver.registry.Register(&otherAnim{})
	senderReg.Register(&otherAnim{})

	sender.SendAnimationState("Other", 0)
	frames := sender.DrainOutbox()
	receiver.HandleAnimationState(1, frames[0].Payload())

	if receiverReg.CurrentTypeName() != "Other" {
		t.Errorf("expected empty-group AnimationState to apply unconditionally, got %q", receiverReg.CurrentTypeName())
	}
}

type otherAnim struct{}

func (otherAnim) TypeName() string                  { return "Other" }
func (otherAnim) Parameters() []*animation.ParamCell { return nil }
func (otherAnim) SetPhase(float64)                   {}
func (otherAnim) Render(uint32, []animation.RGB)     {}

func TestAssignGroupOnlyAppliesToTarget(t *testing.T) {
	sender, _, _ := newTestEngine(1, "")
	other := &Engine{self: 2, group: "old"}
	target := &Engine{self: 3, group: "old"}

	sender.SendAssignGroup(3, "new")
	frames := sender.DrainOutbox()

	other.HandleAssignGroup(1, frames[0].Payload())
	if other.Group() != "old" {
		t.Errorf("non-target group mutated: %q", other.Group())
	}

	target.HandleAssignGroup(1, frames[0].Payload())
	if target.Group() != "new" {
		t.Errorf("target group not updated: %q", target.Group())
	}
}

func TestAssignGroupSelfTargetAppliesImmediatelyAndFiresHook(t *testing.T) {
	e, _, _ := newTestEngine(5, "old")
	var hookGroup string
	e.SetGroupChangedHook(func(g string) { hookGroup = g })

	e.SendAssignGroup(5, "new")

	if e.Group() != "new" {
		t.Errorf("expected self-targeted AssignGroup to apply immediately, got %q", e.Group())
	}
	if hookGroup != "new" {
		t.Errorf("expected group-changed hook to fire with %q, got %q", "new", hookGroup)
	}
}
