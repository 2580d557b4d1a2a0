package replication

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/meshnode/meshnode/internal/animation"
	"github.com/meshnode/meshnode/internal/config"
	"github.com/meshnode/meshnode/internal/presets"
	"github.com/meshnode/meshnode/internal/storage"
	"github.com/meshnode/meshnode/internal/wire"
)

type dummyAnim struct {
	level int32
}

func (d *dummyAnim) TypeName() string { return "Dummy" }
func (d *dummyAnim) Parameters() []*animation.ParamCell {
	return []*animation.ParamCell{animation.I32Param("level", &d.level, 0, 100, 1, "")}
}
func (d *dummyAnim) SetPhase(float64)                {}
func (d *dummyAnim) Render(uint32, []animation.RGB) {}

func newTestStore() *presets.Store {
	reg := animation.NewRegistry()
	reg.Register(&dummyAnim{level: 5})
	return presets.NewStore(storage.NewMemStorage(), reg)
}

func testCfg() config.ReplicationConfig {
	return config.Defaults().Replication
}

func TestSaveLocalBroadcastsRedundantRounds(t *testing.T) {
	store := newTestStore()
	e := NewEngine(1, store, testCfg())
	now := time.Unix(0, 0)

	if err := e.SaveLocal("cozy", "Dummy", json.RawMessage(`{"level":7}`), now); err != nil {
		t.Fatalf("SaveLocal: %v", err)
	}
	if !store.Exists("cozy") {
		t.Fatal("preset not persisted locally")
	}

	var frames []*wire.Frame
	for i := 0; i < 10; i++ {
		now = now.Add(testCfg().RoundGap)
		frames = append(frames, e.Tick(now)...)
	}
	// The engine's first Tick also emits its startup RequestSyncPresets.
	var saves, syncs int
	for _, f := range frames {
		switch f.Type {
		case wire.KindSavePreset:
			saves++
		case wire.KindRequestSyncPresets:
			syncs++
		default:
			t.Errorf("unexpected frame kind %v", f.Type)
		}
	}
	if saves != testCfg().RedundantRounds {
		t.Fatalf("expected %d redundant SavePreset frames (single-fragment payload), got %d", testCfg().RedundantRounds, saves)
	}
	if syncs != 1 {
		t.Errorf("expected exactly 1 startup RequestSyncPresets frame, got %d", syncs)
	}
}

func TestHandleSavePresetAppliesRemoteWrite(t *testing.T) {
	store := newTestStore()
	e := NewEngine(1, store, testCfg())

	payload := encodeSavePreset("remote", "Dummy", json.RawMessage(`{"level":9}`))
	if err := e.HandleSavePreset(2, payload); err != nil {
		t.Fatalf("HandleSavePreset: %v", err)
	}
	if !store.Exists("remote") {
		t.Fatal("remote preset was not applied")
	}
}

func TestCheckExistsLocalHitResolvesImmediately(t *testing.T) {
	store := newTestStore()
	store.SaveFromData("here", "Dummy", json.RawMessage(`{}`))
	e := NewEngine(1, store, testCfg())

	ch := e.CheckExists("here", time.Unix(0, 0))
	select {
	case got := <-ch:
		if !got {
			t.Error("expected true for a locally known preset")
		}
	default:
		t.Fatal("expected immediate resolution for a local hit")
	}
}

func TestCheckExistsTimesOutWithoutAResponse(t *testing.T) {
	store := newTestStore()
	e := NewEngine(1, store, testCfg())
	now := time.Unix(0, 0)

	ch := e.CheckExists("nowhere", now)
	var sawQuery bool
	for _, f := range e.Tick(now) {
		if f.Type == wire.KindQueryPreset {
			sawQuery = true
		}
	}
	if !sawQuery {
		t.Fatal("expected a QueryPreset frame to be emitted")
	}

	now = now.Add(testCfg().QueryTimeout + time.Millisecond)
	e.Tick(now)

	select {
	case got := <-ch:
		if got {
			t.Error("expected false after the query timeout elapsed")
		}
	default:
		t.Fatal("expected the query to resolve once its deadline passed")
	}
}

func TestCheckExistsResolvesTrueOnRemoteAnswer(t *testing.T) {
	store := newTestStore()
	e := NewEngine(1, store, testCfg())
	now := time.Unix(0, 0)

	ch := e.CheckExists("elsewhere", now)
	e.Tick(now)
	e.HandlePresetExistResponse(2, encodeName("elsewhere"), now)

	select {
	case got := <-ch:
		if !got {
			t.Error("expected true once a peer answered exists=true")
		}
	default:
		t.Fatal("expected the response to resolve the pending query")
	}
}

func TestAntiEntropyPullsMissingPresetFromManifest(t *testing.T) {
	store := newTestStore()
	e := NewEngine(1, store, testCfg())
	now := time.Unix(0, 0)

	e.HandlePresetManifest(2, encodeName("cozy"), now)

	frames := e.Tick(now)
	var sawRequest bool
	for _, f := range frames {
		if f.Type == wire.KindRequestPresetData {
			sawRequest = true
			target, name, err := decodeRequestPresetData(f.Payload())
			if err != nil {
				t.Fatalf("decode RequestPresetData: %v", err)
			}
			if target != 2 || name != "cozy" {
				t.Errorf("pull addressed to %d for %q, want 2/cozy", target, name)
			}
		}
	}
	if !sawRequest {
		t.Fatal("expected a RequestPresetData for a name missing locally")
	}
}

func TestManifestPullDedupedWithinTTL(t *testing.T) {
	store := newTestStore()
	e := NewEngine(1, store, testCfg())
	now := time.Unix(0, 0)

	e.HandlePresetManifest(2, encodeName("cozy"), now)
	e.HandlePresetManifest(3, encodeName("cozy"), now.Add(time.Second))
	if len(e.pullQueue) != 1 {
		t.Fatalf("expected one queued pull after duplicate manifests, got %d", len(e.pullQueue))
	}

	later := now.Add(testCfg().RequestTTL + time.Second)
	e.HandlePresetManifest(3, encodeName("cozy"), later)
	if len(e.pullQueue) != 2 {
		t.Fatalf("expected the pull to be re-queued once RequestTTL elapsed, got %d", len(e.pullQueue))
	}
}

func TestRequestPresetDataOnlyServedByAddressedNode(t *testing.T) {
	store := newTestStore()
	store.SaveFromData("cozy", "Dummy", json.RawMessage(`{}`))
	e := NewEngine(1, store, testCfg())
	now := time.Unix(0, 0)

	e.HandleRequestPresetData(2, encodeRequestPresetData(9, "cozy"), now)
	if frames := e.drainAllJobs(now); len(frames) != 0 {
		t.Fatal("expected a request addressed to another node to be ignored")
	}

	e.HandleRequestPresetData(2, encodeRequestPresetData(1, "cozy"), now)
	frames := e.drainAllJobs(now)
	if len(frames) != testCfg().RedundantRounds {
		t.Fatalf("expected %d SavePreset frames for the addressed pull, got %d", testCfg().RedundantRounds, len(frames))
	}
	for _, f := range frames {
		if f.Type != wire.KindSavePreset {
			t.Errorf("unexpected frame kind %v", f.Type)
		}
	}
}

func TestManifestEmittedOneNamePerMessage(t *testing.T) {
	store := newTestStore()
	store.SaveFromData("cozy", "Dummy", json.RawMessage(`{}`))
	store.SaveFromData("bright", "Dummy", json.RawMessage(`{}`))
	e := NewEngine(1, store, testCfg())
	now := time.Unix(0, 0)

	e.HandleRequestSyncPresets(2, now)
	frames := e.drainAllJobs(now)
	if len(frames) != 2 {
		t.Fatalf("expected one PresetManifest frame per preset, got %d", len(frames))
	}
	seen := map[string]bool{}
	for _, f := range frames {
		if f.Type != wire.KindPresetManifest {
			t.Fatalf("unexpected frame kind %v", f.Type)
		}
		name, err := decodeName(f.Payload())
		if err != nil {
			t.Fatalf("decode manifest name: %v", err)
		}
		seen[name] = true
	}
	if !seen["cozy"] || !seen["bright"] {
		t.Errorf("manifest missing names: %v", seen)
	}
}

// drainAllJobs is a test helper that pulls every currently-scheduled
// frame regardless of its pacing delay, to assert on what was enqueued
// without simulating every intermediate tick.
func (e *Engine) drainAllJobs(now time.Time) []*wire.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*wire.Frame, 0, len(e.jobs))
	for _, j := range e.jobs {
		out = append(out, j.frame)
	}
	e.jobs = nil
	return out
}

func TestHandleQueryPresetIgnoresSelf(t *testing.T) {
	store := newTestStore()
	e := NewEngine(1, store, testCfg())
	e.HandleQueryPreset(1, encodeName("anything"), time.Unix(0, 0))
	if frames := e.drainAllJobs(time.Unix(0, 0)); len(frames) != 0 {
		t.Error("expected self-originated queries to be ignored")
	}
}

func TestHandleQueryPresetStaysSilentWhenMissing(t *testing.T) {
	store := newTestStore()
	store.SaveFromData("cozy", "Dummy", json.RawMessage(`{}`))
	e := NewEngine(1, store, testCfg())
	now := time.Unix(0, 0)

	e.HandleQueryPreset(2, encodeName("absent"), now)
	if frames := e.drainAllJobs(now); len(frames) != 0 {
		t.Error("expected silence for a preset we do not hold")
	}

	e.HandleQueryPreset(2, encodeName("cozy"), now)
	frames := e.drainAllJobs(now)
	if len(frames) != 1 || frames[0].Type != wire.KindPresetExistResponse {
		t.Fatalf("expected exactly one PresetExistResponse, got %v", frames)
	}
	if name, err := decodeName(frames[0].Payload()); err != nil || name != "cozy" {
		t.Errorf("response names %q (%v), want cozy", name, err)
	}
}
