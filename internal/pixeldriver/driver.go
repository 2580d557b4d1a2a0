// Package pixeldriver declares the out-of-scope pixel-driver collaborator
// and a couple of stand-ins for it: a no-op sink for hosts with
// no attached strip, and a recording fake for tests.
package pixeldriver

import (
	"sync"

	"github.com/meshnode/meshnode/internal/animation"
)

// Driver is the hardware collaborator the scheduler pushes frames to.
// Its concrete implementation (bit-banging a data line) is out of scope
// for this module.
type Driver interface {
	Begin() error
	Push(pixels []animation.RGB) error
	SetOTAMode(bool)
}

// Null discards every frame, for hosts with no attached strip.
type Null struct{}

func (Null) Begin() error                      { return nil }
func (Null) Push(pixels []animation.RGB) error { return nil }
func (Null) SetOTAMode(bool)                   {}

// Recorder remembers the last frame pushed, for scheduler tests.
type Recorder struct {
	mu      sync.Mutex
	last    []animation.RGB
	otaMode bool
	pushes  int
}

func (r *Recorder) Begin() error { return nil }

func (r *Recorder) Push(pixels []animation.RGB) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = append([]animation.RGB(nil), pixels...)
	r.pushes++
	return nil
}

func (r *Recorder) SetOTAMode(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.otaMode = on
}

func (r *Recorder) Last() []animation.RGB {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]animation.RGB(nil), r.last...)
}

func (r *Recorder) Pushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushes
}

func (r *Recorder) OTAMode() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.otaMode
}
