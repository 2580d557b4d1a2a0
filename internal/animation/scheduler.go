package animation

import (
	"sync"
	"sync/atomic"
	"time"
)

// EpochSource supplies the scheduler's render clock: network_time()/10,
// units of 10ms since the master's boot.
type EpochSource interface {
	Epoch() uint32
}

// PixelPusher is the pixel-driver collaborator the scheduler pushes
// rendered frames to.
type PixelPusher interface {
	Begin() error
	Push(pixels []RGB) error
	SetOTAMode(bool)
}

const TickPeriod = 10 * time.Millisecond

// Scheduler is the fixed-rate render loop: on every 10ms
// tick it either renders the live animation or clears the frame buffer,
// gated by the power flag. It owns the pixel buffer exclusively during a
// frame.
type Scheduler struct {
	clock    EpochSource
	registry *Registry
	driver   PixelPusher
	n        int

	powerOn atomic.Bool
	halted  atomic.Bool

	mu     sync.Mutex
	pixels []RGB
}

func NewScheduler(clock EpochSource, registry *Registry, driver PixelPusher, pixelCount int) *Scheduler {
	s := &Scheduler{
		clock:    clock,
		registry: registry,
		driver:   driver,
		n:        pixelCount,
		pixels:   make([]RGB, pixelCount),
	}
	s.powerOn.Store(true)
	return s
}

// SetPower implements SyncPower effect: on transition to
// off, subsequent ticks emit black frames.
func (s *Scheduler) SetPower(on bool) {
	s.powerOn.Store(on)
}

func (s *Scheduler) PowerOn() bool {
	return s.powerOn.Load()
}

// Halt stops the scheduler from producing further frames and puts the
// driver into OTA mode, for the shutdown sequence that precedes a
// firmware update.
func (s *Scheduler) Halt() {
	s.halted.Store(true)
	s.driver.SetOTAMode(true)
}

// Run blocks, rendering one frame every TickPeriod until stopCh closes.
func (s *Scheduler) Run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	if s.halted.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.powerOn.Load() {
		if anim := s.registry.Current(); anim != nil {
			epoch := s.clock.Epoch()
			anim.Render(epoch, s.pixels)
		}
	} else {
		for i := range s.pixels {
			s.pixels[i] = RGB{}
		}
	}
	_ = s.driver.Push(s.pixels)
}
