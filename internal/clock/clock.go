// Package clock implements the drifting-clock synchronization algorithm:
// a monotonic local tick plus a smoothed offset producing network_time().
// Offset state lives in sync/atomic fields rather than behind a mutex:
// the radio callback (ApplyTimeSync) and the network thread
// (BecomeMaster) both write it, and the render thread reads it every
// frame.
package clock

import (
	"math"
	"sync/atomic"
	"time"
)

// NodeID is the 64-bit opaque identifier used for master tie-breaks.
type NodeID uint64

// Service tracks local monotonic time and the smoothed offset to network
// time. ApplyTimeSync runs on the radio callback while BecomeMaster runs
// on the network thread, so every mutable field is atomic; smoothed is
// kept as float64 bits since only the radio callback ever
// read-modify-writes it.
type Service struct {
	start time.Time

	offset atomic.Int32 // network_time() = local_monotonic() + offset

	smoothedBits atomic.Uint64 // math.Float64bits of the smoothed offset
	hasSynced    atomic.Bool
	masterID     atomic.Uint64

	lastHeartbeatMs atomic.Int64

	latencyCompMs  int32
	smoothingAlpha float64
	snapThreshold  float64
}

// New builds a Service whose local_monotonic() is measured from the
// instant New is called (the node's boot time).
func New(latencyCompMs int32, smoothingAlpha, snapThresholdMs float64) *Service {
	return &Service{
		start:          time.Now(),
		latencyCompMs:  latencyCompMs,
		smoothingAlpha: smoothingAlpha,
		snapThreshold:  snapThresholdMs,
	}
}

// LocalMonotonicMs returns milliseconds since Service was constructed.
func (s *Service) LocalMonotonicMs() int64 {
	return time.Since(s.start).Milliseconds()
}

// NetworkTime returns local_monotonic() + offset, wrapping as an
// unsigned 32-bit value.
func (s *Service) NetworkTime() uint32 {
	return uint32(int64(s.LocalMonotonicMs()) + int64(s.offset.Load()))
}

// HasSynced reports whether at least one TimeSync has been applied.
func (s *Service) HasSynced() bool {
	return s.hasSynced.Load()
}

// MasterID returns the currently accepted time-sync source.
func (s *Service) MasterID() NodeID {
	return NodeID(s.masterID.Load())
}

// Offset returns the current integer offset in milliseconds.
func (s *Service) Offset() int32 {
	return s.offset.Load()
}

// ApplyTimeSync processes a TimeSync broadcast from sender carrying
// masterLocalMs, its local monotonic clock reading at send time.
// Non-masters should ignore TimeSync from anyone but the currently
// accepted master; the caller (internal/node's dispatcher) is responsible for that
// filter — ApplyTimeSync always applies what it is given so it can also
// be used to (re)accept a new master's first sync unconditionally.
func (s *Service) ApplyTimeSync(sender NodeID, masterLocalMs int64, now int64) {
	s.masterID.Store(uint64(sender))
	s.lastHeartbeatMs.Store(now)

	instantaneous := float64(masterLocalMs+int64(s.latencyCompMs)) - float64(now)

	smoothed := math.Float64frombits(s.smoothedBits.Load())
	if !s.hasSynced.Load() || math.Abs(instantaneous-smoothed) > s.snapThreshold {
		s.smoothedBits.Store(math.Float64bits(instantaneous))
		s.offset.Store(int32(instantaneous))
		s.hasSynced.Store(true)
		return
	}

	smoothed = s.smoothingAlpha*instantaneous + (1-s.smoothingAlpha)*smoothed
	s.smoothedBits.Store(math.Float64bits(smoothed))
	s.offset.Store(int32(math.Floor(smoothed)))
}

// BecomeMaster resets offset to zero: the master's own network_time()
// equals its local clock.
func (s *Service) BecomeMaster(self NodeID) {
	s.masterID.Store(uint64(self))
	s.offset.Store(0)
	s.smoothedBits.Store(math.Float64bits(0))
	s.hasSynced.Store(true)
}

// Epoch returns network_time() in units of 10ms, the argument the
// animation scheduler passes to render.
func (s *Service) Epoch() uint32 {
	return s.NetworkTime() / 10
}
