package wire

import (
	"time"
)

// Class distinguishes the per-class reassembly buffers and their
// staleness windows.
type Class int

const (
	ClassFrame  Class = iota // generic control messages, 100ms staleness
	ClassPreset              // SavePreset payloads, 5s staleness
	ClassParam               // reserved for oversize SyncParam payloads
)

func (c Class) staleAfter() time.Duration {
	switch c {
	case ClassPreset:
		return 5 * time.Second
	case ClassParam:
		return 5 * time.Second
	default:
		return 100 * time.Millisecond
	}
}

// reassemblyBuffer is one logical in-flight message, identified by its
// sender+seq. A single class buffer is reused across different senders
// over time but only ever holds one in-flight (sender, seq) at a time: a
// new sequence number or sender resets it. The radio callback is
// single-threaded per class, so one buffer per class (not per sender) is
// enough.
type reassemblyBuffer struct {
	sender         uint64
	seq            uint32
	kind           Kind
	totalPackets   uint8
	receivedCount  uint8
	receivedFlags  [MaxTotal]bool
	buf            []byte
	lastPacketTime time.Time
	active         bool
}

func (b *reassemblyBuffer) reset(f *Frame, now time.Time) {
	b.sender = f.Sender
	b.seq = f.Seq
	b.kind = f.Type
	b.totalPackets = f.TotalPackets
	b.receivedCount = 0
	b.receivedFlags = [MaxTotal]bool{}
	b.buf = make([]byte, int(f.TotalPackets)*ChunkSize)
	b.lastPacketTime = now
	b.active = true
}

// Reassembler holds the three long-lived per-class buffers, one per
// payload class: Frame, Preset, Param.
type Reassembler struct {
	buffers [3]reassemblyBuffer
}

func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// classOf maps a message kind to its reassembly class.
func classOf(k Kind) Class {
	if k == KindSavePreset {
		return ClassPreset
	}
	return ClassFrame
}

// Result is returned once a logical message completes.
type Result struct {
	Sender uint64
	Kind   Kind
	Data   []byte
}

// Feed applies one inbound fragment to the appropriate class buffer and
// returns a completed Result if this fragment finished the message, or
// nil if more fragments are still expected (or the fragment was dropped
// as a duplicate, stale, or malformed).
func (r *Reassembler) Feed(f *Frame, now time.Time) *Result {
	class := classOf(f.Type)
	b := &r.buffers[class]

	if b.active && (b.seq != f.Seq || b.sender != f.Sender) {
		b.active = false
	}
	if b.active && now.Sub(b.lastPacketTime) > class.staleAfter() {
		b.active = false
	}
	if !b.active {
		b.reset(f, now)
	}

	offset := int(f.PacketIndex) * ChunkSize
	if offset+int(f.DataLen) > len(b.buf) {
		return nil // overrun: drop
	}
	if b.receivedFlags[f.PacketIndex] {
		return nil // duplicate: drop
	}

	copy(b.buf[offset:offset+int(f.DataLen)], f.Payload())
	b.receivedFlags[f.PacketIndex] = true
	b.receivedCount++
	b.lastPacketTime = now

	// Last fragment of the message may be shorter than ChunkSize; trim
	// the tail once the final index has arrived so Data doesn't carry
	// trailing zero padding for the assembled payload.
	if f.PacketIndex == f.TotalPackets-1 {
		b.buf = b.buf[:offset+int(f.DataLen)]
	}

	if b.receivedCount == b.totalPackets {
		out := &Result{Sender: b.sender, Kind: b.kind, Data: b.buf}
		b.active = false
		return out
	}
	return nil
}

// Pending reports whether the given class currently holds an in-progress
// (incomplete) reassembly, used by tests to assert that a dropped
// fragment leaves the buffer waiting rather than completing early.
func (r *Reassembler) Pending(class Class) (receivedPackets, totalPackets uint8) {
	b := &r.buffers[class]
	if !b.active {
		return 0, 0
	}
	return b.receivedCount, b.totalPackets
}
