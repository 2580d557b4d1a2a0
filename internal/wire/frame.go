// Package wire implements the fixed 246-byte Frame: encode/decode of the
// packed header plus fragmentation and reassembly of multi-packet
// logical payloads. Fields are written one by one with encoding/binary's
// LittleEndian helpers rather than a reflection-based codec, since the
// wire format is a fixed C-style struct.
package wire

import (
	"encoding/binary"
	"errors"
)

// Kind is the message-kind byte. Values are stable and part of the wire
// contract.
type Kind uint8

const (
	KindHeartbeat           Kind = 0
	KindElection            Kind = 1
	KindOk                  Kind = 2
	KindCoordinator         Kind = 3
	KindFrameData           Kind = 4 // reserved, no handler wired
	KindPeerAnnouncement    Kind = 5
	KindShutdown            Kind = 6
	KindTimeSync            Kind = 7
	KindAnimationState      Kind = 8
	KindQueryPreset         Kind = 9
	KindPresetExistResponse Kind = 10
	KindSavePreset          Kind = 11
	KindDeletePreset        Kind = 12
	KindCheckForUpdates     Kind = 13 // reserved, no core handler
	KindRenamePreset        Kind = 14
	KindAssignGroup         Kind = 15
	KindSyncParam           Kind = 16
	KindSyncPower           Kind = 17
	KindRequestSyncPresets  Kind = 18
	KindPresetManifest      Kind = 19
	KindRequestPresetData   Kind = 20
)

func (k Kind) Reserved() bool {
	return k == KindFrameData || k == KindCheckForUpdates
}

const (
	ChunkSize  = 230
	FrameSize  = 1 + 8 + 4 + 1 + 1 + 1 + ChunkSize // 246
	MaxTotal   = 255
	MaxPayload = ChunkSize * MaxTotal
)

var (
	ErrMalformedFrame = errors.New("wire: malformed frame")
	ErrOversizePayload = errors.New("wire: payload exceeds maximum fragmentable size")
)

// Frame is the wire-level unit. All fragments of one logical message share
// Sender and Seq; PacketIndex ranges over [0, TotalPackets).
type Frame struct {
	Type         Kind
	Sender       uint64
	Seq          uint32
	TotalPackets uint8
	PacketIndex  uint8
	DataLen      uint8
	Data         [ChunkSize]byte
}

// Encode writes f into the fixed 246-byte wire layout.
func Encode(f *Frame) []byte {
	buf := make([]byte, FrameSize)
	buf[0] = byte(f.Type)
	binary.LittleEndian.PutUint64(buf[1:9], f.Sender)
	binary.LittleEndian.PutUint32(buf[9:13], f.Seq)
	buf[13] = f.TotalPackets
	buf[14] = f.PacketIndex
	buf[15] = f.DataLen
	copy(buf[16:16+ChunkSize], f.Data[:])
	return buf
}

// Decode parses a 246-byte frame, rejecting the wrong length and any
// packet index/data-length combination that would overrun the declared
// fragment count.
func Decode(buf []byte) (*Frame, error) {
	if len(buf) != FrameSize {
		return nil, ErrMalformedFrame
	}
	f := &Frame{
		Type:         Kind(buf[0]),
		Sender:       binary.LittleEndian.Uint64(buf[1:9]),
		Seq:          binary.LittleEndian.Uint32(buf[9:13]),
		TotalPackets: buf[13],
		PacketIndex:  buf[14],
		DataLen:      buf[15],
	}
	if f.TotalPackets == 0 || f.PacketIndex >= f.TotalPackets {
		return nil, ErrMalformedFrame
	}
	if int(f.DataLen) > ChunkSize {
		return nil, ErrMalformedFrame
	}
	copy(f.Data[:], buf[16:16+ChunkSize])
	return f, nil
}

// Payload returns the fragment's data slice, truncated to DataLen.
func (f *Frame) Payload() []byte {
	return f.Data[:f.DataLen]
}
