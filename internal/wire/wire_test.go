package wire

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := &Frame{
		Type:         KindHeartbeat,
		Sender:       42,
		Seq:          7,
		TotalPackets: 1,
		PacketIndex:  0,
		DataLen:      3,
	}
	copy(f.Data[:], []byte("abc"))

	buf := Encode(f)
	if len(buf) != FrameSize {
		t.Fatalf("expected %d bytes, got %d", FrameSize, len(buf))
	}

	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Sender != 42 || got.Seq != 7 || got.Type != KindHeartbeat {
		t.Fatalf("unexpected header: %+v", got)
	}
	if !bytes.Equal(got.Payload(), []byte("abc")) {
		t.Errorf("expected payload abc, got %q", got.Payload())
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	if _, err := Decode(make([]byte, FrameSize-1)); err != ErrMalformedFrame {
		t.Errorf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecodeRejectsOverrunningPacketIndex(t *testing.T) {
	f := &Frame{Type: KindHeartbeat, TotalPackets: 2, PacketIndex: 2}
	buf := Encode(f)
	if _, err := Decode(buf); err != ErrMalformedFrame {
		t.Errorf("expected ErrMalformedFrame for out-of-range packet index, got %v", err)
	}
}

func TestFragmentSingleChunkPayload(t *testing.T) {
	frames, err := Fragment(KindSavePreset, 1, 1, []byte("hello"))
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	if len(frames) != 1 || frames[0].TotalPackets != 1 {
		t.Fatalf("expected a single frame, got %d", len(frames))
	}
}

func TestFragmentMultiChunkPayload(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), ChunkSize*2+10)
	frames, err := Fragment(KindSavePreset, 1, 1, payload)
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(frames))
	}
	for i, f := range frames {
		if int(f.PacketIndex) != i || int(f.TotalPackets) != 3 {
			t.Errorf("fragment %d has wrong indices: %+v", i, f)
		}
	}
}

func TestFragmentRejectsOversizePayload(t *testing.T) {
	if _, err := Fragment(KindSavePreset, 1, 1, make([]byte, MaxPayload+1)); err != ErrOversizePayload {
		t.Errorf("expected ErrOversizePayload, got %v", err)
	}
}

func TestReassemblerCompletesAcrossFragments(t *testing.T) {
	payload := bytes.Repeat([]byte("y"), ChunkSize+5)
	frames, err := Fragment(KindSavePreset, 9, 3, payload)
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}

	r := NewReassembler()
	now := time.Now()
	if res := r.Feed(frames[0], now); res != nil {
		t.Fatalf("expected nil after first fragment, got %+v", res)
	}
	res := r.Feed(frames[1], now)
	if res == nil {
		t.Fatal("expected a completed Result after the final fragment")
	}
	if !bytes.Equal(res.Data, payload) {
		t.Errorf("reassembled payload mismatch: got %d bytes, want %d", len(res.Data), len(payload))
	}
	if res.Sender != 9 || res.Kind != KindSavePreset {
		t.Errorf("unexpected result header: %+v", res)
	}
}

func TestReassemblerCompletesOutOfOrderWithDuplicates(t *testing.T) {
	payload := bytes.Repeat([]byte("p"), ChunkSize*2+17)
	frames, err := Fragment(KindSavePreset, 9, 4, payload)
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}

	r := NewReassembler()
	now := time.Now()
	order := []int{2, 0, 2, 0, 1} // permuted, with duplicates interleaved
	var res *Result
	for _, i := range order {
		res = r.Feed(frames[i], now)
	}
	if res == nil {
		t.Fatal("expected completion once every distinct fragment arrived")
	}
	if !bytes.Equal(res.Data, payload) {
		t.Errorf("reassembled payload mismatch: got %d bytes, want %d", len(res.Data), len(payload))
	}
}

func TestReassemblerIncompleteWhenFragmentDropped(t *testing.T) {
	payload := bytes.Repeat([]byte("q"), ChunkSize*2+1)
	frames, _ := Fragment(KindSavePreset, 9, 5, payload)

	r := NewReassembler()
	now := time.Now()
	r.Feed(frames[0], now)
	if res := r.Feed(frames[2], now); res != nil {
		t.Fatal("message must not complete with a fragment missing")
	}
	recv, total := r.Pending(ClassPreset)
	if recv != 2 || total != 3 {
		t.Errorf("expected 2/3 packets pending, got %d/%d", recv, total)
	}
}

func TestReassemblerDropsDuplicateFragment(t *testing.T) {
	payload := bytes.Repeat([]byte("z"), ChunkSize+5)
	frames, _ := Fragment(KindSavePreset, 9, 3, payload)

	r := NewReassembler()
	now := time.Now()
	r.Feed(frames[0], now)
	if res := r.Feed(frames[0], now); res != nil {
		t.Errorf("expected duplicate fragment to be dropped, got %+v", res)
	}
	recv, total := r.Pending(ClassPreset)
	if recv != 1 || total != 2 {
		t.Errorf("expected 1/2 packets pending, got %d/%d", recv, total)
	}
}

func TestReassemblerResetsOnStaleBuffer(t *testing.T) {
	payload := bytes.Repeat([]byte("w"), ChunkSize+5)
	frames, _ := Fragment(KindSavePreset, 9, 3, payload)

	r := NewReassembler()
	start := time.Now()
	r.Feed(frames[0], start)

	later := start.Add(10 * time.Second) // beyond ClassPreset's 5s staleness
	res := r.Feed(frames[1], later)
	if res != nil {
		t.Fatal("expected the stale partial message to be dropped rather than completed")
	}
}

func TestReassemblerResetsOnNewSequence(t *testing.T) {
	firstPayload := bytes.Repeat([]byte("a"), ChunkSize+1)
	firstFrames, _ := Fragment(KindSavePreset, 9, 1, firstPayload)

	r := NewReassembler()
	now := time.Now()
	r.Feed(firstFrames[0], now) // leaves seq 1 half-complete

	secondPayload := []byte("small")
	secondFrames, _ := Fragment(KindSavePreset, 9, 2, secondPayload)
	res := r.Feed(secondFrames[0], now)
	if res == nil {
		t.Fatal("expected a new sequence to complete its own single-fragment message")
	}
	if !bytes.Equal(res.Data, secondPayload) {
		t.Errorf("got %q, want %q", res.Data, secondPayload)
	}
}
