package datagrambus

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/meshnode/meshnode/internal/wire"
)

func mustOpen(t *testing.T) *Bus {
	t.Helper()
	b, err := Open("", 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func encodeTestFrame(t *testing.T, sender uint64) []byte {
	t.Helper()
	f := &wire.Frame{Type: wire.KindHeartbeat, Sender: sender, Seq: 1, TotalPackets: 1, PacketIndex: 0}
	return wire.Encode(f)
}

// sendTo writes data directly to the bus's bound loopback port, bypassing
// the broadcast path so the test doesn't depend on SO_BROADCAST working
// inside whatever network namespace it runs in.
func sendTo(t *testing.T, b *Bus, data []byte) {
	t.Helper()
	boundPort := b.LocalAddr().(*net.UDPAddr).Port
	dest := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: boundPort}
	src, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer src.Close()
	if _, err := src.WriteToUDP(data, dest); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}
}

func TestRunDeliversExactLengthFrames(t *testing.T) {
	b := mustOpen(t)

	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})
	b.SetHandler(func(_ net.Addr, data []byte) {
		mu.Lock()
		got = data
		mu.Unlock()
		close(done)
	})
	go b.Run()

	sendTo(t, b, encodeTestFrame(t, 42))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the handler to fire")
	}

	mu.Lock()
	defer mu.Unlock()
	f, err := wire.Decode(got)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Sender != 42 {
		t.Errorf("expected sender 42, got %d", f.Sender)
	}
}

func TestRunDropsDatagramsOfWrongLength(t *testing.T) {
	b := mustOpen(t)

	fired := make(chan struct{}, 1)
	b.SetHandler(func(net.Addr, []byte) { fired <- struct{}{} })
	go b.Run()

	sendTo(t, b, []byte("not a frame"))

	select {
	case <-fired:
		t.Fatal("expected the length filter to drop an undersized datagram")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBroadcastRejectsWrongLengthPayload(t *testing.T) {
	b := mustOpen(t)
	if err := b.Broadcast([]byte("short")); err != ErrOversize {
		t.Errorf("expected ErrOversize, got %v", err)
	}
}

func TestCloseStopsRun(t *testing.T) {
	b, err := Open("", 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	go b.Run()
	time.Sleep(20 * time.Millisecond)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
