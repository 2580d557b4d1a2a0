// Package datagrambus is a fixed-size broadcast send/receive primitive,
// with sender-filtering left to the codec layer above it. It broadcasts
// over UDP and reaches for golang.org/x/net/ipv4 to set the TTL of the
// underlying socket.
package datagrambus

import (
	"errors"
	"net"
	"sync/atomic"

	"golang.org/x/net/ipv4"

	"github.com/meshnode/meshnode/internal/logger"
	"github.com/meshnode/meshnode/internal/wire"
)

const broadcastTTL = 1 // a mesh segment is one broadcast domain; never route

var (
	ErrWouldBlock = errors.New("datagrambus: send would block")
	ErrSend       = errors.New("datagrambus: send failed")
	ErrOversize   = errors.New("datagrambus: payload exceeds frame size")
)

// Handler is invoked once per inbound datagram whose length exactly
// matches wire.FrameSize; anything else is dropped by the bus before the
// handler ever sees it, length-filter invariant.
type Handler func(sourceAddr net.Addr, data []byte)

// Bus is a fixed-size broadcast send/receive primitive over UDP. No
// backpressure is surfaced upward; a failed send is logged and dropped by
// the caller's discretion (the caller decides whether to retry, not Bus).
type Bus struct {
	conn      *net.UDPConn
	pktConn   *ipv4.PacketConn
	broadcast *net.UDPAddr
	handler   Handler
	stopCh    chan struct{}
	stoppedCh chan struct{}
	started   atomic.Bool
}

// Open binds a UDP socket on port and resolves the interface's broadcast
// address, falling back to the limited broadcast address when iface has
// no usable IPv4 assignment.
func Open(iface string, port int) (*Bus, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}
	pktConn := ipv4.NewPacketConn(conn)
	if err := pktConn.SetTTL(broadcastTTL); err != nil {
		logger.Warnf("[datagrambus] set ttl failed: %v", err)
	}
	broadcastIP, err := broadcastAddress(iface)
	if err != nil {
		broadcastIP = net.IPv4bcast
	}
	return &Bus{
		conn:      conn,
		pktConn:   pktConn,
		broadcast: &net.UDPAddr{IP: broadcastIP, Port: port},
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}, nil
}

// SetHandler installs the inbound callback. Must be called before Run.
func (b *Bus) SetHandler(h Handler) {
	b.handler = h
}

// LocalAddr returns the bound socket's local address.
func (b *Bus) LocalAddr() net.Addr {
	return b.conn.LocalAddr()
}

// Run blocks, delivering inbound frames to the handler until Close is
// called. Intended to be run on its own goroutine (the "radio callback"
// context).
func (b *Bus) Run() {
	b.started.Store(true)
	defer close(b.stoppedCh)
	buf := make([]byte, 2048)
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}
		n, addr, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-b.stopCh:
				return
			default:
			}
			continue
		}
		if n != wire.FrameSize {
			continue // length filter: the bus's only validation duty
		}
		if b.handler != nil {
			data := make([]byte, n)
			copy(data, buf[:n])
			b.handler(addr, data)
		}
	}
}

// Broadcast sends a single fixed-size frame to the broadcast address.
func (b *Bus) Broadcast(data []byte) error {
	if len(data) != wire.FrameSize {
		return ErrOversize
	}
	if _, err := b.conn.WriteToUDP(data, b.broadcast); err != nil {
		logger.Warnf("[datagrambus] broadcast failed: %v", err)
		return ErrSend
	}
	return nil
}

// Close stops Run (if it was started) and releases the socket.
func (b *Bus) Close() error {
	close(b.stopCh)
	err := b.conn.Close()
	if b.started.Load() {
		<-b.stoppedCh
	}
	return err
}

func broadcastAddress(iface string) (net.IP, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, err
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.To4() == nil {
			continue
		}
		ip := ipnet.IP.To4()
		mask := ipnet.Mask
		bcast := make(net.IP, 4)
		for i := range ip {
			bcast[i] = ip[i] | ^mask[i]
		}
		return bcast, nil
	}
	return nil, errors.New("datagrambus: no IPv4 address on interface")
}
