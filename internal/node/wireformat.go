package node

import (
	"encoding/binary"

	"github.com/meshnode/meshnode/internal/membership"
	"github.com/meshnode/meshnode/internal/wire"
)

const nameFieldSize = 32

func encodeFixedString(s string, size int) []byte {
	b := make([]byte, size)
	copy(b, s)
	return b
}

func decodeFixedString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// encodePeerAnnouncement packs ip(4)+role(1)+group[32]+device_name[32],
// the fixed layout PeerAnnouncement carries.
func encodePeerAnnouncement(ip uint32, role membership.Role, group, deviceName string) []byte {
	buf := make([]byte, 4+1+nameFieldSize+nameFieldSize)
	binary.LittleEndian.PutUint32(buf[0:4], ip)
	buf[4] = byte(role)
	copy(buf[5:5+nameFieldSize], encodeFixedString(group, nameFieldSize))
	copy(buf[5+nameFieldSize:], encodeFixedString(deviceName, nameFieldSize))
	return buf
}

func decodePeerAnnouncement(data []byte) (ip uint32, role membership.Role, group, deviceName string, err error) {
	if len(data) != 4+1+2*nameFieldSize {
		return 0, 0, "", "", wire.ErrMalformedFrame
	}
	ip = binary.LittleEndian.Uint32(data[0:4])
	role = membership.Role(data[4])
	group = decodeFixedString(data[5 : 5+nameFieldSize])
	deviceName = decodeFixedString(data[5+nameFieldSize:])
	return ip, role, group, deviceName, nil
}

// encodeTimeSync carries the master's local monotonic clock reading at
// send time.
func encodeTimeSync(masterLocalMs int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(masterLocalMs))
	return buf
}

func decodeTimeSync(data []byte) (masterLocalMs int64, err error) {
	if len(data) != 8 {
		return 0, wire.ErrMalformedFrame
	}
	return int64(binary.LittleEndian.Uint64(data)), nil
}
