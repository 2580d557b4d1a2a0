package commandbus

import (
	"bytes"
	"encoding/binary"

	"github.com/meshnode/meshnode/internal/wire"
)

const nameFieldSize = 32

func encodeFixedString(s string, size int) []byte {
	b := make([]byte, size)
	copy(b, s)
	return b
}

func decodeFixedString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func encodeSyncParam(group, paramName string, value []byte) []byte {
	return wire.JoinNulStrings([]string{group, paramName}, value)
}

func decodeSyncParam(data []byte) (group, paramName string, value []byte, err error) {
	fields, tail, err := wire.SplitNulStrings(data, 2)
	if err != nil {
		return "", "", nil, err
	}
	return fields[0], fields[1], tail, nil
}

func encodeSyncPower(group string, on bool) []byte {
	v := "0"
	if on {
		v = "1"
	}
	return wire.JoinNulStrings([]string{group}, []byte(v))
}

func decodeSyncPower(data []byte) (group string, on bool, err error) {
	fields, tail, err := wire.SplitNulStrings(data, 1)
	if err != nil {
		return "", false, err
	}
	return fields[0], len(tail) > 0 && tail[0] == '1', nil
}

// encodeAnimationState packs a fixed 32+32+4 layout: fixed-width name
// fields rather than NUL-delimited ones, since both fields have a known
// bounded length.
func encodeAnimationState(animationName, group string, startTime uint32) []byte {
	buf := make([]byte, nameFieldSize+nameFieldSize+4)
	copy(buf[0:nameFieldSize], encodeFixedString(animationName, nameFieldSize))
	copy(buf[nameFieldSize:2*nameFieldSize], encodeFixedString(group, nameFieldSize))
	binary.LittleEndian.PutUint32(buf[2*nameFieldSize:], startTime)
	return buf
}

func decodeAnimationState(data []byte) (animationName, group string, startTime uint32, err error) {
	if len(data) != 2*nameFieldSize+4 {
		return "", "", 0, wire.ErrMalformedFrame
	}
	animationName = decodeFixedString(data[0:nameFieldSize])
	group = decodeFixedString(data[nameFieldSize : 2*nameFieldSize])
	startTime = binary.LittleEndian.Uint32(data[2*nameFieldSize:])
	return animationName, group, startTime, nil
}

func encodeAssignGroup(targetID uint64, group string) []byte {
	buf := make([]byte, 8+len(group))
	binary.LittleEndian.PutUint64(buf[:8], targetID)
	copy(buf[8:], group)
	return buf
}

func decodeAssignGroup(data []byte) (targetID uint64, group string, err error) {
	if len(data) < 8 {
		return 0, "", wire.ErrMalformedFrame
	}
	return binary.LittleEndian.Uint64(data[:8]), string(data[8:]), nil
}
