package replication

import (
	"encoding/binary"

	"github.com/meshnode/meshnode/internal/wire"
)

// Payload layouts, stable across firmware revisions: every name field is
// NUL-terminated, fixed-width fields are little-endian.

func encodeName(name string) []byte {
	return wire.JoinNulStrings([]string{name}, nil)
}

func decodeName(data []byte) (string, error) {
	fields, _, err := wire.SplitNulStrings(data, 1)
	if err != nil {
		return "", err
	}
	return fields[0], nil
}

func encodeSavePreset(name, baseType string, paramsJSON []byte) []byte {
	return wire.JoinNulStrings([]string{name, baseType}, paramsJSON)
}

func decodeSavePreset(data []byte) (name, baseType string, paramsJSON []byte, err error) {
	fields, tail, err := wire.SplitNulStrings(data, 2)
	if err != nil {
		return "", "", nil, err
	}
	return fields[0], fields[1], tail, nil
}

func encodeRename(oldName, newName string) []byte {
	return wire.JoinNulStrings([]string{oldName, newName}, nil)
}

func decodeRename(data []byte) (oldName, newName string, err error) {
	fields, _, err := wire.SplitNulStrings(data, 2)
	if err != nil {
		return "", "", err
	}
	return fields[0], fields[1], nil
}

// RequestPresetData addresses one node: target_id(8) name\0. Every other
// receiver drops it after the target check.
func encodeRequestPresetData(targetID uint64, name string) []byte {
	buf := make([]byte, 8, 8+len(name)+1)
	binary.LittleEndian.PutUint64(buf, targetID)
	return append(buf, encodeName(name)...)
}

func decodeRequestPresetData(data []byte) (targetID uint64, name string, err error) {
	if len(data) < 8 {
		return 0, "", wire.ErrMalformedFrame
	}
	name, err = decodeName(data[8:])
	if err != nil {
		return 0, "", err
	}
	return binary.LittleEndian.Uint64(data[:8]), name, nil
}
