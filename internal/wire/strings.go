package wire

import "bytes"

// SplitNulStrings splits data into exactly n NUL-terminated leading
// fields followed by a raw tail (used for SavePreset's
// name\0 base_type\0 params_json layout, where params_json is arbitrary
// JSON and must not itself be scanned for NUL bytes). Returns
// ErrMalformedFrame if fewer than n NUL bytes are found.
func SplitNulStrings(data []byte, n int) ([]string, []byte, error) {
	fields := make([]string, 0, n)
	rest := data
	for i := 0; i < n; i++ {
		idx := bytes.IndexByte(rest, 0)
		if idx < 0 {
			return nil, nil, ErrMalformedFrame
		}
		fields = append(fields, string(rest[:idx]))
		rest = rest[idx+1:]
	}
	return fields, rest, nil
}

// JoinNulStrings concatenates fields NUL-terminated, followed by tail
// verbatim.
func JoinNulStrings(fields []string, tail []byte) []byte {
	var buf bytes.Buffer
	for _, f := range fields {
		buf.WriteString(f)
		buf.WriteByte(0)
	}
	buf.Write(tail)
	return buf.Bytes()
}
