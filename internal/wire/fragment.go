package wire

// Fragment splits payload into one or more Frames sharing sender/seq/kind,
// chunked at ChunkSize bytes (the last chunk may be shorter). A
// single-packet message sets TotalPackets=1, PacketIndex=0.
func Fragment(kind Kind, sender uint64, seq uint32, payload []byte) ([]*Frame, error) {
	if len(payload) > MaxPayload {
		return nil, ErrOversizePayload
	}
	total := (len(payload) + ChunkSize - 1) / ChunkSize
	if total == 0 {
		total = 1
	}
	frames := make([]*Frame, total)
	for i := 0; i < total; i++ {
		start := i * ChunkSize
		end := start + ChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[start:end]
		f := &Frame{
			Type:         kind,
			Sender:       sender,
			Seq:          seq,
			TotalPackets: uint8(total),
			PacketIndex:  uint8(i),
			DataLen:      uint8(len(chunk)),
		}
		copy(f.Data[:], chunk)
		frames[i] = f
	}
	return frames, nil
}
