package graphstore

import "encoding/binary"

// AdjacencyWidth is the encoded size of one adjacency entry.
const AdjacencyWidth = 4

// EncodeAdjacency packs ids as fixed-width little-endian uint32 values.
func EncodeAdjacency(ids []uint32) []byte {
	buf := make([]byte, len(ids)*AdjacencyWidth)
	for i, id := range ids {
		binary.LittleEndian.PutUint32(buf[i*AdjacencyWidth:], id)
	}
	return buf
}

// DecodeAdjacency is the inverse of EncodeAdjacency. A buffer whose length is
// not a multiple of AdjacencyWidth is rejected rather than truncated.
func DecodeAdjacency(buf []byte) ([]uint32, error) {
	if len(buf)%AdjacencyWidth != 0 {
		return nil, &EncodingError{Len: len(buf), Width: AdjacencyWidth}
	}
	ids := make([]uint32, len(buf)/AdjacencyWidth)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint32(buf[i*AdjacencyWidth:])
	}
	return ids, nil
}
