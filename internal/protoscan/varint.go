// Package protoscan recovers per-model quota data from the undocumented
// protobuf-like blobs bundled into Antigravity model listings. There is no
// schema for this format; the scanner anchors on literal model-name strings
// and decodes the adjacent wire-format fields heuristically.
package protoscan

// maxVarintShift caps how far a varint read may extend, guarding against
// malformed input that never drops the continuation bit.
const maxVarintShift = 35

// readUvarint decodes a protobuf varint starting at off. It reads 7-bit
// groups low-to-high until a byte without the continuation bit, the end of
// the buffer, or the shift cap. It never fails: the return is always the
// best-effort value plus the number of bytes consumed, so callers can
// advance past garbage. A consumed count of 0 means off was out of bounds.
func readUvarint(buf []byte, off int) (uint64, int) {
	if off < 0 {
		return 0, 0
	}
	var value uint64
	var shift uint
	n := 0
	for off+n < len(buf) {
		b := buf[off+n]
		value |= uint64(b&0x7F) << shift
		n++
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > maxVarintShift {
			break
		}
	}
	return value, n
}
