package protoscan

// Protobuf wire types that occur in quota blobs.
const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

// notFound is the sentinel returned by skipField when a field cannot be
// skipped safely. It is never a valid offset.
const notFound = -1

// skipField advances the cursor past one encoded field without interpreting
// it, returning the new offset. An unknown wire type, or a skip that would
// run past the end of the buffer, returns notFound; the caller must abandon
// the current field walk rather than continue with a corrupted cursor.
func skipField(buf []byte, off int, wireType int) int {
	switch wireType {
	case wireVarint:
		_, n := readUvarint(buf, off)
		if n == 0 {
			return notFound
		}
		return off + n
	case wireFixed64:
		if off+8 > len(buf) {
			return notFound
		}
		return off + 8
	case wireBytes:
		length, n := readUvarint(buf, off)
		if n == 0 {
			return notFound
		}
		rest := len(buf) - off - n
		if rest < 0 || length > uint64(rest) {
			return notFound
		}
		return off + n + int(length)
	case wireFixed32:
		if off+4 > len(buf) {
			return notFound
		}
		return off + 4
	}
	return notFound
}
