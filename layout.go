package silo

import "encoding/binary"

// Magic identifies a silo image. Little-endian, fixed size, checked before
// any offset in the header is trusted.
var Magic = [4]byte{'x', 'b', '2', '1'}

// Version is the current on-disk layout version.
const Version uint32 = 1

const (
	headerSize     = 4 + 4 + 4 + 4 + 8 + 16 // magic, version, strtab, strtab_ntags, padding, guid
	nodeRecordSize = 1 + 1 + 4 + 4 + 4 + 4   // flags, nr_attrs, element_name, next, parent, text
	attrRecordSize = 4 + 4                  // attr_name, attr_value
	sentinelSize   = 1 + 1 + 4 + 4 + 4       // flags, nr_attrs, element_name, next, parent (no text)

	flagIsNode  = 1 << 0
	flagHasText = 1 << 1
)

// header mirrors the fixed-size silo header described in spec.md §6.1.
type header struct {
	Magic       [4]byte
	Version     uint32
	Strtab      uint32
	StrtabNTags uint32
	GUID        [16]byte
}

func (h *header) encode() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Strtab)
	binary.LittleEndian.PutUint32(buf[12:16], h.StrtabNTags)
	// buf[16:24] is reserved padding, left zero.
	copy(buf[24:40], h.GUID[:])
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	var h header
	if len(buf) < headerSize {
		return h, &Error{Kind: InvalidData, Op: "decode header", Err: errTruncated}
	}
	copy(h.Magic[:], buf[0:4])
	if h.Magic != Magic {
		return h, &Error{Kind: BadMagic, Op: "decode header"}
	}
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	if h.Version != Version {
		return h, &Error{Kind: BadVersion, Op: "decode header"}
	}
	h.Strtab = binary.LittleEndian.Uint32(buf[8:12])
	h.StrtabNTags = binary.LittleEndian.Uint32(buf[12:16])
	copy(h.GUID[:], buf[24:40])
	return h, nil
}

// encodeNodeRecord writes a live node record (is_node=1) for n, whose
// string-table and link fields must already be resolved.
func encodeNodeRecord(n *BuilderNode, next, parent uint32) []byte {
	flags := byte(flagIsNode)
	hasText := n.HasText()
	if hasText {
		flags |= flagHasText
	}
	size := nodeRecordSize
	if !hasText {
		size -= 4
	}
	buf := make([]byte, size)
	buf[0] = flags
	buf[1] = byte(n.nrAttrs())
	binary.LittleEndian.PutUint32(buf[2:6], n.elementIdx)
	binary.LittleEndian.PutUint32(buf[6:10], next)
	binary.LittleEndian.PutUint32(buf[10:14], parent)
	if hasText {
		binary.LittleEndian.PutUint32(buf[14:18], n.textIdx)
	}
	return buf
}

// encodeAttrRecord writes one attribute record.
func encodeAttrRecord(nameIdx, valueIdx uint32) []byte {
	buf := make([]byte, attrRecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], nameIdx)
	binary.LittleEndian.PutUint32(buf[4:8], valueIdx)
	return buf
}

// encodeSentinel writes a zero-flagged NodeRecord marking the end of a
// subtree during pre-order traversal.
func encodeSentinel() []byte {
	return make([]byte, sentinelSize)
}
