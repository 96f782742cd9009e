package dnsmsg

import (
	"encoding/binary"
	"fmt"
)

// ReadUint reads a big-endian unsigned integer of width octets (1, 2 or 4)
// at off and returns it with the offset just past it.
func ReadUint(width int, buf []byte, off int) (uint64, int, error) {
	if off < 0 || width > len(buf)-off {
		return 0, off, fmt.Errorf("%w: need %d octets at offset %d, have %d", ErrTruncatedData, width, off, max(len(buf)-off, 0))
	}

	b := buf[off : off+width]

	switch width {
	case 1:
		return uint64(b[0]), off + 1, nil
	case 2:
		return uint64(binary.BigEndian.Uint16(b)), off + 2, nil
	case 4:
		return uint64(binary.BigEndian.Uint32(b)), off + 4, nil
	}

	panic(fmt.Sprintf("dnsmsg: unsupported integer width %d", width))
}

// AppendUint appends v as a big-endian unsigned integer of width octets.
func AppendUint(width int, b []byte, v uint64) []byte {
	switch width {
	case 1:
		return append(b, byte(v))
	case 2:
		return binary.BigEndian.AppendUint16(b, uint16(v))
	case 4:
		return binary.BigEndian.AppendUint32(b, uint32(v))
	}

	panic(fmt.Sprintf("dnsmsg: unsupported integer width %d", width))
}

func readUint8(buf []byte, off int) (uint8, int, error) {
	v, off, err := ReadUint(1, buf, off)
	return uint8(v), off, err
}

func readUint16(buf []byte, off int) (uint16, int, error) {
	v, off, err := ReadUint(2, buf, off)
	return uint16(v), off, err
}

func readUint32(buf []byte, off int) (uint32, int, error) {
	v, off, err := ReadUint(4, buf, off)
	return uint32(v), off, err
}

// ReadBitfields splits v into fields of the given bit widths, taking the
// least significant bits first.
//
//	ReadBitfields([]uint{4, 3, 1}, 0b1_010_0011) == []uint64{3, 2, 1}
func ReadBitfields(widths []uint, v uint64) []uint64 {
	fields := make([]uint64, len(widths))

	for i, w := range widths {
		fields[i] = v & (1<<w - 1)
		v >>= w
	}

	return fields
}

// WriteBitfields is the inverse of ReadBitfields. Values wider than their
// field are masked.
func WriteBitfields(widths []uint, values []uint64) uint64 {
	var (
		v     uint64
		shift uint
	)

	for i, w := range widths {
		if i < len(values) {
			v |= (values[i] & (1<<w - 1)) << shift
		}
		shift += w
	}

	return v
}
