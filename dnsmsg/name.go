package dnsmsg

import (
	"fmt"
	"strings"
)

// LabelKind is the two high bits of a label length octet.
type LabelKind uint8

// Label kinds understood by the decoder. The 01 and 10 patterns are rejected.
const (
	LabelLiteral LabelKind = 0
	LabelPointer LabelKind = 3
)

const (
	maxLabelLen = 63
	maxNameLen  = 255

	// maxPointerDepth bounds recursion through chained compression pointers.
	maxPointerDepth = 128
)

// Label is a single wire label, either literal octets or a compression pointer.
type Label struct {
	Kind    LabelKind
	Text    string
	Pointer int
}

// ReadLabel reads one label at off without following pointers.
func ReadLabel(buf []byte, off int) (Label, int, error) {
	b, next, err := readUint8(buf, off)
	if err != nil {
		return Label{}, off, err
	}

	switch kind := LabelKind(b >> 6); kind {
	case LabelLiteral:
		n := int(b & 0x3f)
		if n > len(buf)-next {
			return Label{}, off, fmt.Errorf("%w: label of %d octets at offset %d", ErrTruncatedData, n, off)
		}

		return Label{Kind: LabelLiteral, Text: string(buf[next : next+n])}, next + n, nil

	case LabelPointer:
		v, next, err := readUint16(buf, off)
		if err != nil {
			return Label{}, off, err
		}

		return Label{Kind: LabelPointer, Pointer: int(v & 0x3fff)}, next, nil

	default:
		return Label{}, off, fmt.Errorf("%w %d at offset %d", ErrInvalidLabelType, kind, off)
	}
}

type memoState uint8

const (
	memoPending memoState = iota + 1
	memoResolved
)

type memoEntry struct {
	state memoState
	name  string
}

// NameMemo caches decompressed names by their starting offset. A memo is only
// valid for the message it was filled from.
type NameMemo map[int]memoEntry

// ReadName reads the domain name at off, following compression pointers, and
// returns it in fully qualified form ("www.example.org.", or "." for the
// root). The returned offset is just past the name as it appears at off.
func ReadName(buf []byte, off int, memo NameMemo) (string, int, error) {
	if memo == nil {
		memo = make(NameMemo)
	}

	return readName(buf, off, memo, 0)
}

func readName(buf []byte, off int, memo NameMemo, depth int) (string, int, error) {
	var labels []Label

	next := off
	for {
		l, n, err := ReadLabel(buf, next)
		if err != nil {
			return "", off, err
		}
		next = n

		labels = append(labels, l)

		// a pointer is always the last label of a name
		if l.Kind == LabelPointer || l.Text == "" {
			break
		}
	}

	entry, ok := memo[off]
	if !ok {
		if depth >= maxPointerDepth {
			return "", off, fmt.Errorf("%w: pointer chain deeper than %d at offset %d", ErrCompressionLoop, maxPointerDepth, off)
		}

		memo[off] = memoEntry{state: memoPending}

		var sb strings.Builder
		for _, l := range labels {
			if l.Kind == LabelLiteral {
				if l.Text != "" {
					sb.WriteString(l.Text)
					sb.WriteByte('.')
				}
				continue
			}

			suffix, _, err := readName(buf, l.Pointer, memo, depth+1)
			if err != nil {
				return "", off, err
			}

			if suffix != "." {
				sb.WriteString(suffix)
			}
		}

		name := sb.String()
		if name == "" {
			name = "."
		}

		entry = memoEntry{state: memoResolved, name: name}
		memo[off] = entry
	}

	if entry.state != memoResolved {
		return "", off, fmt.Errorf("%w at offset %d", ErrCompressionLoop, off)
	}

	return entry.name, next, nil
}

// AppendName appends name in uncompressed wire form. One trailing dot is
// optional; "" and "." both encode the root.
func AppendName(b []byte, name string) ([]byte, error) {
	trimmed := strings.TrimSuffix(name, ".")
	if trimmed == "" {
		return append(b, 0), nil
	}

	labels := strings.Split(trimmed, ".")

	size := 1
	for _, l := range labels {
		if len(l) == 0 || len(l) > maxLabelLen {
			return b, fmt.Errorf("%w %q: bad label length %d", ErrNameTooLong, name, len(l))
		}
		size += 1 + len(l)
	}

	if size > maxNameLen {
		return b, fmt.Errorf("%w %q: %d octets", ErrNameTooLong, name, size)
	}

	for _, l := range labels {
		b = append(b, byte(len(l)))
		b = append(b, l...)
	}

	return append(b, 0), nil
}
