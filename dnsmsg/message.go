// Package dnsmsg encodes and decodes DNS messages (RFC 1035 section 4).
//
// Names are decompressed on decode and always written in full on encode.
// Records of type A carry a typed payload; every other record type is kept
// as the raw payload octets and written back unchanged.
package dnsmsg

import (
	"fmt"
	"strings"
)

// Opcodes.
const (
	OpcodeQuery  uint8 = 0
	OpcodeIQuery uint8 = 1
	OpcodeStatus uint8 = 2
)

const (
	headerLen = 12

	// MaxMsgSize is the largest message that fits a UDP datagram.
	MaxMsgSize = 65535
)

// flags are packed least significant field first:
// rcode:4, z:3, ra:1, rd:1, tc:1, aa:1, opcode:4, qr:1.
var flagLayout = []uint{4, 3, 1, 1, 1, 1, 4, 1}

// Header is the fixed part of a message, without the section counts which
// are always derived from the sections themselves.
type Header struct {
	ID                 uint16
	Response           bool
	Opcode             uint8
	Authoritative      bool
	Truncated          bool
	RecursionDesired   bool
	RecursionAvailable bool
	Z                  uint8
	Rcode              uint8
}

func (h *Header) flags() uint16 {
	return uint16(WriteBitfields(flagLayout, []uint64{
		uint64(h.Rcode),
		uint64(h.Z),
		bit(h.RecursionAvailable),
		bit(h.RecursionDesired),
		bit(h.Truncated),
		bit(h.Authoritative),
		uint64(h.Opcode),
		bit(h.Response),
	}))
}

func (h *Header) setFlags(v uint16) {
	f := ReadBitfields(flagLayout, uint64(v))

	h.Rcode = uint8(f[0])
	h.Z = uint8(f[1])
	h.RecursionAvailable = f[2] == 1
	h.RecursionDesired = f[3] == 1
	h.Truncated = f[4] == 1
	h.Authoritative = f[5] == 1
	h.Opcode = uint8(f[6])
	h.Response = f[7] == 1
}

func bit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Question is an entry of the question section.
type Question struct {
	Name   string
	Qtype  RecordType
	Qclass Class
}

func (q *Question) unpack(buf []byte, off int, memo NameMemo) (int, error) {
	var err error

	if q.Name, off, err = ReadName(buf, off, memo); err != nil {
		return off, err
	}

	var v uint16
	if v, off, err = readUint16(buf, off); err != nil {
		return off, err
	}
	q.Qtype = RecordType(v)

	if v, off, err = readUint16(buf, off); err != nil {
		return off, err
	}
	q.Qclass = Class(v)

	return off, nil
}

func (q *Question) pack(b []byte) ([]byte, error) {
	b, err := AppendName(b, q.Name)
	if err != nil {
		return b, err
	}

	b = AppendUint(2, b, uint64(q.Qtype))
	b = AppendUint(2, b, uint64(q.Qclass))

	return b, nil
}

func (q *Question) String() string {
	return strings.ToLower(q.Name) + " " + q.Qclass.String() + " " + q.Qtype.String()
}

// ResourceRecord is an entry of the answer, authority or additional section.
//
// Data is nil for record types without a typed decoder; the record is then
// described entirely by Payload. When Data is set it is authoritative: the
// payload written on encode comes from Data and Payload is ignored.
type ResourceRecord struct {
	Name    string
	Type    RecordType
	Class   Class
	TTL     uint32
	Payload []byte
	Data    RData
}

func (rr *ResourceRecord) unpack(buf []byte, off int, memo NameMemo) (int, error) {
	var err error

	if rr.Name, off, err = ReadName(buf, off, memo); err != nil {
		return off, err
	}

	var v uint16
	if v, off, err = readUint16(buf, off); err != nil {
		return off, err
	}
	rr.Type = RecordType(v)

	if v, off, err = readUint16(buf, off); err != nil {
		return off, err
	}
	rr.Class = Class(v)

	if rr.TTL, off, err = readUint32(buf, off); err != nil {
		return off, err
	}

	var length uint16
	if length, off, err = readUint16(buf, off); err != nil {
		return off, err
	}

	if int(length) > len(buf)-off {
		return off, fmt.Errorf("%w: record payload of %d octets at offset %d", ErrTruncatedData, length, off)
	}

	rr.Payload = append([]byte(nil), buf[off:off+int(length)]...)
	off += int(length)

	rr.Data = NewRData(rr.Type)
	if rr.Data != nil {
		n, err := rr.Data.Unpack(rr.Payload)
		if err != nil {
			return off, err
		}

		if n != len(rr.Payload) {
			return off, fmt.Errorf("%w: %s record %q has %d extra octets", ErrUnexpectedSlack, rr.Type, rr.Name, len(rr.Payload)-n)
		}
	}

	return off, nil
}

func (rr *ResourceRecord) pack(b []byte) ([]byte, error) {
	payload := rr.Payload
	if rr.Data != nil {
		var err error
		if payload, err = rr.Data.Pack(nil); err != nil {
			return b, err
		}
	}

	if len(payload) > 0xffff {
		return b, fmt.Errorf("%w: record payload of %d octets", ErrMessageTooLarge, len(payload))
	}

	b, err := AppendName(b, rr.Name)
	if err != nil {
		return b, err
	}

	b = AppendUint(2, b, uint64(rr.Type))
	b = AppendUint(2, b, uint64(rr.Class))
	b = AppendUint(4, b, uint64(rr.TTL))
	b = AppendUint(2, b, uint64(len(payload)))

	return append(b, payload...), nil
}

func (rr *ResourceRecord) String() string {
	v := fmt.Sprintf("%q", rr.Payload)
	if rr.Data != nil {
		v = rr.Data.String()
	}

	return fmt.Sprintf("[RR %s %s %d %s %s]", rr.Type, rr.Class, rr.TTL, rr.Name, v)
}

// Message is a complete DNS message.
type Message struct {
	Header

	Question []Question
	Answer   []ResourceRecord
	Ns       []ResourceRecord
	Extra    []ResourceRecord
}

// IsStandardQuery reports whether m is a query with the QUERY opcode and
// exactly one question.
func (m *Message) IsStandardQuery() bool {
	return !m.Response && m.Opcode == OpcodeQuery && len(m.Question) == 1
}

// Decode parses a complete message. Every octet of buf must be accounted for
// by the sections the header declares.
func Decode(buf []byte) (*Message, error) {
	m := new(Message)
	memo := make(NameMemo)

	id, off, err := readUint16(buf, 0)
	if err != nil {
		return nil, err
	}
	m.ID = id

	flags, off, err := readUint16(buf, off)
	if err != nil {
		return nil, err
	}
	m.setFlags(flags)

	var counts [4]uint16
	for i := range counts {
		if counts[i], off, err = readUint16(buf, off); err != nil {
			return nil, err
		}
	}

	// Counts come from the sender; capacity is bounded by what the
	// remaining octets can hold.
	if n := int(counts[0]); n > 0 {
		m.Question = make([]Question, 0, min(n, (len(buf)-off)/minQuestionSize))
		for i := 0; i < n; i++ {
			var q Question
			if off, err = q.unpack(buf, off, memo); err != nil {
				return nil, fmt.Errorf("question %d: %w", i, err)
			}
			m.Question = append(m.Question, q)
		}
	}

	sections := []*[]ResourceRecord{&m.Answer, &m.Ns, &m.Extra}
	for s, section := range sections {
		n := int(counts[s+1])
		if n == 0 {
			continue
		}

		rrs := make([]ResourceRecord, 0, min(n, (len(buf)-off)/minRecordSize))
		for i := 0; i < n; i++ {
			var rr ResourceRecord
			if off, err = rr.unpack(buf, off, memo); err != nil {
				return nil, fmt.Errorf("%s record %d: %w", sectionNames[s], i, err)
			}
			rrs = append(rrs, rr)
		}
		*section = rrs
	}

	if off < len(buf) {
		return nil, fmt.Errorf("%w: %d octets after offset %d", ErrSlackData, len(buf)-off, off)
	}

	return m, nil
}

var sectionNames = [3]string{"answer", "authority", "additional"}

// Smallest wire forms: a root name followed by the fixed fields.
const (
	minQuestionSize = 1 + 4
	minRecordSize   = 1 + 10
)

// Encode serializes m. Section counts are taken from the section lengths and
// the payload of every typed record is regenerated from its Data.
func (m *Message) Encode() ([]byte, error) {
	for _, n := range []int{len(m.Question), len(m.Answer), len(m.Ns), len(m.Extra)} {
		if n > 0xffff {
			return nil, fmt.Errorf("%w: %d entries in one section", ErrMessageTooLarge, n)
		}
	}

	b := make([]byte, 0, 512)

	b = AppendUint(2, b, uint64(m.ID))
	b = AppendUint(2, b, uint64(m.flags()))
	b = AppendUint(2, b, uint64(len(m.Question)))
	b = AppendUint(2, b, uint64(len(m.Answer)))
	b = AppendUint(2, b, uint64(len(m.Ns)))
	b = AppendUint(2, b, uint64(len(m.Extra)))

	var err error
	for i := range m.Question {
		if b, err = m.Question[i].pack(b); err != nil {
			return nil, err
		}
	}

	for _, section := range [][]ResourceRecord{m.Answer, m.Ns, m.Extra} {
		for i := range section {
			if b, err = section[i].pack(b); err != nil {
				return nil, err
			}
		}
	}

	if len(b) > MaxMsgSize {
		return nil, fmt.Errorf("%w: %d octets", ErrMessageTooLarge, len(b))
	}

	return b, nil
}

func (m *Message) String() string {
	arr := func(rrs []ResourceRecord) string {
		s := make([]string, len(rrs))
		for i := range rrs {
			s[i] = rrs[i].String()
		}
		return "[" + strings.Join(s, ", ") + "]"
	}

	qd := make([]string, len(m.Question))
	for i := range m.Question {
		qd[i] = "[Q " + m.Question[i].String() + "]"
	}

	return fmt.Sprintf("[DNSMsg id=%d rcode=%d z=%d ra=%t rd=%t tc=%t aa=%t opcode=%d qr=%t qd=[%s] an=%s ns=%s ar=%s]",
		m.ID, m.Rcode, m.Z, m.RecursionAvailable, m.RecursionDesired, m.Truncated, m.Authoritative, m.Opcode, m.Response,
		strings.Join(qd, ", "), arr(m.Answer), arr(m.Ns), arr(m.Extra))
}
