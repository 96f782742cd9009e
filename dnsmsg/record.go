package dnsmsg

import (
	"fmt"
	"net/netip"
	"strconv"

	"github.com/miekg/dns"
)

// RecordType is a resource record or query type code.
type RecordType uint16

// Record types the resolver names in logs and configuration. Only A has a
// typed payload; everything else is carried opaquely.
const (
	TypeA     RecordType = 1
	TypeNS    RecordType = 2
	TypeCNAME RecordType = 5
	TypePTR   RecordType = 12
	TypeMX    RecordType = 15
	TypeTXT   RecordType = 16
	TypeAAAA  RecordType = 28
	TypeOPT   RecordType = 41
)

func (t RecordType) String() string {
	if s, ok := dns.TypeToString[uint16(t)]; ok {
		return s
	}

	return "TYPE" + strconv.Itoa(int(t))
}

// ParseType returns the type code for a mnemonic such as "A".
func ParseType(s string) (RecordType, bool) {
	t, ok := dns.StringToType[s]
	return RecordType(t), ok
}

// Class is a record class code.
type Class uint16

// ClassIN is the Internet class.
const ClassIN Class = 1

func (c Class) String() string {
	if s, ok := dns.ClassToString[uint16(c)]; ok {
		return s
	}

	return "CLASS" + strconv.Itoa(int(c))
}

// RData is the typed form of a record payload.
type RData interface {
	Type() RecordType
	// Unpack decodes payload and reports how many octets it consumed.
	Unpack(payload []byte) (int, error)
	// Pack appends the wire form to b.
	Pack(b []byte) ([]byte, error)
	String() string
}

var rdataTypes = map[RecordType]func() RData{
	TypeA: func() RData { return new(A) },
}

// NewRData returns an empty typed payload for t, or nil when t is carried
// opaquely.
func NewRData(t RecordType) RData {
	if fn, ok := rdataTypes[t]; ok {
		return fn()
	}

	return nil
}

// A is an IPv4 address payload.
type A struct {
	Addr netip.Addr
}

// ParseA parses a dotted-quad IPv4 literal.
func ParseA(s string) (*A, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return nil, fmt.Errorf("bad IPv4 address format: %q", s)
	}

	return &A{Addr: addr}, nil
}

// Type implements RData.
func (a *A) Type() RecordType { return TypeA }

// Unpack implements RData.
func (a *A) Unpack(payload []byte) (int, error) {
	if len(payload) < 4 {
		return 0, fmt.Errorf("%w: A record needs 4 octets, have %d", ErrTruncatedData, len(payload))
	}

	a.Addr = netip.AddrFrom4([4]byte(payload[:4]))

	return 4, nil
}

// Pack implements RData.
func (a *A) Pack(b []byte) ([]byte, error) {
	if !a.Addr.Is4() {
		return b, fmt.Errorf("A record holds non IPv4 address %s", a.Addr)
	}

	ip := a.Addr.As4()

	return append(b, ip[:]...), nil
}

func (a *A) String() string { return a.Addr.String() }
