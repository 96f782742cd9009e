// Package rules holds the locally answered name mappings.
//
// A rule is written as type:pattern:value, for example
//
//	A:host\.example\.:10.0.0.5
//	A:.*\.lan\.:192.168.1.1
//
// The pattern is a regular expression anchored at both ends and matched
// case-sensitively against the fully qualified query name.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/semihalev/dnsredir/dnsmsg"
)

// ErrBadRule is returned for rules that cannot be parsed.
var ErrBadRule = errors.New("bad rule")

// Matcher decides whether a query name is covered by a rule.
type Matcher interface {
	Match(name string) bool
	String() string
}

type regexpMatcher struct {
	pattern string
	re      *regexp.Regexp
}

// Compile returns a Matcher for pattern anchored to the full name.
func Compile(pattern string) (Matcher, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}

	return &regexpMatcher{pattern: pattern, re: re}, nil
}

func (m *regexpMatcher) Match(name string) bool { return m.re.MatchString(name) }
func (m *regexpMatcher) String() string         { return m.pattern }

// Rule maps names of one query type to a fixed answer.
type Rule struct {
	Type    dnsmsg.RecordType
	Pattern Matcher
	Value   dnsmsg.RData
}

// Parse parses a type:pattern:value rule. Only A rules are supported.
func Parse(s string) (Rule, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Rule{}, fmt.Errorf("%w: must be type:name:value -- %q", ErrBadRule, s)
	}

	typ, ok := dnsmsg.ParseType(parts[0])
	if !ok || typ != dnsmsg.TypeA {
		return Rule{}, fmt.Errorf("%w: unsupported query type %q in %q", ErrBadRule, parts[0], s)
	}

	if parts[1] == "" {
		return Rule{}, fmt.Errorf("%w: empty name pattern in %q", ErrBadRule, s)
	}

	pattern, err := Compile(parts[1])
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %q: %w", ErrBadRule, s, err)
	}

	value, err := dnsmsg.ParseA(parts[2])
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %w", ErrBadRule, err)
	}

	return Rule{Type: typ, Pattern: pattern, Value: value}, nil
}

func (r Rule) String() string {
	return r.Type.String() + ":" + r.Pattern.String() + ":" + r.Value.String()
}

// Table is an ordered, read-only list of rules.
type Table struct {
	rules []Rule
}

// New parses every rule in order.
func New(lines []string) (*Table, error) {
	t := &Table{rules: make([]Rule, 0, len(lines))}

	for _, s := range lines {
		r, err := Parse(s)
		if err != nil {
			return nil, err
		}
		t.rules = append(t.rules, r)
	}

	return t, nil
}

// Match returns the value of the first rule whose type and pattern match.
func (t *Table) Match(qtype dnsmsg.RecordType, name string) (dnsmsg.RData, bool) {
	for _, r := range t.rules {
		if r.Type == qtype && r.Pattern.Match(name) {
			return r.Value, true
		}
	}

	return nil, false
}

// Rules returns the rules in configuration order.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Len returns the number of rules.
func (t *Table) Len() int { return len(t.rules) }
