// pattern/pattern.go

package pattern

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Op identifies what a single atom does when the pattern runs.
type Op uint8

const (
	OpByte  Op = iota // match one fixed byte
	OpSkip            // match N bytes of any value
	OpSave            // record the cursor into the next save slot
	OpJump1           // follow a signed rel8 operand
	OpJump4           // follow a signed rel32 operand
	OpPtr             // follow an absolute pointer operand
	OpPush            // remember where to come back after a jump
	OpPop             // return to the last pushed position
	OpRead            // read an N byte immediate into the next save slot
)

// Atom is one step of a pattern.
type Atom struct {
	Op     Op
	Value  byte
	N      uint32
	Signed bool
}

// Pattern is an immutable, parsed byte signature.
type Pattern struct {
	src   string
	atoms []Atom
	saves int
}

// String returns the source text the pattern was parsed from.
func (p *Pattern) String() string {
	return p.src
}

// Atoms returns a copy of the compiled atoms.
func (p *Pattern) Atoms() []Atom {
	return append([]Atom(nil), p.atoms...)
}

// SaveLen is the number of save slots a match fills. Slot 0 is always the
// match start, explicit saves and reads follow in pattern order.
func (p *Pattern) SaveLen() int {
	return p.saves + 1
}

// MustParse is like Parse but panics on malformed input. Used for the
// static signature tables.
func MustParse(s string) *Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse compiles a signature such as "48 8b 05 ${'} 0f57c0 [4] ?".
//
//	xx      fixed byte (hex)
//	? ??    any single byte
//	[n]     any n bytes
//	'       save the cursor
//	$ % *   follow a rel32, a rel8 or an absolute pointer
//	{ }     run the enclosed atoms at the jump target, then come back
//	u1 u2 u4 i1 i2 i4   read an immediate into a save slot
func Parse(s string) (*Pattern, error) {
	p := &Pattern{src: s}
	depth := 0

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case isHex(c):
			if i+1 >= len(s) || !isHex(s[i+1]) {
				return nil, errors.Errorf("pattern %q: dangling hex digit at %d", s, i)
			}
			p.atoms = append(p.atoms, Atom{Op: OpByte, Value: hexVal(c)<<4 | hexVal(s[i+1])})
			i += 2

		case c == '?':
			p.skip(1)
			i++
			if i < len(s) && s[i] == '?' {
				i++
			}

		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, errors.Errorf("pattern %q: unterminated skip at %d", s, i)
			}
			n, err := strconv.ParseUint(s[i+1:i+end], 10, 32)
			if err != nil || n == 0 {
				return nil, errors.Errorf("pattern %q: bad skip width %q", s, s[i+1:i+end])
			}
			p.skip(uint32(n))
			i += end + 1

		case c == '\'':
			p.atoms = append(p.atoms, Atom{Op: OpSave})
			p.saves++
			i++

		case c == '$':
			p.atoms = append(p.atoms, Atom{Op: OpJump4})
			i++

		case c == '%':
			p.atoms = append(p.atoms, Atom{Op: OpJump1})
			i++

		case c == '*':
			p.atoms = append(p.atoms, Atom{Op: OpPtr})
			i++

		case c == '{':
			if len(p.atoms) == 0 || !p.atoms[len(p.atoms)-1].Op.isJump() {
				return nil, errors.Errorf("pattern %q: '{' at %d does not follow a jump", s, i)
			}
			p.atoms = append(p.atoms, Atom{Op: OpPush})
			depth++
			i++

		case c == '}':
			if depth == 0 {
				return nil, errors.Errorf("pattern %q: unbalanced '}' at %d", s, i)
			}
			p.atoms = append(p.atoms, Atom{Op: OpPop})
			depth--
			i++

		case c == 'u' || c == 'i':
			if i+1 >= len(s) {
				return nil, errors.Errorf("pattern %q: missing read width at %d", s, i)
			}
			var n uint32
			switch s[i+1] {
			case '1':
				n = 1
			case '2':
				n = 2
			case '4':
				n = 4
			default:
				return nil, errors.Errorf("pattern %q: bad read width %q", s, s[i+1])
			}
			p.atoms = append(p.atoms, Atom{Op: OpRead, N: n, Signed: c == 'i'})
			p.saves++
			i += 2

		default:
			return nil, errors.Errorf("pattern %q: unexpected %q at %d", s, c, i)
		}
	}

	if depth != 0 {
		return nil, errors.Errorf("pattern %q: unbalanced '{'", s)
	}
	if len(p.atoms) == 0 {
		return nil, errors.Errorf("pattern %q: empty", s)
	}
	return p, nil
}

// skip merges consecutive wildcards into one span.
func (p *Pattern) skip(n uint32) {
	if last := len(p.atoms) - 1; last >= 0 && p.atoms[last].Op == OpSkip {
		p.atoms[last].N += n
		return
	}
	p.atoms = append(p.atoms, Atom{Op: OpSkip, N: n})
}

func (op Op) isJump() bool {
	return op == OpJump1 || op == OpJump4 || op == OpPtr
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func hexVal(c byte) byte {
	switch {
	case c <= '9':
		return c - '0'
	case c >= 'a':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
