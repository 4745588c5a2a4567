package nav

import (
	"fmt"
	"strings"
)

// DefaultPathCapacity is the number of turns the reference robot could store.
const DefaultPathCapacity = 100

// Path is the bounded, append-only record of turns taken during one run.
type Path struct {
	turns    []TurnSymbol
	capacity int
}

// NewPath creates an empty path holding at most capacity turns.
func NewPath(capacity int) *Path {
	if capacity <= 0 {
		capacity = DefaultPathCapacity
	}
	return &Path{
		turns:    make([]TurnSymbol, 0, capacity),
		capacity: capacity,
	}
}

// ParsePath reads a path from its text form, e.g. "LSRB".
func ParsePath(s string, capacity int) (*Path, error) {
	p := NewPath(capacity)
	for i := 0; i < len(s); i++ {
		t := TurnSymbol(s[i])
		if !t.Valid() {
			return nil, fmt.Errorf("invalid turn %q at %d", s[i], i)
		}
		if err := p.Append(t); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Append records t. It returns ErrPathFull and leaves the path unchanged
// when the path is at capacity.
func (p *Path) Append(t TurnSymbol) error {
	if !t.Valid() {
		return fmt.Errorf("append %v: invalid turn", t)
	}
	if len(p.turns) >= p.capacity {
		return fmt.Errorf("append %v: %w (%d)", t, ErrPathFull, p.capacity)
	}
	p.turns = append(p.turns, t)
	return nil
}

// Len returns the number of recorded turns.
func (p *Path) Len() int { return len(p.turns) }

// Cap returns the path capacity.
func (p *Path) Cap() int { return p.capacity }

// Turns returns a copy of the recorded turns.
func (p *Path) Turns() []TurnSymbol {
	out := make([]TurnSymbol, len(p.turns))
	copy(out, p.turns)
	return out
}

func (p *Path) String() string {
	var sb strings.Builder
	sb.Grow(len(p.turns))
	for _, t := range p.turns {
		sb.WriteByte(byte(t))
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p *Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
