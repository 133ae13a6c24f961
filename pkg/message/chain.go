package message

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Chain is an ordered, index-addressable sequence of validated segments
// representing one message. Every mutation re-validates the incoming segment
// and leaves the chain untouched on failure.
//
// Chain is not safe for concurrent mutation; a chain belongs to the single
// message (or event callback) it was built for.
type Chain struct {
	segs []Segment
}

// New builds a chain from segments and/or bare strings. Strings wrap into
// Plain segments. The first invalid element fails the whole construction.
func New(items ...any) (*Chain, error) {
	c := &Chain{segs: make([]Segment, 0, len(items))}
	for i, item := range items {
		seg, err := coerceSegment(item)
		if err != nil {
			return nil, fmt.Errorf("invalid message component at %d: %w", i, err)
		}
		c.segs = append(c.segs, seg)
	}
	return c, nil
}

// Coerce normalizes every accepted message form to a Chain: a bare string, a
// single Segment, a []Segment, a []any of strings and segments, or a Chain
// itself. Send-style operations call this at their boundary.
func Coerce(msg any) (*Chain, error) {
	switch v := msg.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil message", ErrInvalidSegment)
	case *Chain:
		if v == nil {
			return nil, fmt.Errorf("%w: nil message chain", ErrInvalidSegment)
		}
		return v, nil
	case Chain:
		return &v, nil
	case string:
		return New(v)
	case Segment:
		return New(v)
	case []Segment:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return New(items...)
	case []any:
		return New(v...)
	default:
		return nil, fmt.Errorf("%w: message must be a string, segment, segment slice or chain, got %T", ErrInvalidSegment, msg)
	}
}

func coerceSegment(item any) (Segment, error) {
	var seg Segment
	switch v := item.(type) {
	case string:
		seg = NewPlain(v)
	case Segment:
		seg = v
	default:
		return nil, fmt.Errorf("%w: expected string or segment, got %T", ErrInvalidSegment, item)
	}
	if seg == nil {
		return nil, fmt.Errorf("%w: nil segment", ErrInvalidSegment)
	}
	if err := seg.Validate(); err != nil {
		return nil, err
	}
	return seg, nil
}

// Append validates the segment (or string) and adds it to the end.
func (c *Chain) Append(item any) error {
	seg, err := coerceSegment(item)
	if err != nil {
		return err
	}
	c.segs = append(c.segs, seg)
	return nil
}

// Prepend validates the segment (or string) and inserts it at the front.
func (c *Chain) Prepend(item any) error {
	seg, err := coerceSegment(item)
	if err != nil {
		return err
	}
	c.segs = append([]Segment{seg}, c.segs...)
	return nil
}

// Set replaces the element at index, validating first. Out-of-range indexes
// are an error, not a grow.
func (c *Chain) Set(index int, item any) error {
	if index < 0 || index >= len(c.segs) {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidSegment, index, len(c.segs))
	}
	seg, err := coerceSegment(item)
	if err != nil {
		return err
	}
	c.segs[index] = seg
	return nil
}

// Remove deletes the element at index, reporting whether one existed.
func (c *Chain) Remove(index int) bool {
	if index < 0 || index >= len(c.segs) {
		return false
	}
	c.segs = append(c.segs[:index], c.segs[index+1:]...)
	return true
}

// At returns the element at index, or nil when out of range.
func (c *Chain) At(index int) Segment {
	if index < 0 || index >= len(c.segs) {
		return nil
	}
	return c.segs[index]
}

// Len returns the number of segments.
func (c *Chain) Len() int { return len(c.segs) }

// Segments returns a copy of the ordered segment list, the form consumed at
// the RPC boundary.
func (c *Chain) Segments() []Segment {
	out := make([]Segment, len(c.segs))
	copy(out, c.segs)
	return out
}

// ID returns the message id carried by a leading Source segment, or -1 when
// the chain has none. -1 is the documented "unknown" sentinel.
func (c *Chain) ID() int64 {
	if len(c.segs) > 0 {
		if src, ok := c.segs[0].(*Source); ok {
			return src.ID
		}
	}
	return -1
}

// String renders the chain as its one-way textual form: Plain text raw,
// Source omitted, every other variant as a [mirai:...] token. The rendering
// is irreversible.
func (c *Chain) String() string {
	var b strings.Builder
	for _, seg := range c.segs {
		b.WriteString(seg.String())
	}
	return b.String()
}

// MarshalJSON encodes the chain as the wire messageChain array.
func (c *Chain) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.segs)
}

// UnmarshalJSON decodes and validates a wire messageChain array in place.
func (c *Chain) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeChain(data)
	if err != nil {
		return err
	}
	c.segs = decoded.segs
	return nil
}
