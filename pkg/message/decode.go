package message

import (
	"encoding/json"
	"fmt"
)

// rawHolder defers decoding of one wire segment until its type tag is known.
type rawHolder struct {
	data json.RawMessage
}

func (r *rawHolder) UnmarshalJSON(b []byte) error {
	r.data = append(r.data[:0], b...)
	return nil
}

// DecodeSegment turns one wire segment object into its typed variant. The
// result is validated; an unknown type tag or a failed validity check is an
// error, never a silent fallback.
func DecodeSegment(raw json.RawMessage) (Segment, error) {
	var probe struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSegment, err)
	}

	var seg Segment
	switch probe.Type {
	case TypeSource:
		seg = &Source{}
	case TypeQuote:
		seg = &Quote{}
	case TypeAt:
		seg = &At{}
	case TypeAtAll:
		seg = &AtAll{}
	case TypeFace:
		seg = &Face{}
	case TypePlain:
		seg = &Plain{}
	case TypeImage:
		seg = &Image{}
	case TypeVoice:
		seg = &Voice{}
	case TypeFlashImage:
		seg = &FlashImage{}
	case TypeXml:
		seg = &Xml{}
	case TypeJson:
		seg = &Json{}
	case TypeApp:
		seg = &App{}
	case TypePoke:
		seg = &Poke{}
	default:
		return nil, fmt.Errorf("%w: unknown segment type %q", ErrInvalidSegment, probe.Type)
	}

	if err := json.Unmarshal(raw, seg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSegment, err)
	}
	if err := seg.Validate(); err != nil {
		return nil, err
	}
	return seg, nil
}

// DecodeChain decodes a wire messageChain array into a validated Chain.
func DecodeChain(raw json.RawMessage) (*Chain, error) {
	var items []rawHolder
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSegment, err)
	}
	segs := make([]Segment, 0, len(items))
	for i, item := range items {
		seg, err := DecodeSegment(item.data)
		if err != nil {
			return nil, fmt.Errorf("invalid message component at %d: %w", i, err)
		}
		segs = append(segs, seg)
	}
	return &Chain{segs: segs}, nil
}
