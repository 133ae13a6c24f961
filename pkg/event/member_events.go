package event

import (
	"encoding/json"
	"fmt"

	"github.com/mirai-sdk/go-mirai/pkg/entity"
)

// MemberJoinEvent signals a user joining a group.
type MemberJoinEvent struct {
	Base
	member *entity.Member
}

// Member returns the member who joined.
func (e *MemberJoinEvent) Member() *entity.Member { return e.member }

func decodeMemberJoin(tag string, raw json.RawMessage, s Session) (Event, error) {
	var wire struct {
		Member entity.MemberData `json:"member"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return &MemberJoinEvent{Base: newBase(tag, raw, s), member: entity.MemberFromData(wire.Member, s)}, nil
}

// MemberLeaveEventKick signals a member being removed from a group.
type MemberLeaveEventKick struct {
	Base
	member   *entity.Member
	operator *entity.Member
}

// Member returns the member who was removed.
func (e *MemberLeaveEventKick) Member() *entity.Member { return e.member }

// Operator returns the member who performed the removal.
func (e *MemberLeaveEventKick) Operator() *entity.Member { return e.operator }

func decodeMemberLeaveKick(tag string, raw json.RawMessage, s Session) (Event, error) {
	var wire struct {
		Member   entity.MemberData `json:"member"`
		Operator entity.MemberData `json:"operator"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return &MemberLeaveEventKick{
		Base:     newBase(tag, raw, s),
		member:   entity.MemberFromData(wire.Member, s),
		operator: entity.MemberFromData(wire.Operator, s),
	}, nil
}

// MemberLeaveEventQuit signals a member leaving a group on their own.
type MemberLeaveEventQuit struct {
	Base
	member *entity.Member
}

// Member returns the member who left.
func (e *MemberLeaveEventQuit) Member() *entity.Member { return e.member }

func decodeMemberLeaveQuit(tag string, raw json.RawMessage, s Session) (Event, error) {
	var wire struct {
		Member entity.MemberData `json:"member"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return &MemberLeaveEventQuit{Base: newBase(tag, raw, s), member: entity.MemberFromData(wire.Member, s)}, nil
}

// MemberChangeBase carries the fields shared by member attribute change
// events: the value before and after, plus the member.
type MemberChangeBase struct {
	Base
	origin  string
	current string
	member  *entity.Member
}

// Origin returns the attribute's value before the change.
func (m *MemberChangeBase) Origin() string { return m.origin }

// Current returns the attribute's value after the change.
func (m *MemberChangeBase) Current() string { return m.current }

// Member returns the member whose attribute changed.
func (m *MemberChangeBase) Member() *entity.Member { return m.member }

type memberChangeWire struct {
	Origin  string            `json:"origin"`
	Current string            `json:"current"`
	Member  entity.MemberData `json:"member"`
}

func decodeMemberChangeBase(tag string, raw json.RawMessage, s Session) (MemberChangeBase, memberChangeWire, error) {
	var wire memberChangeWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return MemberChangeBase{}, wire, fmt.Errorf("%s: %w", tag, err)
	}
	return MemberChangeBase{
		Base:    newBase(tag, raw, s),
		origin:  wire.Origin,
		current: wire.Current,
		member:  entity.MemberFromData(wire.Member, s),
	}, wire, nil
}

// MemberCardChangeEvent signals a member's group card changing. It is the
// only member change event carrying an operator.
type MemberCardChangeEvent struct {
	MemberChangeBase
	operator *entity.Member
}

// Operator returns the member who changed the card.
func (e *MemberCardChangeEvent) Operator() *entity.Member { return e.operator }

func decodeMemberCardChange(tag string, raw json.RawMessage, s Session) (Event, error) {
	base, _, err := decodeMemberChangeBase(tag, raw, s)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Operator entity.MemberData `json:"operator"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return &MemberCardChangeEvent{
		MemberChangeBase: base,
		operator:         entity.MemberFromData(wire.Operator, s),
	}, nil
}

// MemberSpecialTitleChangeEvent signals a member's special title changing.
type MemberSpecialTitleChangeEvent struct{ MemberChangeBase }

// MemberPermissionChangeEvent signals a member's permission changing.
type MemberPermissionChangeEvent struct{ MemberChangeBase }

func decodeMemberChange(build func(MemberChangeBase) Event) decoder {
	return func(tag string, raw json.RawMessage, s Session) (Event, error) {
		base, _, err := decodeMemberChangeBase(tag, raw, s)
		if err != nil {
			return nil, err
		}
		return build(base), nil
	}
}

// MemberMuteEvent signals a member being muted.
type MemberMuteEvent struct {
	Base
	duration int
	member   *entity.Member
	operator *entity.Member
}

// Duration returns the mute length in seconds.
func (e *MemberMuteEvent) Duration() int { return e.duration }

// Member returns the muted member.
func (e *MemberMuteEvent) Member() *entity.Member { return e.member }

// Operator returns the member who performed the mute.
func (e *MemberMuteEvent) Operator() *entity.Member { return e.operator }

// Group returns the group the mute happened in.
func (e *MemberMuteEvent) Group() *entity.Group { return e.operator.Group() }

func decodeMemberMute(tag string, raw json.RawMessage, s Session) (Event, error) {
	var wire struct {
		DurationSeconds int               `json:"durationSeconds"`
		Member          entity.MemberData `json:"member"`
		Operator        entity.MemberData `json:"operator"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return &MemberMuteEvent{
		Base:     newBase(tag, raw, s),
		duration: wire.DurationSeconds,
		member:   entity.MemberFromData(wire.Member, s),
		operator: entity.MemberFromData(wire.Operator, s),
	}, nil
}

// MemberUnmuteEvent signals a member being unmuted.
type MemberUnmuteEvent struct {
	Base
	member   *entity.Member
	operator *entity.Member
}

// Member returns the unmuted member.
func (e *MemberUnmuteEvent) Member() *entity.Member { return e.member }

// Operator returns the member who performed the unmute.
func (e *MemberUnmuteEvent) Operator() *entity.Member { return e.operator }

// Group returns the group the unmute happened in.
func (e *MemberUnmuteEvent) Group() *entity.Group { return e.operator.Group() }

func decodeMemberUnmute(tag string, raw json.RawMessage, s Session) (Event, error) {
	var wire struct {
		Member   entity.MemberData `json:"member"`
		Operator entity.MemberData `json:"operator"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return &MemberUnmuteEvent{
		Base:     newBase(tag, raw, s),
		member:   entity.MemberFromData(wire.Member, s),
		operator: entity.MemberFromData(wire.Operator, s),
	}, nil
}
