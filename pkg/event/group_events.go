package event

import (
	"encoding/json"
	"fmt"

	"github.com/mirai-sdk/go-mirai/pkg/entity"
)

// RecallBase carries the fields shared by both recall variants.
type RecallBase struct {
	Base
	messageID int64
	authorID  int64
	time      int64
}

// MessageID returns the id of the recalled message.
func (r *RecallBase) MessageID() int64 { return r.messageID }

// AuthorID returns the account that sent the recalled message.
func (r *RecallBase) AuthorID() int64 { return r.authorID }

// Time returns the recall time in unix seconds.
func (r *RecallBase) Time() int64 { return r.time }

// GroupRecallEvent signals a message being recalled in a group.
type GroupRecallEvent struct {
	RecallBase
	group    *entity.Group
	author   *entity.Member
	operator *entity.Member
}

// Group returns the group the recall happened in.
func (e *GroupRecallEvent) Group() *entity.Group { return e.group }

// Author returns a handle to the recalled message's sender.
func (e *GroupRecallEvent) Author() *entity.Member { return e.author }

// Operator returns the member who performed the recall.
func (e *GroupRecallEvent) Operator() *entity.Member { return e.operator }

func decodeGroupRecall(tag string, raw json.RawMessage, s Session) (Event, error) {
	var wire struct {
		AuthorID  int64             `json:"authorId"`
		MessageID int64             `json:"messageId"`
		Time      int64             `json:"time"`
		Group     entity.GroupData  `json:"group"`
		Operator  entity.MemberData `json:"operator"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return &GroupRecallEvent{
		RecallBase: RecallBase{
			Base:      newBase(tag, raw, s),
			messageID: wire.MessageID,
			authorID:  wire.AuthorID,
			time:      wire.Time,
		},
		group:    entity.GroupFromData(wire.Group, s),
		author:   entity.NewMember(wire.AuthorID, wire.Group.ID, s),
		operator: entity.MemberFromData(wire.Operator, s),
	}, nil
}

// FriendRecallEvent signals a message being recalled in a private chat. The
// wire carries the operator as a bare account id.
type FriendRecallEvent struct {
	RecallBase
	author   *entity.Friend
	operator *entity.Friend
}

// Author returns a handle to the recalled message's sender.
func (e *FriendRecallEvent) Author() *entity.Friend { return e.author }

// Operator returns a handle to the account that performed the recall.
func (e *FriendRecallEvent) Operator() *entity.Friend { return e.operator }

func decodeFriendRecall(tag string, raw json.RawMessage, s Session) (Event, error) {
	var wire struct {
		AuthorID  int64 `json:"authorId"`
		MessageID int64 `json:"messageId"`
		Time      int64 `json:"time"`
		Operator  int64 `json:"operator"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return &FriendRecallEvent{
		RecallBase: RecallBase{
			Base:      newBase(tag, raw, s),
			messageID: wire.MessageID,
			authorID:  wire.AuthorID,
			time:      wire.Time,
		},
		author:   entity.NewFriend(wire.AuthorID, s),
		operator: entity.NewFriend(wire.Operator, s),
	}, nil
}

// GroupChangeBase carries the fields shared by all group setting change
// events: the value before and after, the group, and the operator. Origin
// and Current are strings for name-like settings and booleans for toggles,
// so they surface as decoded JSON values.
type GroupChangeBase struct {
	Base
	origin   any
	current  any
	group    *entity.Group
	operator *entity.Member
}

// Origin returns the setting's value before the change.
func (g *GroupChangeBase) Origin() any { return g.origin }

// Current returns the setting's value after the change.
func (g *GroupChangeBase) Current() any { return g.current }

// Group returns the group whose setting changed.
func (g *GroupChangeBase) Group() *entity.Group { return g.group }

// Operator returns the member who changed the setting.
func (g *GroupChangeBase) Operator() *entity.Member { return g.operator }

// GroupNameChangeEvent signals the group name changing.
type GroupNameChangeEvent struct{ GroupChangeBase }

// GroupEntranceAnnouncementChangeEvent signals the entrance announcement
// changing.
type GroupEntranceAnnouncementChangeEvent struct{ GroupChangeBase }

// GroupMuteAllEvent signals the whole-group mute toggling.
type GroupMuteAllEvent struct{ GroupChangeBase }

// GroupAllowAnonymousChatEvent signals the anonymous chat toggle changing.
type GroupAllowAnonymousChatEvent struct{ GroupChangeBase }

// GroupAllowMemberInviteEvent signals the member invite toggle changing.
type GroupAllowMemberInviteEvent struct{ GroupChangeBase }

func decodeGroupChangeBase(tag string, raw json.RawMessage, s Session) (GroupChangeBase, error) {
	var wire struct {
		Origin   any               `json:"origin"`
		Current  any               `json:"current"`
		Group    entity.GroupData  `json:"group"`
		Operator entity.MemberData `json:"operator"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return GroupChangeBase{}, fmt.Errorf("%s: %w", tag, err)
	}
	return GroupChangeBase{
		Base:     newBase(tag, raw, s),
		origin:   wire.Origin,
		current:  wire.Current,
		group:    entity.GroupFromData(wire.Group, s),
		operator: entity.MemberFromData(wire.Operator, s),
	}, nil
}

func decodeGroupChange(build func(GroupChangeBase) Event) decoder {
	return func(tag string, raw json.RawMessage, s Session) (Event, error) {
		base, err := decodeGroupChangeBase(tag, raw, s)
		if err != nil {
			return nil, err
		}
		return build(base), nil
	}
}

// GroupAllowConfessTalkEvent signals the confess talk toggle changing. Its
// wire payload carries no meaningful operator; use IsByBot instead.
type GroupAllowConfessTalkEvent struct {
	GroupChangeBase
	isByBot bool
}

// IsByBot reports whether the bot itself flipped the toggle.
func (e *GroupAllowConfessTalkEvent) IsByBot() bool { return e.isByBot }

// Operator always fails: the wire payload for this event has no operator.
// Call IsByBot instead. The error return shadows the embedded accessor on
// purpose.
func (e *GroupAllowConfessTalkEvent) Operator() (*entity.Member, error) {
	return nil, fmt.Errorf("%w: GroupAllowConfessTalkEvent has no operator, call IsByBot instead", ErrIllegalOperation)
}

func decodeGroupAllowConfessTalk(tag string, raw json.RawMessage, s Session) (Event, error) {
	var wire struct {
		Origin  any              `json:"origin"`
		Current any              `json:"current"`
		Group   entity.GroupData `json:"group"`
		IsByBot bool             `json:"isByBot"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return &GroupAllowConfessTalkEvent{
		GroupChangeBase: GroupChangeBase{
			Base:    newBase(tag, raw, s),
			origin:  wire.Origin,
			current: wire.Current,
			group:   entity.GroupFromData(wire.Group, s),
		},
		isByBot: wire.IsByBot,
	}, nil
}
