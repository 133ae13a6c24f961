package event

import (
	"encoding/json"
	"fmt"

	"github.com/mirai-sdk/go-mirai/pkg/entity"
)

// BotSelfBase is shared by the bot lifecycle events, which only carry the
// bot's own account id.
type BotSelfBase struct {
	Base
	qq int64
}

// ID returns the bot account the event refers to.
func (b *BotSelfBase) ID() int64 { return b.qq }

// BotOnlineEvent signals the bot account logging in.
type BotOnlineEvent struct{ BotSelfBase }

// BotOfflineEventActive signals the bot logging out on purpose.
type BotOfflineEventActive struct{ BotSelfBase }

// BotOfflineEventForce signals the bot being logged out by another login.
type BotOfflineEventForce struct{ BotSelfBase }

// BotOfflineEventDropped signals the bot's connection being dropped.
type BotOfflineEventDropped struct{ BotSelfBase }

// BotReloginEvent signals the bot re-establishing its login.
type BotReloginEvent struct{ BotSelfBase }

func decodeBotSelf(build func(BotSelfBase) Event) decoder {
	return func(tag string, raw json.RawMessage, s Session) (Event, error) {
		var wire struct {
			QQ int64 `json:"qq"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		return build(BotSelfBase{Base: newBase(tag, raw, s), qq: wire.QQ}), nil
	}
}

// BotMuteEvent signals the bot being muted in a group.
type BotMuteEvent struct {
	Base
	duration int
	operator *entity.Member
	group    *entity.Group
}

// Duration returns the mute length in seconds.
func (e *BotMuteEvent) Duration() int { return e.duration }

// Operator returns the member who muted the bot.
func (e *BotMuteEvent) Operator() *entity.Member { return e.operator }

// Group returns the group the bot was muted in.
func (e *BotMuteEvent) Group() *entity.Group { return e.group }

func decodeBotMute(tag string, raw json.RawMessage, s Session) (Event, error) {
	var wire struct {
		DurationSeconds int               `json:"durationSeconds"`
		Operator        entity.MemberData `json:"operator"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	op := entity.MemberFromData(wire.Operator, s)
	return &BotMuteEvent{
		Base:     newBase(tag, raw, s),
		duration: wire.DurationSeconds,
		operator: op,
		group:    op.Group(),
	}, nil
}

// BotUnmuteEvent signals the bot being unmuted in a group.
type BotUnmuteEvent struct {
	Base
	operator *entity.Member
	group    *entity.Group
}

// Operator returns the member who unmuted the bot.
func (e *BotUnmuteEvent) Operator() *entity.Member { return e.operator }

// Group returns the group the bot was unmuted in.
func (e *BotUnmuteEvent) Group() *entity.Group { return e.group }

func decodeBotUnmute(tag string, raw json.RawMessage, s Session) (Event, error) {
	var wire struct {
		Operator entity.MemberData `json:"operator"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	op := entity.MemberFromData(wire.Operator, s)
	return &BotUnmuteEvent{Base: newBase(tag, raw, s), operator: op, group: op.Group()}, nil
}

// BotGroupPermissionChangeEvent signals the bot's permission in a group
// changing.
type BotGroupPermissionChangeEvent struct {
	Base
	origin  entity.Permission
	current entity.Permission
	group   *entity.Group
}

// Origin returns the permission before the change.
func (e *BotGroupPermissionChangeEvent) Origin() entity.Permission { return e.origin }

// Current returns the permission after the change.
func (e *BotGroupPermissionChangeEvent) Current() entity.Permission { return e.current }

// Group returns the group the change happened in.
func (e *BotGroupPermissionChangeEvent) Group() *entity.Group { return e.group }

func decodeBotGroupPermissionChange(tag string, raw json.RawMessage, s Session) (Event, error) {
	var wire struct {
		Origin  entity.Permission `json:"origin"`
		Current entity.Permission `json:"current"`
		Group   entity.GroupData  `json:"group"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return &BotGroupPermissionChangeEvent{
		Base:    newBase(tag, raw, s),
		origin:  wire.Origin,
		current: wire.Current,
		group:   entity.GroupFromData(wire.Group, s),
	}, nil
}

// botGroupBase is shared by the join/leave lifecycle events carrying only a
// group.
type botGroupBase struct {
	Base
	group *entity.Group
}

// Group returns the group the event refers to.
func (b *botGroupBase) Group() *entity.Group { return b.group }

// BotJoinGroupEvent signals the bot joining a group.
type BotJoinGroupEvent struct{ botGroupBase }

// BotLeaveEventActive signals the bot leaving a group on its own.
type BotLeaveEventActive struct{ botGroupBase }

// BotLeaveEventKick signals the bot being kicked from a group.
type BotLeaveEventKick struct{ botGroupBase }

func decodeBotGroup(build func(botGroupBase) Event) decoder {
	return func(tag string, raw json.RawMessage, s Session) (Event, error) {
		var wire struct {
			Group entity.GroupData `json:"group"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		return build(botGroupBase{
			Base:  newBase(tag, raw, s),
			group: entity.GroupFromData(wire.Group, s),
		}), nil
	}
}
