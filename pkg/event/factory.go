package event

import (
	"encoding/json"
	"fmt"
)

// decoder instantiates one concrete event variant from its wire payload.
// tag is the payload's type tag, kept on the event envelope.
type decoder func(tag string, raw json.RawMessage, s Session) (Event, error)

// The wire tag of message events is shared with a non-event message-chain
// shape, so their registry keys carry an Event suffix the tag itself lacks.
var messageTags = map[string]bool{
	"GroupMessage":  true,
	"FriendMessage": true,
	"TempMessage":   true,
}

var decoders = map[string]decoder{
	"GroupMessageEvent":  decodeGroupMessage,
	"FriendMessageEvent": decodeFriendMessage,
	"TempMessageEvent":   decodeTempMessage,

	"BotOnlineEvent":         decodeBotSelf(func(b BotSelfBase) Event { return &BotOnlineEvent{b} }),
	"BotOfflineEventActive":  decodeBotSelf(func(b BotSelfBase) Event { return &BotOfflineEventActive{b} }),
	"BotOfflineEventForce":   decodeBotSelf(func(b BotSelfBase) Event { return &BotOfflineEventForce{b} }),
	"BotOfflineEventDropped": decodeBotSelf(func(b BotSelfBase) Event { return &BotOfflineEventDropped{b} }),
	"BotReloginEvent":        decodeBotSelf(func(b BotSelfBase) Event { return &BotReloginEvent{b} }),

	"BotMuteEvent":                  decodeBotMute,
	"BotUnmuteEvent":                decodeBotUnmute,
	"BotGroupPermissionChangeEvent": decodeBotGroupPermissionChange,
	"BotJoinGroupEvent":             decodeBotGroup(func(b botGroupBase) Event { return &BotJoinGroupEvent{b} }),
	"BotLeaveEventActive":           decodeBotGroup(func(b botGroupBase) Event { return &BotLeaveEventActive{b} }),
	"BotLeaveEventKick":             decodeBotGroup(func(b botGroupBase) Event { return &BotLeaveEventKick{b} }),

	"GroupRecallEvent":  decodeGroupRecall,
	"FriendRecallEvent": decodeFriendRecall,

	"GroupNameChangeEvent":                 decodeGroupChange(func(b GroupChangeBase) Event { return &GroupNameChangeEvent{b} }),
	"GroupEntranceAnnouncementChangeEvent": decodeGroupChange(func(b GroupChangeBase) Event { return &GroupEntranceAnnouncementChangeEvent{b} }),
	"GroupMuteAllEvent":                    decodeGroupChange(func(b GroupChangeBase) Event { return &GroupMuteAllEvent{b} }),
	"GroupAllowAnonymousChatEvent":         decodeGroupChange(func(b GroupChangeBase) Event { return &GroupAllowAnonymousChatEvent{b} }),
	"GroupAllowConfessTalkEvent":           decodeGroupAllowConfessTalk,
	"GroupAllowMemberInviteEvent":          decodeGroupChange(func(b GroupChangeBase) Event { return &GroupAllowMemberInviteEvent{b} }),

	"MemberJoinEvent":               decodeMemberJoin,
	"MemberLeaveEventKick":          decodeMemberLeaveKick,
	"MemberLeaveEventQuit":          decodeMemberLeaveQuit,
	"MemberCardChangeEvent":         decodeMemberCardChange,
	"MemberSpecialTitleChangeEvent": decodeMemberChange(func(b MemberChangeBase) Event { return &MemberSpecialTitleChangeEvent{b} }),
	"MemberPermissionChangeEvent":   decodeMemberChange(func(b MemberChangeBase) Event { return &MemberPermissionChangeEvent{b} }),
	"MemberMuteEvent":               decodeMemberMute,
	"MemberUnmuteEvent":             decodeMemberUnmute,

	"NewFriendRequestEvent":           decodeNewFriendRequest,
	"MemberJoinRequestEvent":          decodeMemberJoinRequest,
	"BotInvitedJoinGroupRequestEvent": decodeBotInvitedJoinGroupRequest,
}

// UnknownTypeError reports a payload whose type tag matches no known event
// variant. The stream loop surfaces it instead of dropping the frame.
type UnknownTypeError struct {
	Tag string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Tag)
}

// Decode reads the payload's type tag, resolves the concrete variant
// (message tags gain an Event suffix), and instantiates it bound to the
// given session.
func Decode(raw json.RawMessage, s Session) (Event, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	resolved := probe.Type
	if messageTags[resolved] {
		resolved += "Event"
	}
	dec, ok := decoders[resolved]
	if !ok {
		return nil, &UnknownTypeError{Tag: resolved}
	}
	return dec(probe.Type, raw, s)
}
