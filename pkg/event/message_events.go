package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mirai-sdk/go-mirai/pkg/entity"
	"github.com/mirai-sdk/go-mirai/pkg/message"
)

// MessageBase is shared by the three message event variants: the decoded,
// validated chain plus the envelope.
type MessageBase struct {
	Base
	chain *message.Chain
}

// Chain returns the message chain. Its leading Source segment carries the
// message id.
func (m *MessageBase) Chain() *message.Chain { return m.chain }

// GroupMessageEvent is a message received in a group.
type GroupMessageEvent struct {
	MessageBase
	sender *entity.Member
	group  *entity.Group
}

// Sender returns the member who sent the message.
func (e *GroupMessageEvent) Sender() *entity.Member { return e.sender }

// Group returns the group the message arrived in.
func (e *GroupMessageEvent) Group() *entity.Group { return e.group }

// QuickReply sends msg back to the source group. With quote set, the reply
// carries a quote reference to this message's id. Returns the assigned
// message id.
func (e *GroupMessageEvent) QuickReply(ctx context.Context, msg any, quote bool) (int64, error) {
	var q int64
	if quote {
		if id := e.chain.ID(); id > 0 {
			q = id
		}
	}
	return e.session.SendGroupMessage(ctx, e.group.ID(), msg, q)
}

// Recall recalls the received message.
func (e *GroupMessageEvent) Recall(ctx context.Context) error {
	return e.session.RecallMessage(ctx, e.chain.ID())
}

// KickSender removes the sender from the source group.
func (e *GroupMessageEvent) KickSender(ctx context.Context, msg string) error {
	return e.session.KickMember(ctx, e.group.ID(), e.sender.ID(), msg)
}

// FriendMessageEvent is a private message from a friend.
type FriendMessageEvent struct {
	MessageBase
	sender *entity.Friend
}

// Sender returns the friend who sent the message.
func (e *FriendMessageEvent) Sender() *entity.Friend { return e.sender }

// QuickReply sends msg back to the sender's private chat.
func (e *FriendMessageEvent) QuickReply(ctx context.Context, msg any, quote bool) (int64, error) {
	var q int64
	if quote {
		if id := e.chain.ID(); id > 0 {
			q = id
		}
	}
	return e.session.SendFriendMessage(ctx, e.sender.ID(), msg, q)
}

// TempMessageEvent is a temporary-session message from a group member the
// bot is not friends with.
type TempMessageEvent struct {
	MessageBase
	sender *entity.Member
	group  *entity.Group
}

// Sender returns the member the temp session originates from.
func (e *TempMessageEvent) Sender() *entity.Member { return e.sender }

// Group returns the group the temp session was opened through.
func (e *TempMessageEvent) Group() *entity.Group { return e.group }

// QuickReply sends msg back over the temp session, which needs both the
// sender id and the source group id.
func (e *TempMessageEvent) QuickReply(ctx context.Context, msg any, quote bool) (int64, error) {
	var q int64
	if quote {
		if id := e.chain.ID(); id > 0 {
			q = id
		}
	}
	return e.session.SendTempMessage(ctx, e.sender.ID(), e.group.ID(), msg, q)
}

type messageWire struct {
	MessageChain json.RawMessage `json:"messageChain"`
	Sender       json.RawMessage `json:"sender"`
}

func decodeMessageCommon(tag string, raw json.RawMessage, s Session) (MessageBase, messageWire, error) {
	var wire messageWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return MessageBase{}, wire, fmt.Errorf("%s: %w", tag, err)
	}
	chain, err := message.DecodeChain(wire.MessageChain)
	if err != nil {
		return MessageBase{}, wire, fmt.Errorf("%s: %w", tag, err)
	}
	return MessageBase{Base: newBase(tag, raw, s), chain: chain}, wire, nil
}

func decodeGroupMessage(tag string, raw json.RawMessage, s Session) (Event, error) {
	base, wire, err := decodeMessageCommon(tag, raw, s)
	if err != nil {
		return nil, err
	}
	var sender entity.MemberData
	if err := json.Unmarshal(wire.Sender, &sender); err != nil {
		return nil, fmt.Errorf("%s sender: %w", tag, err)
	}
	member := entity.MemberFromData(sender, s)
	return &GroupMessageEvent{MessageBase: base, sender: member, group: member.Group()}, nil
}

func decodeFriendMessage(tag string, raw json.RawMessage, s Session) (Event, error) {
	base, wire, err := decodeMessageCommon(tag, raw, s)
	if err != nil {
		return nil, err
	}
	var sender entity.FriendData
	if err := json.Unmarshal(wire.Sender, &sender); err != nil {
		return nil, fmt.Errorf("%s sender: %w", tag, err)
	}
	return &FriendMessageEvent{MessageBase: base, sender: entity.FriendFromData(sender, s)}, nil
}

func decodeTempMessage(tag string, raw json.RawMessage, s Session) (Event, error) {
	base, wire, err := decodeMessageCommon(tag, raw, s)
	if err != nil {
		return nil, err
	}
	var sender entity.MemberData
	if err := json.Unmarshal(wire.Sender, &sender); err != nil {
		return nil, fmt.Errorf("%s sender: %w", tag, err)
	}
	member := entity.MemberFromData(sender, s)
	return &TempMessageEvent{MessageBase: base, sender: member, group: member.Group()}, nil
}
