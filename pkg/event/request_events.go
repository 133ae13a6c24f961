package event

import (
	"context"
	"encoding/json"
	"fmt"
)

// Response endpoints for request events. The invited-join-group response
// goes through the member-join endpoint on this wire revision.
const (
	pathRespNewFriend  = "/resp/newFriendRequestEvent"
	pathRespMemberJoin = "/resp/memberJoinRequestEvent"
)

// RequestBase carries the fields shared by every inbound request awaiting an
// explicit decision, and the single respond funnel all decision methods go
// through.
type RequestBase struct {
	Base
	eventID  int64
	fromID   int64
	groupID  int64
	nick     string
	message  string
	endpoint string
}

// EventID returns the request's id, echoed back in the response.
func (r *RequestBase) EventID() int64 { return r.eventID }

// FromID returns the account the request came from.
func (r *RequestBase) FromID() int64 { return r.fromID }

// GroupID returns the group the request concerns, 0 when none.
func (r *RequestBase) GroupID() int64 { return r.groupID }

// Nick returns the requester's nickname.
func (r *RequestBase) Nick() string { return r.nick }

// Message returns the free-text message attached to the request.
func (r *RequestBase) Message() string { return r.message }

// Respond submits a numeric decision code plus an optional message. The
// named decision methods on each variant are the supported surface; use this
// directly only for codes they do not cover.
func (r *RequestBase) Respond(ctx context.Context, code int, msg string) error {
	_, err := r.session.Post(ctx, r.endpoint, map[string]any{
		"eventId": r.eventID,
		"fromId":  r.fromID,
		"groupId": r.groupID,
		"operate": code,
		"message": msg,
	})
	return err
}

type requestWire struct {
	EventID int64  `json:"eventId"`
	FromID  int64  `json:"fromId"`
	GroupID int64  `json:"groupId"`
	Nick    string `json:"nick"`
	Message string `json:"message"`
}

func decodeRequestBase(tag, endpoint string, raw json.RawMessage, s Session) (RequestBase, error) {
	var wire requestWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return RequestBase{}, fmt.Errorf("%s: %w", tag, err)
	}
	return RequestBase{
		Base:     newBase(tag, raw, s),
		eventID:  wire.EventID,
		fromID:   wire.FromID,
		groupID:  wire.GroupID,
		nick:     wire.Nick,
		message:  wire.Message,
		endpoint: endpoint,
	}, nil
}

// NewFriendRequestEvent is an inbound friend request.
// Decision codes: Approve=0, Deny=1, DenyBlock=2.
type NewFriendRequestEvent struct{ RequestBase }

// Approve accepts the friend request.
func (e *NewFriendRequestEvent) Approve(ctx context.Context) error {
	return e.Respond(ctx, 0, "")
}

// Deny rejects the friend request.
func (e *NewFriendRequestEvent) Deny(ctx context.Context, msg string) error {
	return e.Respond(ctx, 1, msg)
}

// DenyBlock rejects the request and blocks further requests from the sender.
func (e *NewFriendRequestEvent) DenyBlock(ctx context.Context, msg string) error {
	return e.Respond(ctx, 2, msg)
}

func decodeNewFriendRequest(tag string, raw json.RawMessage, s Session) (Event, error) {
	base, err := decodeRequestBase(tag, pathRespNewFriend, raw, s)
	if err != nil {
		return nil, err
	}
	return &NewFriendRequestEvent{RequestBase: base}, nil
}

// MemberJoinRequestEvent is an inbound group join request.
// Decision codes: Approve=0, Deny=1, Ignore=2, DenyBlock=3, IgnoreBlock=4.
// The scheme differs from NewFriendRequestEvent's on purpose; do not unify.
type MemberJoinRequestEvent struct {
	RequestBase
	groupName string
}

// GroupName returns the name of the group the request targets.
func (e *MemberJoinRequestEvent) GroupName() string { return e.groupName }

// Approve admits the requester into the group.
func (e *MemberJoinRequestEvent) Approve(ctx context.Context) error {
	return e.Respond(ctx, 0, "")
}

// Deny rejects the join request.
func (e *MemberJoinRequestEvent) Deny(ctx context.Context, msg string) error {
	return e.Respond(ctx, 1, msg)
}

// Ignore leaves the request unanswered.
func (e *MemberJoinRequestEvent) Ignore(ctx context.Context) error {
	return e.Respond(ctx, 2, "")
}

// DenyBlock rejects the request and blocks further requests from the sender.
func (e *MemberJoinRequestEvent) DenyBlock(ctx context.Context, msg string) error {
	return e.Respond(ctx, 3, msg)
}

// IgnoreBlock ignores the request and blocks further requests from the
// sender.
func (e *MemberJoinRequestEvent) IgnoreBlock(ctx context.Context) error {
	return e.Respond(ctx, 4, "")
}

func decodeMemberJoinRequest(tag string, raw json.RawMessage, s Session) (Event, error) {
	base, err := decodeRequestBase(tag, pathRespMemberJoin, raw, s)
	if err != nil {
		return nil, err
	}
	var wire struct {
		GroupName string `json:"groupName"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return &MemberJoinRequestEvent{RequestBase: base, groupName: wire.GroupName}, nil
}

// BotInvitedJoinGroupRequestEvent is an inbound invitation for the bot to
// join a group. Decision codes: Approve=0, Deny=1.
type BotInvitedJoinGroupRequestEvent struct{ RequestBase }

// Approve accepts the invitation.
func (e *BotInvitedJoinGroupRequestEvent) Approve(ctx context.Context) error {
	return e.Respond(ctx, 0, "")
}

// Deny declines the invitation.
func (e *BotInvitedJoinGroupRequestEvent) Deny(ctx context.Context) error {
	return e.Respond(ctx, 1, "")
}

func decodeBotInvitedJoinGroupRequest(tag string, raw json.RawMessage, s Session) (Event, error) {
	base, err := decodeRequestBase(tag, pathRespMemberJoin, raw, s)
	if err != nil {
		return nil, err
	}
	return &BotInvitedJoinGroupRequestEvent{RequestBase: base}, nil
}
