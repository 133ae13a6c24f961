// Package entity provides lightweight references to chat entities: users,
// groups, group members and friends. A reference pairs an identifier (plus
// optionally cached metadata decoded from the wire) with the session it
// delegates to. References are ephemeral value objects created per event or
// per call; they never own the session.
package entity

import "context"

// Permission is a member's standing inside a group as reported by the wire.
type Permission string

const (
	PermissionOwner         Permission = "OWNER"
	PermissionAdministrator Permission = "ADMINISTRATOR"
	PermissionMember        Permission = "MEMBER"
)

func (p Permission) String() string { return string(p) }

// API is the slice of session operations entity references delegate to.
// *mirai.Bot implements it. Every method propagates the session's result
// unchanged.
type API interface {
	// Send operations accept a string, a message.Segment, a []message.Segment
	// or a *message.Chain; quote 0 means no quote.
	SendFriendMessage(ctx context.Context, target int64, msg any, quote int64) (int64, error)
	SendTempMessage(ctx context.Context, qq, group int64, msg any, quote int64) (int64, error)
	SendGroupMessage(ctx context.Context, target int64, msg any, quote int64) (int64, error)

	MuteAll(ctx context.Context, group int64) error
	UnmuteAll(ctx context.Context, group int64) error
	MuteMember(ctx context.Context, group, qq int64, seconds int) error
	UnmuteMember(ctx context.Context, group, qq int64) error
	KickMember(ctx context.Context, group, qq int64, msg string) error
	QuitGroup(ctx context.Context, group int64) error
	MemberList(ctx context.Context, group int64) ([]*Member, error)

	GroupConfig(ctx context.Context, group int64, name string) (any, error)
	SetGroupConfig(ctx context.Context, group int64, name string, value any) error
	MemberInfo(ctx context.Context, group, qq int64, name string) (any, error)
	SetMemberInfo(ctx context.Context, group, qq int64, name string, value any) error
}

// GroupData is the wire shape of a group object.
type GroupData struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Permission Permission `json:"permission"`
}

// MemberData is the wire shape of a group member object.
type MemberData struct {
	ID         int64      `json:"id"`
	MemberName string     `json:"memberName"`
	Permission Permission `json:"permission"`
	Group      GroupData  `json:"group"`
}

// FriendData is the wire shape of a friend object.
type FriendData struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	Remark   string `json:"remark"`
}

// User is the minimal handle: an id and the session it belongs to.
type User struct {
	id  int64
	api API
}

func NewUser(id int64, api API) *User { return &User{id: id, api: api} }

func (u *User) ID() int64 { return u.id }

// Group references one group, optionally hydrated with its name and the
// bot's permission in it.
type Group struct {
	id         int64
	name       string
	permission Permission
	api        API
}

// NewGroup builds a bare handle from an id.
func NewGroup(id int64, api API) *Group { return &Group{id: id, api: api} }

// GroupFromData builds a hydrated reference from a decoded wire object.
func GroupFromData(d GroupData, api API) *Group {
	return &Group{id: d.ID, name: d.Name, permission: d.Permission, api: api}
}

func (g *Group) ID() int64 { return g.id }

// Name returns the cached group name; empty for a bare handle.
func (g *Group) Name() string { return g.name }

// BotPermission returns the bot's cached permission in this group.
func (g *Group) BotPermission() Permission { return g.permission }

func (g *Group) MemberList(ctx context.Context) ([]*Member, error) {
	return g.api.MemberList(ctx, g.id)
}

func (g *Group) MuteAll(ctx context.Context) error   { return g.api.MuteAll(ctx, g.id) }
func (g *Group) UnmuteAll(ctx context.Context) error { return g.api.UnmuteAll(ctx, g.id) }

func (g *Group) MuteMember(ctx context.Context, qq int64, seconds int) error {
	return g.api.MuteMember(ctx, g.id, qq, seconds)
}

func (g *Group) UnmuteMember(ctx context.Context, qq int64) error {
	return g.api.UnmuteMember(ctx, g.id, qq)
}

func (g *Group) KickMember(ctx context.Context, qq int64, msg string) error {
	return g.api.KickMember(ctx, g.id, qq, msg)
}

func (g *Group) Quit(ctx context.Context) error { return g.api.QuitGroup(ctx, g.id) }

// Config fetches the current value of one named field of the group's remote
// config object.
func (g *Group) Config(ctx context.Context, name string) (any, error) {
	return g.api.GroupConfig(ctx, g.id, name)
}

// SetConfig merges one field into the remote config object and persists it.
func (g *Group) SetConfig(ctx context.Context, name string, value any) error {
	return g.api.SetGroupConfig(ctx, g.id, name, value)
}

// MemberInfo fetches one named field of a member's remote info object.
func (g *Group) MemberInfo(ctx context.Context, qq int64, name string) (any, error) {
	return g.api.MemberInfo(ctx, g.id, qq, name)
}

// SetMemberInfo merges one field into a member's remote info object.
func (g *Group) SetMemberInfo(ctx context.Context, qq int64, name string, value any) error {
	return g.api.SetMemberInfo(ctx, g.id, qq, name, value)
}

// SendMessage sends to this group; quote 0 means no quote.
func (g *Group) SendMessage(ctx context.Context, msg any, quote int64) (int64, error) {
	return g.api.SendGroupMessage(ctx, g.id, msg, quote)
}

// Member references one user inside one group.
type Member struct {
	id         int64
	memberName string
	permission Permission
	group      *Group
	api        API
}

// NewMember builds a bare handle from a member id and group id.
func NewMember(id, group int64, api API) *Member {
	return &Member{id: id, group: NewGroup(group, api), api: api}
}

// MemberFromData builds a hydrated reference from a decoded wire object.
func MemberFromData(d MemberData, api API) *Member {
	return &Member{
		id:         d.ID,
		memberName: d.MemberName,
		permission: d.Permission,
		group:      GroupFromData(d.Group, api),
		api:        api,
	}
}

func (m *Member) ID() int64 { return m.id }

// MemberName returns the cached in-group display name; empty for a bare
// handle.
func (m *Member) MemberName() string { return m.memberName }

// Permission returns the member's cached permission in the group.
func (m *Member) Permission() Permission { return m.permission }

// Group returns the group this member belongs to.
func (m *Member) Group() *Group { return m.group }

func (m *Member) Mute(ctx context.Context, seconds int) error {
	return m.api.MuteMember(ctx, m.group.ID(), m.id, seconds)
}

func (m *Member) Unmute(ctx context.Context) error {
	return m.api.UnmuteMember(ctx, m.group.ID(), m.id)
}

func (m *Member) Kick(ctx context.Context, msg string) error {
	return m.api.KickMember(ctx, m.group.ID(), m.id, msg)
}

// Info fetches one named field of this member's remote info object.
func (m *Member) Info(ctx context.Context, name string) (any, error) {
	return m.api.MemberInfo(ctx, m.group.ID(), m.id, name)
}

// SetInfo merges one field into this member's remote info object.
func (m *Member) SetInfo(ctx context.Context, name string, value any) error {
	return m.api.SetMemberInfo(ctx, m.group.ID(), m.id, name, value)
}

// SendMessage reaches the member over temp chat through their group.
func (m *Member) SendMessage(ctx context.Context, msg any, quote int64) (int64, error) {
	return m.api.SendTempMessage(ctx, m.id, m.group.ID(), msg, quote)
}

// Friend references one private-chat contact.
type Friend struct {
	id       int64
	nickname string
	remark   string
	api      API
}

// NewFriend builds a bare handle from an id.
func NewFriend(id int64, api API) *Friend { return &Friend{id: id, api: api} }

// FriendFromData builds a hydrated reference from a decoded wire object.
func FriendFromData(d FriendData, api API) *Friend {
	return &Friend{id: d.ID, nickname: d.Nickname, remark: d.Remark, api: api}
}

func (f *Friend) ID() int64 { return f.id }

// Nickname returns the cached nickname; empty for a bare handle.
func (f *Friend) Nickname() string { return f.nickname }

// Remark returns the cached remark; empty for a bare handle.
func (f *Friend) Remark() string { return f.remark }

// SendMessage sends a private message; quote 0 means no quote.
func (f *Friend) SendMessage(ctx context.Context, msg any, quote int64) (int64, error) {
	return f.api.SendFriendMessage(ctx, f.id, msg, quote)
}
