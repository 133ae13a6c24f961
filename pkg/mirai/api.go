package mirai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mirai-sdk/go-mirai/pkg/entity"
	"github.com/mirai-sdk/go-mirai/pkg/event"
	"github.com/mirai-sdk/go-mirai/pkg/message"
	"github.com/mirai-sdk/go-mirai/pkg/transport"
)

var _ event.Session = (*Bot)(nil)

// sendMessage marshals the coerced chain and posts it to one of the three
// send endpoints. quote 0 means no quote.
func (b *Bot) sendMessage(ctx context.Context, path string, base map[string]any, msg any, quote int64, prefix string) (int64, error) {
	chain, err := message.Coerce(msg)
	if err != nil {
		return 0, err
	}
	base["messageChain"] = chain
	if quote != 0 {
		base["quote"] = quote
	}
	parsed, err := b.post(ctx, path, base, prefix)
	if err != nil {
		return 0, err
	}
	return parsed.MessageID, nil
}

// SendFriendMessage sends msg to a friend and returns the message id.
func (b *Bot) SendFriendMessage(ctx context.Context, target int64, msg any, quote int64) (int64, error) {
	return b.sendMessage(ctx, "/sendFriendMessage",
		map[string]any{"target": target}, msg, quote,
		fmt.Sprintf("failed to send message to %d: ", target))
}

// SendTempMessage sends msg to a group member over temp chat and returns the
// message id.
func (b *Bot) SendTempMessage(ctx context.Context, qq, group int64, msg any, quote int64) (int64, error) {
	return b.sendMessage(ctx, "/sendTempMessage",
		map[string]any{"qq": qq, "group": group}, msg, quote,
		fmt.Sprintf("failed to send message to %d@%d: ", qq, group))
}

// SendGroupMessage sends msg to a group and returns the message id.
func (b *Bot) SendGroupMessage(ctx context.Context, target int64, msg any, quote int64) (int64, error) {
	return b.sendMessage(ctx, "/sendGroupMessage",
		map[string]any{"target": target}, msg, quote,
		fmt.Sprintf("failed to send message to %d: ", target))
}

// SendImageMessage sends images by URL. A non-zero qq routes to private
// chat, a non-zero group to group chat, and group plus target to temp chat.
// It returns the image ids the API assigned.
func (b *Bot) SendImageMessage(ctx context.Context, urls []string, qq, group, target int64) ([]string, error) {
	params := map[string]any{"urls": urls}
	if qq != 0 {
		params["qq"] = qq
	}
	if group != 0 {
		params["group"] = group
	}
	if target != 0 {
		params["target"] = target
	}
	body, err := b.Call(ctx, "/sendImageMessage", params, MethodPost)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(body, &ids); err == nil {
		return ids, nil
	}
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	return nil, ClassifyCode(parsed.Code, parsed.Msg, "failed to send image message: ")
}

// RecallMessage withdraws a previously sent message by id.
func (b *Bot) RecallMessage(ctx context.Context, id int64) error {
	_, err := b.post(ctx, "/recall", map[string]any{"target": id},
		fmt.Sprintf("unable to recall message %d: ", id))
	return err
}

// FriendList returns the bot's friends.
func (b *Bot) FriendList(ctx context.Context) ([]*entity.Friend, error) {
	body, err := b.Call(ctx, "/friendList", nil, MethodGet)
	if err != nil {
		return nil, err
	}
	var data []entity.FriendData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	friends := make([]*entity.Friend, len(data))
	for i, d := range data {
		friends[i] = entity.FriendFromData(d, b)
	}
	return friends, nil
}

// GroupList returns the groups the bot has joined.
func (b *Bot) GroupList(ctx context.Context) ([]*entity.Group, error) {
	body, err := b.Call(ctx, "/groupList", nil, MethodGet)
	if err != nil {
		return nil, err
	}
	var data []entity.GroupData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	groups := make([]*entity.Group, len(data))
	for i, d := range data {
		groups[i] = entity.GroupFromData(d, b)
	}
	return groups, nil
}

// MemberList returns the members of a group. The deployment serves member
// listings from the group list route when a target is given.
func (b *Bot) MemberList(ctx context.Context, group int64) ([]*entity.Member, error) {
	body, err := b.Call(ctx, "/groupList", map[string]any{"target": group}, MethodGet)
	if err != nil {
		return nil, err
	}
	var data []entity.MemberData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	members := make([]*entity.Member, len(data))
	for i, d := range data {
		if d.Group.ID == 0 {
			d.Group.ID = group
		}
		members[i] = entity.MemberFromData(d, b)
	}
	return members, nil
}

// MuteAll silences every non-admin member of a group.
func (b *Bot) MuteAll(ctx context.Context, group int64) error {
	_, err := b.post(ctx, "/muteAll", map[string]any{"target": group},
		fmt.Sprintf("failed to mute whole group %d: ", group))
	return err
}

// UnmuteAll lifts a whole-group mute.
func (b *Bot) UnmuteAll(ctx context.Context, group int64) error {
	_, err := b.post(ctx, "/unmuteAll", map[string]any{"target": group},
		fmt.Sprintf("failed to unmute whole group %d: ", group))
	return err
}

// MuteMember silences one member for the given number of seconds.
func (b *Bot) MuteMember(ctx context.Context, group, qq int64, seconds int) error {
	_, err := b.post(ctx, "/mute",
		map[string]any{"target": group, "memberId": qq, "time": seconds},
		fmt.Sprintf("failed to mute %d@%d: ", qq, group))
	return err
}

// UnmuteMember lifts a member mute.
func (b *Bot) UnmuteMember(ctx context.Context, group, qq int64) error {
	_, err := b.post(ctx, "/unmute",
		map[string]any{"target": group, "memberId": qq},
		fmt.Sprintf("failed to unmute %d@%d: ", qq, group))
	return err
}

// KickMember removes a member from a group with an optional leave message.
func (b *Bot) KickMember(ctx context.Context, group, qq int64, msg string) error {
	_, err := b.post(ctx, "/kick",
		map[string]any{"target": group, "memberId": qq, "msg": msg},
		fmt.Sprintf("failed to kick %d@%d: ", qq, group))
	return err
}

// QuitGroup makes the bot leave a group.
func (b *Bot) QuitGroup(ctx context.Context, group int64) error {
	_, err := b.post(ctx, "/quit", map[string]any{"target": group},
		fmt.Sprintf("failed to leave group %d: ", group))
	return err
}

// groupConfigObject fetches the group's full remote config object.
func (b *Bot) groupConfigObject(ctx context.Context, group int64) (map[string]any, error) {
	body, err := b.Call(ctx, "/groupConfig", map[string]any{"target": group}, MethodGet)
	if err != nil {
		return nil, err
	}
	var cfg map[string]any
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	// An error envelope decodes into the map too, so check for one.
	if code, ok := cfg["code"].(float64); ok && code != 0 {
		msg, _ := cfg["msg"].(string)
		return nil, ClassifyCode(int(code), msg,
			fmt.Sprintf("failed to get group config of %d: ", group))
	}
	return cfg, nil
}

// GroupConfig fetches one named field of the group's config object, for
// example "announcement" or "allowMemberInvite".
func (b *Bot) GroupConfig(ctx context.Context, group int64, name string) (any, error) {
	cfg, err := b.groupConfigObject(ctx, group)
	if err != nil {
		return nil, err
	}
	return cfg[name], nil
}

// SetGroupConfig merges one field into the group's config object and writes
// the whole object back.
func (b *Bot) SetGroupConfig(ctx context.Context, group int64, name string, value any) error {
	cfg, err := b.groupConfigObject(ctx, group)
	if err != nil {
		return err
	}
	cfg[name] = value
	_, err = b.post(ctx, "/groupConfig",
		map[string]any{"target": group, "config": cfg},
		fmt.Sprintf("failed to set group config of %d: ", group))
	return err
}

// memberInfoObject fetches a member's full remote info object.
func (b *Bot) memberInfoObject(ctx context.Context, group, qq int64) (map[string]any, error) {
	body, err := b.Call(ctx, "/memberInfo",
		map[string]any{"target": group, "memberId": qq}, MethodGet)
	if err != nil {
		return nil, err
	}
	var info map[string]any
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	if code, ok := info["code"].(float64); ok && code != 0 {
		msg, _ := info["msg"].(string)
		return nil, ClassifyCode(int(code), msg,
			fmt.Sprintf("failed to get member info of %d@%d: ", qq, group))
	}
	return info, nil
}

// MemberInfo fetches one named field of a member's info object, for example
// "name" or "specialTitle".
func (b *Bot) MemberInfo(ctx context.Context, group, qq int64, name string) (any, error) {
	info, err := b.memberInfoObject(ctx, group, qq)
	if err != nil {
		return nil, err
	}
	return info[name], nil
}

// SetMemberInfo merges one field into a member's info object and writes the
// whole object back.
func (b *Bot) SetMemberInfo(ctx context.Context, group, qq int64, name string, value any) error {
	info, err := b.memberInfoObject(ctx, group, qq)
	if err != nil {
		return err
	}
	info[name] = value
	_, err = b.post(ctx, "/memberInfo",
		map[string]any{"target": group, "memberId": qq, "info": info},
		fmt.Sprintf("failed to set member info of %d@%d: ", qq, group))
	return err
}

// fetchEvents issues one of the queue-reading GETs and decodes its payloads.
// Frames with unknown type tags are skipped rather than failing the batch.
func (b *Bot) fetchEvents(ctx context.Context, path string, count int) ([]event.Event, error) {
	body, err := b.Call(ctx, path, map[string]any{"count": count}, MethodGet)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Code int               `json:"code"`
		Msg  string            `json:"msg"`
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	if err := ClassifyCode(parsed.Code, parsed.Msg, "failed to fetch messages: "); err != nil {
		return nil, err
	}
	events := make([]event.Event, 0, len(parsed.Data))
	for _, raw := range parsed.Data {
		ev, err := event.Decode(raw, b)
		if err != nil {
			var unknown *event.UnknownTypeError
			if errors.As(err, &unknown) {
				b.log.Debug("skipping unknown queued event", zap.String("type", unknown.Tag))
				continue
			}
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// FetchMessage pops up to count oldest queued events.
func (b *Bot) FetchMessage(ctx context.Context, count int) ([]event.Event, error) {
	return b.fetchEvents(ctx, "/fetchMessage", count)
}

// FetchLatestMessage pops up to count newest queued events.
func (b *Bot) FetchLatestMessage(ctx context.Context, count int) ([]event.Event, error) {
	return b.fetchEvents(ctx, "/fetchAllMessage", count)
}

// PeekMessage reads up to count oldest queued events without removing them.
func (b *Bot) PeekMessage(ctx context.Context, count int) ([]event.Event, error) {
	return b.fetchEvents(ctx, "/peekMessage", count)
}

// PeekLatestMessage reads up to count newest queued events without removing
// them.
func (b *Bot) PeekLatestMessage(ctx context.Context, count int) ([]event.Event, error) {
	return b.fetchEvents(ctx, "/peekAllMessage", count)
}

// CountMessage reports how many events are queued at the API.
func (b *Bot) CountMessage(ctx context.Context) (int, error) {
	body, err := b.Call(ctx, "/countMessage", nil, MethodGet)
	if err != nil {
		return 0, err
	}
	var parsed struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data int    `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	if err := ClassifyCode(parsed.Code, parsed.Msg, "failed to count messages: "); err != nil {
		return 0, err
	}
	return parsed.Data, nil
}

// MessageFromID retrieves a cached message event by its message id.
func (b *Bot) MessageFromID(ctx context.Context, id int64) (event.Event, error) {
	body, err := b.Call(ctx, "/messageFromId", map[string]any{"id": id}, MethodGet)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	if err := ClassifyCode(parsed.Code, parsed.Msg,
		fmt.Sprintf("failed to get message %d: ", id)); err != nil {
		return nil, err
	}
	return event.Decode(parsed.Data, b)
}

// Managers returns the QQ numbers allowed to manage this bot at the API.
func (b *Bot) Managers(ctx context.Context) ([]int64, error) {
	body, err := b.Call(ctx, "/managers", map[string]any{"qq": b.qq}, MethodGet)
	if err != nil {
		return nil, err
	}
	var managers []int64
	if err := json.Unmarshal(body, &managers); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	return managers, nil
}

// RegisterCommand registers a console command with the API, keyed by the
// auth key rather than the session.
func (b *Bot) RegisterCommand(ctx context.Context, name string, alias []string, description, usage string) error {
	if alias == nil {
		alias = []string{}
	}
	_, err := b.post(ctx, "/command/register", map[string]any{
		"authKey":     b.authKey,
		"name":        name,
		"alias":       alias,
		"description": description,
		"usage":       usage,
	}, fmt.Sprintf("failed to register command %q: ", name))
	return err
}

// SendCommand executes a registered console command.
func (b *Bot) SendCommand(ctx context.Context, name string, args []string) error {
	if args == nil {
		args = []string{}
	}
	_, err := b.post(ctx, "/command/send", map[string]any{
		"authKey": b.authKey,
		"name":    name,
		"args":    args,
	}, fmt.Sprintf("failed to send command %q: ", name))
	return err
}

// ListenCommand opens the auth-key-scoped stream of console command
// invocations. The caller owns the stream.
func (b *Bot) ListenCommand(ctx context.Context) (transport.Stream, error) {
	return b.upgrade(ctx, "/command?"+url.Values{"authKey": {b.authKey}}.Encode())
}

// MediaResult is the API's description of an uploaded file.
type MediaResult struct {
	ImageID string `json:"imageId"`
	VoiceID string `json:"voiceId"`
	URL     string `json:"url"`
	Path    string `json:"path"`
}

// UploadImage uploads a local image for the given chat kind ("friend",
// "group" or "temp") and returns the assigned image id.
func (b *Bot) UploadImage(ctx context.Context, kind, file string) (*MediaResult, error) {
	return b.uploadMedia(ctx, "/uploadImage", "img", kind, file, true)
}

// UploadVoice uploads a local voice file; kind follows UploadImage.
func (b *Bot) UploadVoice(ctx context.Context, kind, file string) (*MediaResult, error) {
	return b.uploadMedia(ctx, "/uploadVoice", "voice", kind, file, false)
}

// uploadMedia builds the multipart body by hand so the field order stays
// fixed: sessionKey, type, then the binary part.
func (b *Bot) uploadMedia(ctx context.Context, path, field, kind, file string, sniff bool) (*MediaResult, error) {
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: file %q not found", ErrFileNotFound, file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	boundary := "----MiraiBoundary" + uuid.NewString()
	var body strings.Builder
	fmt.Fprintf(&body, "--%s\r\nContent-Disposition: form-data; name=\"sessionKey\"\r\n\r\n%s\r\n", boundary, b.session)
	fmt.Fprintf(&body, "--%s\r\nContent-Disposition: form-data; name=\"type\"\r\n\r\n%s\r\n", boundary, kind)
	fmt.Fprintf(&body, "--%s\r\nContent-Disposition: form-data; name=%q; filename=%q\r\n", boundary, field, field)
	if sniff {
		fmt.Fprintf(&body, "Content-Type: %s\r\n", http.DetectContentType(data))
	}
	body.WriteString("\r\n")
	body.Write(data)
	fmt.Fprintf(&body, "\r\n--%s--\r\n", boundary)

	resp, err := b.tr.PostMultipart(ctx, path,
		"multipart/form-data; boundary="+boundary, []byte(body.String()))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: no response before deadline", ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	var result MediaResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	return &result, nil
}
