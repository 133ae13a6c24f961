package mirai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mirai-sdk/go-mirai/pkg/event"
	"github.com/mirai-sdk/go-mirai/pkg/transport"
)

// fakeTransport serves canned responses keyed by path and records every
// request for assertions.
type fakeTransport struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]string
	failures  map[string]error
	stream    *fakeStream
}

type recordedRequest struct {
	method string
	path   string
	body   []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: map[string]string{}, failures: map[string]error{}}
}

func (f *fakeTransport) respond(path, body string) { f.responses[path] = body }

func (f *fakeTransport) fail(path string, err error) { f.failures[path] = err }

func (f *fakeTransport) record(method, path string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedRequest{method: method, path: path, body: body})
}

func (f *fakeTransport) lookup(path string) (*transport.Response, error) {
	trimmed := path
	if i := strings.IndexByte(path, '?'); i >= 0 {
		trimmed = path[:i]
	}
	if err, ok := f.failures[trimmed]; ok {
		return nil, err
	}
	body, ok := f.responses[trimmed]
	if !ok {
		return nil, fmt.Errorf("no canned response for %s", trimmed)
	}
	return &transport.Response{StatusCode: 200, Body: []byte(body)}, nil
}

func (f *fakeTransport) Get(_ context.Context, path string) (*transport.Response, error) {
	f.record("get", path, nil)
	return f.lookup(path)
}

func (f *fakeTransport) Post(_ context.Context, path string, body []byte) (*transport.Response, error) {
	f.record("post", path, body)
	return f.lookup(path)
}

func (f *fakeTransport) PostMultipart(_ context.Context, path, contentType string, body []byte) (*transport.Response, error) {
	f.record("multipart "+contentType, path, body)
	return f.lookup(path)
}

func (f *fakeTransport) Upgrade(_ context.Context, path string) (transport.Stream, error) {
	f.record("upgrade", path, nil)
	if f.stream == nil {
		return nil, errors.New("no stream installed")
	}
	return f.stream, nil
}

func (f *fakeTransport) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		path := r.path
		if j := strings.IndexByte(path, '?'); j >= 0 {
			path = path[:j]
		}
		out[i] = path
	}
	return out
}

func (f *fakeTransport) find(t *testing.T, path string) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if strings.HasPrefix(r.path, path) {
			return r
		}
	}
	t.Fatalf("no request to %s recorded", path)
	return recordedRequest{}
}

// fakeStream feeds frames through a channel; once closed, Recv reports
// transport.ErrClosed.
type fakeStream struct {
	frames    chan []byte
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan []byte, 8)}
}

func (s *fakeStream) Recv() ([]byte, error) {
	frame, ok := <-s.frames
	if !ok {
		return nil, transport.ErrClosed
	}
	return frame, nil
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.frames) })
	return nil
}

func TestClassifyCode(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{CodeInvalidAuthKey, ErrInvalidAuthKey},
		{CodeBotNotFound, ErrBotNotFound},
		{CodeSessionNotExists, ErrSessionNotExists},
		{CodeSessionNotVerified, ErrSessionNotVerified},
		{CodeTargetNotFound, ErrTargetNotFound},
		{CodePermissionDenied, ErrPermissionDenied},
		{CodeBotMuted, ErrBotMuted},
		{CodeMessageTooLong, ErrMessageTooLong},
		{CodeInvalidRequest, ErrInvalidRequest},
	}
	for _, tt := range tests {
		err := ClassifyCode(tt.code, "boom", "op: ")
		if !errors.Is(err, tt.want) {
			t.Errorf("code %d: errors.Is(%v, %v) = false", tt.code, err, tt.want)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != tt.code {
			t.Errorf("code %d: APIError not carried, got %v", tt.code, err)
		}
	}

	if err := ClassifyCode(CodeSuccess, "", ""); err != nil {
		t.Fatalf("ClassifyCode(0) = %v, want nil", err)
	}

	unknown := ClassifyCode(999, "boom", "")
	var apiErr *APIError
	if !errors.As(unknown, &apiErr) || apiErr.Code != 999 {
		t.Fatalf("ClassifyCode(999) = %v", unknown)
	}
	for _, known := range []error{ErrInvalidAuthKey, ErrBotMuted, ErrInvalidRequest} {
		if errors.Is(unknown, known) {
			t.Fatalf("unknown code matched %v", known)
		}
	}
}

func TestCallRejectsUnknownMethod(t *testing.T) {
	tr := newFakeTransport()
	bot := New(tr, "key", 111)
	_, err := bot.Call(context.Background(), "/about", nil, "put")
	if !errors.Is(err, ErrIllegalParams) {
		t.Fatalf("Call error = %v, want ErrIllegalParams", err)
	}
	if len(tr.paths()) != 0 {
		t.Fatal("transport was touched for an invalid method")
	}
}

func TestLogin(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/about", `{"code":0,"data":{"version":"1.9.0"}}`)
	tr.respond("/auth", `{"code":0,"session":"S"}`)
	tr.respond("/verify", `{"code":0,"msg":"success"}`)
	tr.respond("/config", `{"code":0}`)

	bot := New(tr, "key", 111)
	if err := bot.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if bot.SessionKey() != "S" {
		t.Fatalf("SessionKey() = %q, want S", bot.SessionKey())
	}

	want := []string{"/about", "/auth", "/verify", "/config"}
	got := tr.paths()
	if len(got) != len(want) {
		t.Fatalf("requests = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("request %d = %s, want %s", i, got[i], want[i])
		}
	}

	var verify map[string]any
	if err := json.Unmarshal(tr.find(t, "/verify").body, &verify); err != nil {
		t.Fatal(err)
	}
	if verify["sessionKey"] != "S" || verify["qq"] != float64(111) {
		t.Fatalf("verify body = %v", verify)
	}
	var cfg map[string]any
	if err := json.Unmarshal(tr.find(t, "/config").body, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg["enableWebsocket"] != true {
		t.Fatalf("config body = %v", cfg)
	}
}

func TestLoginAuthFailureStopsHandshake(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/about", `{"code":0}`)
	tr.respond("/auth", `{"code":1,"msg":"Auth Key错误"}`)

	bot := New(tr, "bad", 111)
	err := bot.Login(context.Background())
	if !errors.Is(err, ErrInvalidAuthKey) {
		t.Fatalf("Login error = %v, want ErrInvalidAuthKey", err)
	}
	for _, path := range tr.paths() {
		if path == "/verify" {
			t.Fatal("verify was attempted after a failed auth")
		}
	}
}

func TestLoginRejectsNonMiraiEndpoint(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/about", `<html>not an api</html>`)

	err := New(tr, "key", 111).Login(context.Background())
	if !errors.Is(err, ErrInvalidRespond) {
		t.Fatalf("Login error = %v, want ErrInvalidRespond", err)
	}
}

func TestCallInjectsSessionKey(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/something", `{"code":0}`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	if _, err := bot.Call(context.Background(), "/something", map[string]any{"a": 1}, MethodPost); err != nil {
		t.Fatalf("Call post: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(tr.find(t, "/something").body, &body); err != nil {
		t.Fatal(err)
	}
	if body["sessionKey"] != "S" || body["a"] != float64(1) {
		t.Fatalf("post body = %v", body)
	}

	if _, err := bot.Call(context.Background(), "/something", map[string]any{"target": 456}, MethodGet); err != nil {
		t.Fatalf("Call get: %v", err)
	}
	last := tr.requests[len(tr.requests)-1]
	if !strings.Contains(last.path, "sessionKey=S") || !strings.Contains(last.path, "target=456") {
		t.Fatalf("get path = %s", last.path)
	}
}

func TestSendGroupMessage(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/sendGroupMessage", `{"code":0,"msg":"success","messageId":777}`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	id, err := bot.SendGroupMessage(context.Background(), 456, "hello", 0)
	if err != nil {
		t.Fatalf("SendGroupMessage: %v", err)
	}
	if id != 777 {
		t.Fatalf("message id = %d, want 777", id)
	}
	var body struct {
		Target       int64            `json:"target"`
		MessageChain []map[string]any `json:"messageChain"`
		Quote        *int64           `json:"quote"`
	}
	if err := json.Unmarshal(tr.find(t, "/sendGroupMessage").body, &body); err != nil {
		t.Fatal(err)
	}
	if body.Target != 456 {
		t.Fatalf("target = %d", body.Target)
	}
	if len(body.MessageChain) != 1 || body.MessageChain[0]["type"] != "Plain" || body.MessageChain[0]["text"] != "hello" {
		t.Fatalf("messageChain = %v", body.MessageChain)
	}
	if body.Quote != nil {
		t.Fatal("quote present for quote 0")
	}

	if _, err := bot.SendGroupMessage(context.Background(), 456, "again", 42); err != nil {
		t.Fatalf("SendGroupMessage with quote: %v", err)
	}
	last := tr.requests[len(tr.requests)-1]
	var quoted map[string]any
	if err := json.Unmarshal(last.body, &quoted); err != nil {
		t.Fatal(err)
	}
	if quoted["quote"] != float64(42) {
		t.Fatalf("quote = %v, want 42", quoted["quote"])
	}
}

func TestSendGroupMessageClassifiesMutedBot(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/sendGroupMessage", `{"code":20,"msg":"bot被禁言"}`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	_, err := bot.SendGroupMessage(context.Background(), 456, "hello", 0)
	if !errors.Is(err, ErrBotMuted) {
		t.Fatalf("error = %v, want ErrBotMuted", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeBotMuted {
		t.Fatalf("APIError not carried: %v", err)
	}
}

func TestRecallMessageTargetNotFound(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/recall", `{"code":5,"msg":"指定对象不存在"}`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	err := bot.RecallMessage(context.Background(), 42)
	if !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("error = %v, want ErrTargetNotFound", err)
	}
}

func TestFriendAndGroupList(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/friendList", `[{"id":123,"nickname":"bob","remark":"pal"}]`)
	tr.respond("/groupList", `[{"id":456,"name":"demo","permission":"MEMBER"}]`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	friends, err := bot.FriendList(context.Background())
	if err != nil {
		t.Fatalf("FriendList: %v", err)
	}
	if len(friends) != 1 || friends[0].ID() != 123 || friends[0].Nickname() != "bob" {
		t.Fatalf("friends = %v", friends)
	}

	groups, err := bot.GroupList(context.Background())
	if err != nil {
		t.Fatalf("GroupList: %v", err)
	}
	if len(groups) != 1 || groups[0].ID() != 456 || groups[0].Name() != "demo" {
		t.Fatalf("groups = %v", groups)
	}
}

func TestMemberList(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/groupList", `[{"id":123,"memberName":"alice","permission":"MEMBER"}]`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	members, err := bot.MemberList(context.Background(), 456)
	if err != nil {
		t.Fatalf("MemberList: %v", err)
	}
	if len(members) != 1 || members[0].ID() != 123 {
		t.Fatalf("members = %v", members)
	}
	if members[0].Group().ID() != 456 {
		t.Fatalf("member group = %d, want 456", members[0].Group().ID())
	}
	req := tr.find(t, "/groupList")
	if !strings.Contains(req.path, "target=456") {
		t.Fatalf("path = %s", req.path)
	}
}

func TestSetGroupConfigMergesField(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/groupConfig", `{"name":"demo","announcement":"old","muteAll":false}`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	if err := bot.SetGroupConfig(context.Background(), 456, "announcement", "new"); err != nil {
		t.Fatalf("SetGroupConfig: %v", err)
	}
	var body struct {
		Target int64          `json:"target"`
		Config map[string]any `json:"config"`
	}
	var posted bool
	for _, r := range tr.requests {
		if r.method == "post" {
			if err := json.Unmarshal(r.body, &body); err != nil {
				t.Fatal(err)
			}
			posted = true
		}
	}
	if !posted {
		t.Fatal("config was never written back")
	}
	if body.Target != 456 || body.Config["announcement"] != "new" || body.Config["name"] != "demo" {
		t.Fatalf("posted config = %+v", body)
	}
}

func TestGroupConfigSurfacesErrorEnvelope(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/groupConfig", `{"code":3,"msg":"session expired"}`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	_, err := bot.GroupConfig(context.Background(), 456, "announcement")
	if !errors.Is(err, ErrSessionNotExists) {
		t.Fatalf("error = %v, want ErrSessionNotExists", err)
	}
}

func TestMemberInfoSurfacesErrorEnvelope(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/memberInfo", `{"code":5,"msg":"no such member"}`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	_, err := bot.MemberInfo(context.Background(), 456, 123, "name")
	if !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("error = %v, want ErrTargetNotFound", err)
	}
}

func TestFetchMessageSkipsUnknownEvents(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/fetchMessage", `{"code":0,"data":[
		{"type":"BotOnlineEvent","qq":111},
		{"type":"BrandNewThing","qq":1},
		{"type":"FriendMessage",
		 "messageChain":[{"type":"Source","id":9,"time":1},{"type":"Plain","text":"x"}],
		 "sender":{"id":2,"nickname":"n","remark":""}}
	]}`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	events, err := bot.FetchMessage(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchMessage: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if _, ok := events[0].(*event.BotOnlineEvent); !ok {
		t.Fatalf("events[0] = %T", events[0])
	}
	if _, ok := events[1].(*event.FriendMessageEvent); !ok {
		t.Fatalf("events[1] = %T", events[1])
	}
	req := tr.find(t, "/fetchMessage")
	if !strings.Contains(req.path, "count=10") {
		t.Fatalf("path = %s", req.path)
	}
}

func TestCountMessage(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/countMessage", `{"code":0,"data":3}`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	n, err := bot.CountMessage(context.Background())
	if err != nil {
		t.Fatalf("CountMessage: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
}

func TestSubscribeEventsAndShutDown(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/release", `{"code":0}`)
	stream := newFakeStream()
	tr.stream = stream
	stream.frames <- []byte(`{"type":"BotOnlineEvent","qq":111}`)

	bot := New(tr, "key", 111)
	bot.session = "S"

	received := make(chan event.Event, 1)
	errc, err := bot.SubscribeEvents(context.Background(), func(ev event.Event, _ []byte) {
		received <- ev
	})
	if err != nil {
		t.Fatalf("SubscribeEvents: %v", err)
	}

	select {
	case ev := <-received:
		if _, ok := ev.(*event.BotOnlineEvent); !ok {
			t.Fatalf("received %T", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	if err := bot.ShutDown(context.Background()); err != nil {
		t.Fatalf("ShutDown: %v", err)
	}

	select {
	case err, ok := <-errc:
		if ok {
			t.Fatalf("loop reported %v after graceful shutdown", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receive loop did not finish")
	}

	var release map[string]any
	if err := json.Unmarshal(tr.find(t, "/release").body, &release); err != nil {
		t.Fatal(err)
	}
	if release["qq"] != float64(111) {
		t.Fatalf("release body = %v", release)
	}
	upgrade := tr.find(t, "/all")
	if !strings.Contains(upgrade.path, "sessionKey=S") {
		t.Fatalf("upgrade path = %s", upgrade.path)
	}
}

func TestSubscribeEventsUnexpectedClose(t *testing.T) {
	tr := newFakeTransport()
	stream := newFakeStream()
	tr.stream = stream

	bot := New(tr, "key", 111)
	bot.session = "S"

	errc, err := bot.SubscribeEvents(context.Background(), func(event.Event, []byte) {})
	if err != nil {
		t.Fatalf("SubscribeEvents: %v", err)
	}
	stream.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Fatalf("loop error = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no loop error delivered")
	}
}

func TestSubscribeEventsSurvivesDecodeErrors(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/release", `{"code":0}`)
	stream := newFakeStream()
	tr.stream = stream
	stream.frames <- []byte(`{"type":"Nonsense"}`)
	stream.frames <- []byte(`{"type":"BotReloginEvent","qq":111}`)

	var decodeErrs []error
	bot := New(tr, "key", 111, WithDecodeErrorHandler(func(err error) {
		decodeErrs = append(decodeErrs, err)
	}))
	bot.session = "S"

	received := make(chan event.Event, 1)
	if _, err := bot.SubscribeEvents(context.Background(), func(ev event.Event, _ []byte) {
		received <- ev
	}); err != nil {
		t.Fatalf("SubscribeEvents: %v", err)
	}

	select {
	case ev := <-received:
		if _, ok := ev.(*event.BotReloginEvent); !ok {
			t.Fatalf("received %T", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("loop died on the undecodable frame")
	}
	if len(decodeErrs) != 1 {
		t.Fatalf("decode errors = %d, want 1", len(decodeErrs))
	}
	bot.ShutDown(context.Background())
}

func TestUploadImage(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/uploadImage", `{"imageId":"{ABC}.png","url":"https://example.com/a.png","path":""}`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	file := filepath.Join(t.TempDir(), "pic.png")
	if err := os.WriteFile(file, []byte("\x89PNG\r\n\x1a\nfakedata"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := bot.UploadImage(context.Background(), "group", file)
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if result.ImageID != "{ABC}.png" {
		t.Fatalf("ImageID = %q", result.ImageID)
	}

	req := tr.find(t, "/uploadImage")
	if !strings.HasPrefix(req.method, "multipart multipart/form-data; boundary=----MiraiBoundary") {
		t.Fatalf("content type = %q", req.method)
	}
	body := string(req.body)
	sessionAt := strings.Index(body, `name="sessionKey"`)
	typeAt := strings.Index(body, `name="type"`)
	imgAt := strings.Index(body, `name="img"`)
	if sessionAt < 0 || typeAt < 0 || imgAt < 0 || !(sessionAt < typeAt && typeAt < imgAt) {
		t.Fatalf("multipart field order wrong:\n%s", body)
	}
	if !strings.Contains(body, "\r\n\r\nS\r\n") || !strings.Contains(body, "\r\n\r\ngroup\r\n") {
		t.Fatalf("multipart values missing:\n%s", body)
	}
}

func TestUploadVoice(t *testing.T) {
	tr := newFakeTransport()
	tr.respond("/uploadVoice", `{"voiceId":"A1B2.amr","url":"","path":""}`)
	bot := New(tr, "key", 111)
	bot.session = "S"

	file := filepath.Join(t.TempDir(), "clip.amr")
	if err := os.WriteFile(file, []byte("#!AMR\nfakedata"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := bot.UploadVoice(context.Background(), "group", file)
	if err != nil {
		t.Fatalf("UploadVoice: %v", err)
	}
	if result.VoiceID != "A1B2.amr" {
		t.Fatalf("VoiceID = %q", result.VoiceID)
	}

	req := tr.find(t, "/uploadVoice")
	body := string(req.body)
	sessionAt := strings.Index(body, `name="sessionKey"`)
	typeAt := strings.Index(body, `name="type"`)
	voiceAt := strings.Index(body, `name="voice"`)
	if sessionAt < 0 || typeAt < 0 || voiceAt < 0 || !(sessionAt < typeAt && typeAt < voiceAt) {
		t.Fatalf("multipart field order wrong:\n%s", body)
	}
	// The voice part is sent without a Content-Type header.
	if strings.Contains(body, "Content-Type:") {
		t.Fatalf("voice part carried a Content-Type header:\n%s", body)
	}
}

func TestUploadImageDeadlineMapsToTimeout(t *testing.T) {
	tr := newFakeTransport()
	tr.fail("/uploadImage", fmt.Errorf("post: %w", context.DeadlineExceeded))
	bot := New(tr, "key", 111)
	bot.session = "S"

	file := filepath.Join(t.TempDir(), "pic.png")
	if err := os.WriteFile(file, []byte("\x89PNG\r\n\x1a\nfakedata"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := bot.UploadImage(context.Background(), "group", file)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
}

func TestUploadImageMissingFile(t *testing.T) {
	tr := newFakeTransport()
	bot := New(tr, "key", 111)

	_, err := bot.UploadImage(context.Background(), "group", filepath.Join(t.TempDir(), "absent.png"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("error = %v, want ErrFileNotFound", err)
	}
	if len(tr.paths()) != 0 {
		t.Fatal("transport was touched for a missing file")
	}
}
