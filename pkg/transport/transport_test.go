package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func clientFor(t *testing.T, srv *httptest.Server) *HTTPClient {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return NewHTTPClient(host, port, false, 5*time.Second)
}

func TestGetAndPost(t *testing.T) {
	var gotPath, gotMethod, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"code":0}`))
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	ctx := context.Background()

	resp, err := c.Get(ctx, "/about?x=1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != 200 || string(resp.Body) != `{"code":0}` {
		t.Fatalf("resp = %d %q", resp.StatusCode, resp.Body)
	}
	if gotMethod != http.MethodGet || gotPath != "/about?x=1" {
		t.Fatalf("server saw %s %s", gotMethod, gotPath)
	}

	if _, err := c.Post(ctx, "/auth", []byte(`{"authKey":"k"}`)); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotMethod != http.MethodPost || gotContentType != "application/json" {
		t.Fatalf("server saw %s with content type %q", gotMethod, gotContentType)
	}
	if string(gotBody) != `{"authKey":"k"}` {
		t.Fatalf("server saw body %q", gotBody)
	}
}

func TestPostMultipartKeepsContentType(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	contentType := "multipart/form-data; boundary=----MiraiBoundaryX"
	if _, err := c.PostMultipart(context.Background(), "/uploadImage", contentType, []byte("body")); err != nil {
		t.Fatalf("PostMultipart: %v", err)
	}
	if gotContentType != contentType {
		t.Fatalf("content type = %q", gotContentType)
	}
}

func TestUpgradeRecvAndPeerClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sessionKey") != "S" {
			http.Error(w, "no session", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"BotOnlineEvent","qq":1}`))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	stream, err := c.Upgrade(context.Background(), "/all?sessionKey=S")
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	defer stream.Close()

	frame, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(frame) != `{"type":"BotOnlineEvent","qq":1}` {
		t.Fatalf("frame = %q", frame)
	}

	if _, err := stream.Recv(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Recv after peer close = %v, want ErrClosed", err)
	}
}

func TestUpgradeFailsOnPlainHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := clientFor(t, srv).Upgrade(context.Background(), "/all"); err == nil {
		t.Fatal("Upgrade succeeded against a non-websocket endpoint")
	}
}

func TestRecvAfterOwnClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	stream, err := clientFor(t, srv).Upgrade(context.Background(), "/all")
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := stream.Recv()
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	stream.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("Recv after own Close = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after Close")
	}
}
