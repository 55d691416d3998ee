package relay_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/pointbox/internal/relay"
	"github.com/Seednode/pointbox/internal/session"
	"github.com/Seednode/pointbox/internal/token"
	"github.com/Seednode/pointbox/internal/transport"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelay(t *testing.T, opts relay.Options, withIssuer bool) *httptest.Server {
	t.Helper()

	var issuer *token.Issuer

	if withIssuer {
		var err error

		issuer, err = token.NewIssuer("secret", "pointbox-test", time.Hour)
		require.NoError(t, err)
	}

	m := relay.NewManager(opts)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})

	go func() {
		_ = m.Run(ctx)
		close(stopped)
	}()

	mux := httprouter.New()
	relay.NewServer(m, issuer).Register(mux, "")

	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		<-stopped
		srv.Close()
	})

	return srv
}

func dial(t *testing.T, srv *httptest.Server, room, metadata string) transport.Conn {
	t.Helper()

	d := &transport.WebSocketDialer{BaseURL: srv.URL}

	c, err := d.Dial(context.Background(), room, metadata)
	require.NoError(t, err)

	t.Cleanup(func() { _ = c.Close() })

	return c
}

func next(t *testing.T, c transport.Conn) transport.Event {
	t.Helper()

	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "event stream closed")

		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")

		return transport.Event{}
	}
}

func postToken(t *testing.T, srv *httptest.Server, method, body string) (int, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+"/token", strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return resp.StatusCode, out
}

func TestServer_Token(t *testing.T) {
	srv := newRelay(t, relay.Options{}, true)

	tests := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"not json", http.MethodPost, "{", http.StatusBadRequest},
		{"missing member", http.MethodPost, `{"channelName":"ABC123"}`, http.StatusBadRequest},
		{"missing channel", http.MethodPost, `{"memberName":"member_1"}`, http.StatusBadRequest},
		{"ok", http.MethodPost, `{"channelName":"ABC123","memberName":"member_1"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := postToken(t, srv, tt.method, tt.body)
			assert.Equal(t, tt.code, code)

			if tt.code == http.StatusOK {
				assert.NotEmpty(t, out["token"])
				assert.NotZero(t, out["expiresAt"])
			} else {
				assert.NotEmpty(t, out["error"])
			}
		})
	}
}

func TestServer_TokenUnconfigured(t *testing.T) {
	srv := newRelay(t, relay.Options{}, false)

	code, out := postToken(t, srv, http.MethodPost, `{"channelName":"ABC123","memberName":"member_1"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, token.ErrNoSecret.Error(), out["error"])
}

func TestServer_Relay(t *testing.T) {
	srv := newRelay(t, relay.Options{}, true)

	a := dial(t, srv, "ABC123", `{"userId":"a"}`)
	assert.Empty(t, a.Peers())
	assert.NotEmpty(t, a.LocalID())

	b := dial(t, srv, "ABC123", `{"userId":"b"}`)
	require.Len(t, b.Peers(), 1)
	assert.Equal(t, transport.Peer{ID: a.LocalID(), Metadata: `{"userId":"a"}`}, b.Peers()[0])

	ev := next(t, a)
	assert.Equal(t, transport.EventPeerJoined, ev.Kind)
	assert.Equal(t, b.LocalID(), ev.Peer.ID)
	assert.Equal(t, `{"userId":"b"}`, ev.Peer.Metadata)

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, a.Send(context.Background(), []byte(msg)))
	}

	for _, msg := range []string{"one", "two", "three"} {
		ev := next(t, b)
		assert.Equal(t, transport.EventData, ev.Kind)
		assert.Equal(t, a.LocalID(), ev.Peer.ID)
		assert.Equal(t, msg, string(ev.Data))
	}

	other := dial(t, srv, "XYZ789", "{}")
	assert.Empty(t, other.Peers())

	require.NoError(t, b.Close())

	ev = next(t, a)
	assert.Equal(t, transport.EventPeerLeft, ev.Kind)
	assert.Equal(t, b.LocalID(), ev.Peer.ID)

	assert.ErrorIs(t, b.Send(context.Background(), []byte("late")), transport.ErrClosed)
}

func TestServer_OversizedFrameKeepsConnection(t *testing.T) {
	srv := newRelay(t, relay.Options{}, true)

	a := dial(t, srv, "ABC123", "{}")
	b := dial(t, srv, "ABC123", "{}")

	assert.Equal(t, transport.EventPeerJoined, next(t, a).Kind)

	err := a.Send(context.Background(), []byte(strings.Repeat(`"`, transport.MaxFrameSize/2)))
	require.ErrorIs(t, err, transport.ErrFrameTooLarge)

	require.NoError(t, a.Send(context.Background(), []byte("after")))

	ev := next(t, b)
	assert.Equal(t, transport.EventData, ev.Kind)
	assert.Equal(t, "after", string(ev.Data))
}

func TestServer_RejectsBadToken(t *testing.T) {
	srv := newRelay(t, relay.Options{}, true)

	resp, err := http.Get(srv.URL + "/rooms/ABC123/ws?token=forged")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_PeerLimit(t *testing.T) {
	srv := newRelay(t, relay.Options{PeerLimit: 1}, true)

	dial(t, srv, "ABC123", "{}")

	d := &transport.WebSocketDialer{BaseURL: srv.URL}
	_, err := d.Dial(context.Background(), "ABC123", "{}")
	require.ErrorIs(t, err, transport.ErrRejected)
	assert.Contains(t, err.Error(), relay.ErrRoomFull.Error())
}

func TestServer_Rooms(t *testing.T) {
	srv := newRelay(t, relay.Options{}, true)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(srv.URL + "/rooms/new")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Regexp(t, `^/rooms/[A-Z0-9]{8}$`, resp.Header.Get("Location"))

	resp, err = client.Get(srv.URL + "/rooms/new/tradeoff")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Regexp(t, `^/rooms/tradeoff-[A-Z0-9]{8}$`, resp.Header.Get("Location"))

	resp, err = client.Get(srv.URL + "/rooms/new/chess")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/rooms/ABC123")
	require.NoError(t, err)

	var page bytes.Buffer
	_, _ = page.ReadFrom(resp.Body)
	resp.Body.Close()

	assert.Contains(t, page.String(), "--room ABC123")

	resp, err = client.Get(srv.URL + "/rooms/ABC123/qr")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, err = client.Get(srv.URL + "/rooms/bad%20room/qr")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_SessionsOverWebSocket(t *testing.T) {
	srv := newRelay(t, relay.Options{}, true)

	d := &transport.WebSocketDialer{BaseURL: srv.URL}

	var all []*session.Session

	open := func(user string, facilitator bool) *session.Session {
		id := session.Identity{RoomID: "ABC123", UserID: user, Nickname: user, Facilitator: facilitator}

		s := session.New(d, id, session.ModePoker, t.Logf)
		require.NoError(t, s.Start(context.Background()))
		t.Cleanup(func() { _ = s.Close() })

		all = append(all, s)

		return s
	}

	f := open("f", true)
	a := open("a", false)
	b := open("b", false)

	for _, s := range all {
		require.Eventually(t, func() bool {
			snap := s.Snapshot()

			return !snap.Connecting && len(snap.Participants) == 3
		}, 5*time.Second, 10*time.Millisecond)
	}

	require.ErrorIs(t, f.SetTask(strings.Repeat(`"`, 30000)), session.ErrTooLong)
	require.NoError(t, f.Snapshot().Err)

	require.NoError(t, f.SetTask("Login flow"))

	for _, s := range []*session.Session{a, b} {
		require.Eventually(t, func() bool { return s.Snapshot().CanVote }, 5*time.Second, 10*time.Millisecond)
	}

	require.NoError(t, a.Vote("5"))
	require.NoError(t, b.Vote("8"))
	require.NoError(t, f.Vote("5"))

	require.Eventually(t, func() bool { return f.Snapshot().AllVoted }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, f.Reveal())

	for _, s := range all {
		require.Eventually(t, func() bool {
			avg := s.Snapshot().Average

			return avg != nil && *avg == 6.0
		}, 5*time.Second, 10*time.Millisecond)
	}
}
