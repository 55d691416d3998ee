/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/pointbox/internal/token"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrRejected      = errors.New("relay rejected connection")
	ErrFrameTooLarge = errors.New("frame exceeds relay size limit")
)

// WebSocketDialer joins rooms on a pointbox relay. It first asks the relay's
// token endpoint for a credential, then opens the room's websocket.
type WebSocketDialer struct {
	// BaseURL is the relay root, such as http://localhost:8080 or
	// https://example.com/pointbox.
	BaseURL string

	Client *http.Client
	Dialer *websocket.Dialer
}

func (d *WebSocketDialer) Dial(ctx context.Context, roomID, metadata string) (Conn, error) {
	base, err := url.Parse(strings.TrimSuffix(d.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}

	tok, err := d.fetchToken(ctx, base, roomID)
	if err != nil {
		return nil, err
	}

	wsURL := *base
	switch base.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = base.Path + "/rooms/" + url.PathEscape(roomID) + "/ws"
	wsURL.RawQuery = url.Values{"token": {tok}}.Encode()

	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: HandshakeTimeout,
		}
	}

	ws, resp, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRejected, resp.Status, err)
		}

		return nil, fmt.Errorf("join room %s: %w", roomID, err)
	}

	c, err := handshake(ws, metadata)
	if err != nil {
		_ = ws.Close()

		return nil, err
	}

	go c.writePump()
	go c.readPump()

	return c, nil
}

func (d *WebSocketDialer) fetchToken(ctx context.Context, base *url.URL, roomID string) (string, error) {
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: HandshakeTimeout}
	}

	body, err := json.Marshal(token.Request{
		ChannelName: roomID,
		MemberName:  "member_" + uuid.NewString(),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String()+"/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFrameSize))
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e token.ErrorResponse
		_ = json.Unmarshal(data, &e)

		return "", fmt.Errorf("token request: %s: %s", resp.Status, e.Error)
	}

	var out token.Response
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}

	if out.Token == "" {
		return "", errors.New("token request: empty token")
	}

	return out.Token, nil
}

func handshake(ws *websocket.Conn, metadata string) (*wsConn, error) {
	ws.SetReadLimit(MaxFrameSize)

	_ = ws.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if err := ws.WriteJSON(Frame{Kind: FrameHello, Metadata: metadata}); err != nil {
		return nil, fmt.Errorf("send hello: %w", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(HandshakeTimeout))

	var welcome Frame
	if err := ws.ReadJSON(&welcome); err != nil {
		return nil, fmt.Errorf("read welcome: %w", err)
	}

	switch welcome.Kind {
	case FrameWelcome:
	case FrameError:
		return nil, fmt.Errorf("%w: %s", ErrRejected, welcome.Error)
	default:
		return nil, fmt.Errorf("%w: unexpected %q frame", ErrRejected, welcome.Kind)
	}

	_ = ws.SetReadDeadline(time.Now().Add(PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(PongTimeout))
	})

	return &wsConn{
		ws:     ws,
		self:   welcome.PeerID,
		peers:  welcome.Peers,
		send:   make(chan []byte, SendBufferSize),
		events: make(chan Event),
		done:   make(chan struct{}),
	}, nil
}

type wsConn struct {
	ws    *websocket.Conn
	self  string
	peers []Peer

	send   chan []byte
	events chan Event

	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) LocalID() string {
	return c.self
}

func (c *wsConn) Peers() []Peer {
	return append([]Peer(nil), c.peers...)
}

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	frame, err := json.Marshal(Frame{Kind: FrameData, Data: string(data)})
	if err != nil {
		return err
	}

	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *wsConn) Events() <-chan Event {
	return c.events
}

func (c *wsConn) Close() error {
	c.shutdown()

	return nil
}

func (c *wsConn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)

		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(WriteTimeout),
		)
		_ = c.ws.Close()
	})
}

func (c *wsConn) readPump() {
	defer func() {
		close(c.events)
		c.shutdown()
	}()

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			return
		}

		var ev Event

		switch f.Kind {
		case FrameData:
			ev = Event{Kind: EventData, Peer: Peer{ID: f.PeerID}, Data: []byte(f.Data)}
		case FrameJoined:
			ev = Event{Kind: EventPeerJoined, Peer: Peer{ID: f.PeerID, Metadata: f.Metadata}}
		case FrameLeft:
			ev = Event{Kind: EventPeerLeft, Peer: Peer{ID: f.PeerID}}
		default:
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteTimeout)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
