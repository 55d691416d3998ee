/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/pointbox/internal/token"
	"github.com/Seednode/pointbox/internal/transport"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	maxTokenRequest = 4 << 10
	qrSize          = 320
)

// Server exposes a Manager over HTTP.
type Server struct {
	manager *Manager
	issuer  *token.Issuer
	logf    func(format string, args ...any)

	upgrader websocket.Upgrader
}

// NewServer serves the rooms of m. When issuer is nil, token requests fail and
// rooms are open to anyone.
func NewServer(m *Manager, issuer *token.Issuer) *Server {
	return &Server{
		manager: m,
		issuer:  issuer,
		logf:    m.logf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: transport.HandshakeTimeout,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Register mounts the relay routes under prefix:
//   - POST $prefix/token             → room token
//   - GET  $prefix/rooms/new         → redirect to a fresh poker room
//   - GET  $prefix/rooms/new/:mode   → redirect to a fresh room of the given mode
//   - GET  $prefix/rooms/:room       → join instructions
//   - GET  $prefix/rooms/:room/ws    → websocket for that room
//   - GET  $prefix/rooms/:room/qr    → PNG QR code for that room
func (s *Server) Register(mux *httprouter.Router, prefix string) {
	mux.Handle(http.MethodPost, prefix+"/token", s.serveToken)
	mux.Handle(http.MethodGet, prefix+"/token", s.serveToken)

	mux.GET(prefix+"/rooms/:room", s.serveRoom(prefix))
	mux.GET(prefix+"/rooms/:room/:action", s.serveRoomAction(prefix))
}

func (s *Server) serveRoomAction(prefix string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		switch {
		case ps.ByName("room") == "new":
			s.serveNewRoom(prefix, ps.ByName("action"))(w, r, ps)
		case ps.ByName("action") == "ws":
			s.serveWS(w, r, ps)
		case ps.ByName("action") == "qr":
			s.serveQR(w, r, ps)
		default:
			http.NotFound(w, r)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) serveToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	code, resp := s.issue(r)

	s.manager.metrics.tokens.WithLabelValues(strconv.Itoa(code)).Inc()

	writeJSON(w, code, resp)
}

func (s *Server) issue(r *http.Request) (int, any) {
	if r.Method != http.MethodPost {
		return http.StatusMethodNotAllowed, token.ErrorResponse{Error: "Method not allowed"}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxTokenRequest))
	if err != nil {
		return http.StatusBadRequest, token.ErrorResponse{Error: "unreadable request body"}
	}

	var req token.Request
	if err := json.Unmarshal(body, &req); err != nil || req.ChannelName == "" || req.MemberName == "" {
		return http.StatusBadRequest, token.ErrorResponse{Error: "channelName and memberName are required"}
	}

	if s.issuer == nil {
		return http.StatusInternalServerError, token.ErrorResponse{Error: token.ErrNoSecret.Error()}
	}

	tok, claims, err := s.issuer.Issue(req.MemberName)
	if err != nil {
		s.logf("TOKEN: Failed to issue token for %s: %v", req.MemberName, err)

		return http.StatusInternalServerError, token.ErrorResponse{Error: "Failed to generate token"}
	}

	s.logf("TOKEN: Issued token %s to %s for %s", claims.ID, req.MemberName, req.ChannelName)

	return http.StatusOK, token.Response{Token: tok, ExpiresAt: claims.ExpiresAt}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("room")
	if !ValidRoomID(roomID) {
		http.Error(w, "invalid room id", http.StatusBadRequest)

		return
	}

	if s.issuer != nil {
		if _, err := s.issuer.Verify(r.URL.Query().Get("token"), roomID); err != nil {
			s.manager.metrics.joins.WithLabelValues("unauthorized").Inc()
			s.logf("ROOMS: Refused %s: %v", roomID, err)

			http.Error(w, err.Error(), http.StatusUnauthorized)

			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logf("ROOMS: Upgrade failed: %v", err)

		return
	}

	conn.SetReadLimit(transport.MaxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(transport.HandshakeTimeout))

	var hello transport.Frame
	if err := conn.ReadJSON(&hello); err != nil || hello.Kind != transport.FrameHello {
		reject(conn, errors.New("expected hello"))

		return
	}

	c := &client{
		conn:     conn,
		send:     make(chan []byte, transport.SendBufferSize),
		id:       "peer_" + uuid.NewString(),
		metadata: hello.Metadata,
	}

	room := s.manager.Room(roomID)

	err = room.join(c)
	if errors.Is(err, ErrRoomClosed) {
		// reaped between lookup and join
		room = s.manager.Room(roomID)
		err = room.join(c)
	}

	if err != nil {
		s.manager.metrics.joins.WithLabelValues("refused").Inc()
		s.logf("ROOMS: Refused peer in %s: %v", roomID, err)

		reject(conn, err)

		return
	}

	s.manager.metrics.joins.WithLabelValues("ok").Inc()

	go c.writePump()
	c.readPump(room)
}

func reject(conn *websocket.Conn, err error) {
	_ = conn.SetWriteDeadline(time.Now().Add(transport.WriteTimeout))
	_ = conn.WriteJSON(transport.Frame{Kind: transport.FrameError, Error: err.Error()})
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
	_ = conn.Close()
}

func (s *Server) serveNewRoom(prefix, mode string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var tradeoff bool

		switch mode {
		case "poker":
		case "tradeoff":
			tradeoff = true
		default:
			http.NotFound(w, r)

			return
		}

		id := s.manager.NewRoomID(tradeoff)

		s.logf("ROOMS: Created room %s", id)

		http.Redirect(w, r, prefix+"/rooms/"+id, http.StatusTemporaryRedirect)
	}
}

func (s *Server) serveRoom(prefix string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("room")

		if roomID == "new" {
			s.serveNewRoom(prefix, "poker")(w, r, ps)

			return
		}

		if !ValidRoomID(roomID) {
			http.Error(w, "invalid room id", http.StatusBadRequest)

			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		var b strings.Builder

		fmt.Fprintf(&b, "Room %s\n\n", roomID)
		fmt.Fprintf(&b, "Join with:\n  pointbox join --relay %s --room %s --nickname <name>\n", baseURL(r, prefix), roomID)

		_, _ = io.WriteString(w, b.String())
	}
}

// serveQR renders a PNG QR code pointing at the room page.
func (s *Server) serveQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("room")
	if !ValidRoomID(roomID) {
		http.Error(w, "invalid room id", http.StatusBadRequest)

		return
	}

	url := scheme(r) + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// scheme respects TLS and X-Forwarded-Proto.
func scheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}

	if r.TLS != nil {
		return "https"
	}

	return "http"
}

func baseURL(r *http.Request, prefix string) string {
	return scheme(r) + "://" + r.Host + prefix
}
