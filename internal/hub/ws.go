package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"prepwise/server/internal/model"
	"prepwise/server/internal/token"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 8 << 10
)

// Admitter validates an access credential at connection establishment.
type Admitter interface {
	VerifyAccess(ctx context.Context, tokenString string) (model.User, error)
}

// Presence marks a principal online while its connection lives.
type Presence interface {
	Heartbeat(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
}

// Handler upgrades an authenticated request to a websocket connection. The
// access credential is verified once, before the upgrade; the resulting
// identity stays bound to the connection for its lifetime.
func (h *Hub) Handler(admitter Admitter, presence Presence) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := admitter.VerifyAccess(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": admissionCode(err)})
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		session := NewSession(user)
		h.Register(session)
		if presence != nil {
			_ = presence.Heartbeat(context.Background(), user.ID)
		}

		go h.writePump(conn, session)
		h.readPump(conn, session, presence)
	})
}

func (h *Hub) readPump(conn *websocket.Conn, session *Session, presence Presence) {
	defer func() {
		h.Disconnect(session)
		if presence != nil {
			_ = presence.Offline(context.Background(), session.User.ID)
		}
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if presence != nil {
			_ = presence.Heartbeat(context.Background(), session.User.ID)
		}
		return nil
	})

	for {
		var frame clientEvent
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", zap.String("session_id", session.ID), zap.Error(err))
			}
			return
		}
		h.dispatch(session, frame)
	}
}

func (h *Hub) dispatch(session *Session, frame clientEvent) {
	switch frame.Type {
	case EventJoinChannel:
		var payload joinPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			session.Send(Event{Type: EventMessageError, Data: ErrorPayload{Error: "invalid_payload"}})
			return
		}
		if err := h.Join(session, payload.Channel); err != nil {
			session.Send(Event{Type: EventMessageError, Data: ErrorPayload{Error: publishCode(err)}})
		}
	case EventLeaveChannel:
		var payload joinPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			session.Send(Event{Type: EventMessageError, Data: ErrorPayload{Error: "invalid_payload"}})
			return
		}
		if err := h.Leave(session, payload.Channel); err != nil {
			session.Send(Event{Type: EventMessageError, Data: ErrorPayload{Error: publishCode(err)}})
		}
	case EventSendMessage:
		var payload sendPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			session.Send(Event{Type: EventMessageError, Data: ErrorPayload{Error: "invalid_payload"}})
			return
		}
		if _, err := h.Publish(context.Background(), session, payload.Channel, payload.Content, payload.MessageType); err != nil {
			session.Send(Event{Type: EventMessageError, Data: ErrorPayload{Error: publishCode(err)}})
		}
	default:
		session.Send(Event{Type: EventMessageError, Data: ErrorPayload{Error: "unknown_event"}})
	}
}

func (h *Hub) writePump(conn *websocket.Conn, session *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case event, ok := <-session.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func admissionCode(err error) string {
	switch {
	case errors.Is(err, token.ErrExpiredCredential):
		return "token_expired"
	default:
		return "invalid_token"
	}
}

func publishCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownChannel):
		return "unknown_channel"
	case errors.Is(err, ErrNotMember):
		return "not_member"
	case errors.Is(err, ErrEmptyContent):
		return "empty_content"
	default:
		return "message_store_error"
	}
}
