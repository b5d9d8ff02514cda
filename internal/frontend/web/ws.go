package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/marksman/internal/game/marksman"
	"github.com/cory-johannsen/marksman/internal/game/session"
	"github.com/cory-johannsen/marksman/internal/observability"
)

// Websocket message types.
const (
	MsgSet    = "set"
	MsgPolicy = "policy"
	MsgPreset = "preset"
	MsgReset  = "reset"
	MsgResult = "result"
	MsgError  = "error"
)

const (
	wsWriteWait   = 5 * time.Second
	wsMaxMessage  = 4096
	wsOutboxDepth = 16
)

// ClientMessage is a message sent by the browser.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is a message sent to the browser.
type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SetData is the payload of a set message.
type SetData struct {
	Field string     `json:"field"`
	Value FieldValue `json:"value"`
}

// NameData is the payload of policy and preset messages.
type NameData struct {
	Name string `json:"name"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Message string `json:"message"`
}

var errUnknownMessage = errors.New("unknown message type")

// handleWebsocket upgrades the connection and runs one calculator session on it.
// Every accepted message is answered with the recomputed result or an error.
func (s *Server) handleWebsocket(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err), zap.String("remote_addr", req.RemoteAddr))
		return
	}
	conn.SetReadLimit(wsMaxMessage)

	sess := s.sessions.Open("websocket", req.RemoteAddr)
	logger := observability.SessionLogger(s.logger, "websocket", sess.ID, req.RemoteAddr)
	logger.Info("session opened")
	start := time.Now()

	outbox := session.NewOutbox(sess.ID, wsOutboxDepth)
	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(conn, outbox, logger)
	}()

	send := func(msg ServerMessage) {
		data, err := json.Marshal(msg)
		if err != nil {
			logger.Error("encoding websocket message", zap.Error(err))
			return
		}
		if err := outbox.Push(data); err != nil {
			logger.Warn("dropping websocket message", zap.Error(err))
		}
	}

	send(resultMessage(sess.Result()))
	for {
		var in ClientMessage
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read ended", zap.Error(err))
			}
			break
		}
		r, err := s.apply(sess, in)
		if err != nil {
			send(ServerMessage{Type: MsgError, Data: ErrorData{Message: err.Error()}})
			continue
		}
		send(resultMessage(r))
	}

	outbox.Close()
	<-done
	_ = conn.Close()
	s.sessions.Close(sess.ID)
	logger.Info("session closed", zap.Duration("session_duration", time.Since(start)))
}

// apply performs one client message against sess.
func (s *Server) apply(sess *session.Session, in ClientMessage) (marksman.AttackResult, error) {
	switch in.Type {
	case MsgSet:
		var d SetData
		if err := json.Unmarshal(in.Data, &d); err != nil {
			return marksman.AttackResult{}, fmt.Errorf("set: %w", err)
		}
		return sess.Set(d.Field, string(d.Value))
	case MsgPolicy:
		var d NameData
		if err := json.Unmarshal(in.Data, &d); err != nil {
			return marksman.AttackResult{}, fmt.Errorf("policy: %w", err)
		}
		p, err := s.sessions.Policy(d.Name)
		if err != nil {
			return marksman.AttackResult{}, err
		}
		return sess.SetPolicy(p), nil
	case MsgPreset:
		var d NameData
		if err := json.Unmarshal(in.Data, &d); err != nil {
			return marksman.AttackResult{}, fmt.Errorf("preset: %w", err)
		}
		p, err := s.sessions.Preset(d.Name)
		if err != nil {
			return marksman.AttackResult{}, err
		}
		return sess.Apply(p.Input()), nil
	case MsgReset:
		return sess.Reset(), nil
	default:
		return marksman.AttackResult{}, fmt.Errorf("%q: %w", in.Type, errUnknownMessage)
	}
}

func resultMessage(r marksman.AttackResult) ServerMessage {
	return ServerMessage{Type: MsgResult, Data: newResolveResponse(r)}
}

// writePump is the only goroutine that writes to conn. It returns when outbox is
// closed and drained, or on the first write error.
func writePump(conn *websocket.Conn, outbox *session.Outbox, logger *zap.Logger) {
	for msg := range outbox.Messages() {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug("websocket write failed", zap.Error(err))
			outbox.Close()
			return
		}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
