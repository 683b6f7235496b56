package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

type session struct {
	h     *Handler
	conn  *websocket.Conn
	actor domain.Actor
	topic string

	pushes  <-chan []byte
	replies chan []byte

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func() error
	closeOnce   sync.Once
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		if err := s.unsubscribe(); err != nil {
			s.h.logger.Debug("ws unsubscribe failed", logx.String("topic", s.topic), logx.Err(err))
		}
		_ = s.conn.Close()
		s.h.logger.Info("ws session closed", logx.String("topic", s.topic))
	})
}

// writePump is the only writer of the connection.
func (s *session) writePump() {
	ticker := time.NewTicker(s.h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			s.writeClose()
			return
		case msg, ok := <-s.pushes:
			if !ok {
				s.writeClose()
				return
			}
			if err := s.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case msg := <-s.replies:
			if err := s.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) write(kind int, data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.cfg.WriteWait))
	if err := s.conn.WriteMessage(kind, data); err != nil {
		s.h.logger.Debug("ws write failed", logx.String("topic", s.topic), logx.Err(err))
		return err
	}
	return nil
}

func (s *session) writeClose() {
	_ = s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(s.h.cfg.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.h.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.h.cfg.PongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.h.logger.Warn("ws read failed", logx.String("topic", s.topic), logx.Err(err))
			}
			return
		}

		reply := s.handle(data)
		select {
		case s.replies <- marshalReply(reply):
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *session) handle(data []byte) Reply {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Reply{Type: MsgError, Code: "invalid", Error: "invalid json"}
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.h.cfg.ActionTimeout)
	defer cancel()

	var (
		orderID int64
		result  any
		err     error
	)
	switch env.Type {
	case MsgLocationUpdate:
		var p LocationPayload
		if err = s.decode(env, &p, domain.RoleCourier); err == nil {
			err = s.h.tracker.Ingest(ctx, s.actor.ID, domain.Point{Lat: p.Lat, Lon: p.Lon})
		}
	case MsgAccept, MsgReject, MsgDirectionUpdate, MsgHandOver, MsgComplete, MsgCancel:
		var p OrderPayload
		if err = s.decode(env, &p, rolesFor(env.Type)...); err == nil {
			orderID = p.OrderID
			result, err = s.act(ctx, env.Type, p)
		}
	default:
		err = fmt.Errorf("message type %q: %w", env.Type, apperr.ErrInvalid)
	}

	if err != nil {
		code := errorCode(err)
		if code == "internal" {
			s.h.logger.Error("ws action failed",
				logx.String("action", string(env.Type)),
				logx.Int64("order_id", orderID),
				logx.Err(err),
			)
		}
		return Reply{Type: MsgError, Action: env.Type, OrderID: orderID, Code: code, Error: err.Error()}
	}
	return Reply{Type: MsgAck, Action: env.Type, OrderID: orderID, Result: result}
}

func rolesFor(t MessageType) []domain.ActorRole {
	switch t {
	case MsgComplete:
		return []domain.ActorRole{domain.RoleCustomer}
	case MsgCancel:
		return nil
	default:
		return []domain.ActorRole{domain.RoleCourier}
	}
}

// decode checks the session role and unmarshals the payload.
func (s *session) decode(env Envelope, dst any, roles ...domain.ActorRole) error {
	if len(roles) > 0 {
		allowed := false
		for _, r := range roles {
			if s.actor.Role == r {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%s by %s: %w", env.Type, s.actor.Role, apperr.ErrForbidden)
		}
	}
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s without payload: %w", env.Type, apperr.ErrInvalid)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("%s payload: %v: %w", env.Type, err, apperr.ErrInvalid)
	}
	return nil
}

func (s *session) act(ctx context.Context, t MessageType, p OrderPayload) (any, error) {
	if p.OrderID <= 0 {
		return nil, fmt.Errorf("order id %d: %w", p.OrderID, apperr.ErrInvalid)
	}
	switch t {
	case MsgAccept:
		res, err := s.h.assigner.Accept(ctx, p.OrderID, s.actor.ID)
		if err != nil {
			return nil, err
		}
		return acceptResult(res), nil
	case MsgReject:
		return nil, s.h.assigner.Reject(ctx, p.OrderID, s.actor.ID)
	case MsgDirectionUpdate:
		return nil, s.h.lifecycle.UpdateDirection(ctx, p.OrderID, s.actor.ID, p.Direction)
	case MsgCancel:
		return nil, s.h.lifecycle.Cancel(ctx, p.OrderID, s.actor, p.Reason)
	case MsgComplete:
		return nil, s.h.lifecycle.Complete(ctx, p.OrderID, s.actor.ID, p.Rating)
	case MsgHandOver:
		return nil, s.h.lifecycle.HandOver(ctx, p.OrderID, s.actor.ID, p.Rating)
	}
	return nil, fmt.Errorf("message type %q: %w", t, apperr.ErrInvalid)
}
