// Package realtime serves the websocket channel couriers and customers keep open
// to receive pushes and to act on orders.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/http/middleware/auth"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/notify"
)

// Config tunes connection keepalive.
type Config struct {
	PingInterval  time.Duration
	PongWait      time.Duration
	WriteWait     time.Duration
	ReadLimit     int64
	SendBuffer    int
	ActionTimeout time.Duration
}

// DefaultConfig returns the keepalive settings used in production.
func DefaultConfig() Config {
	return Config{
		PingInterval:  30 * time.Second,
		PongWait:      60 * time.Second,
		WriteWait:     10 * time.Second,
		ReadLimit:     4096,
		SendBuffer:    64,
		ActionTimeout: 5 * time.Second,
	}
}

// Handler upgrades authenticated requests to websocket sessions.
type Handler struct {
	feed      Feed
	couriers  courierReader
	assigner  assigner
	lifecycle lifecycle
	tracker   ingester
	cfg       Config
	upgrader  websocket.Upgrader
	logger    logx.Logger
}

// NewHandler creates a new Handler.
func NewHandler(
	feed Feed,
	couriers courierReader,
	a assigner,
	l lifecycle,
	t ingester,
	cfg Config,
	logger logx.Logger,
) *Handler {
	if logger == nil {
		logger = logx.Nop()
	}
	def := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = 2 * cfg.PingInterval
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = def.ActionTimeout
	}
	return &Handler{
		feed:      feed,
		couriers:  couriers,
		assigner:  a,
		lifecycle: l,
		tracker:   t,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are mobile apps authenticated by token, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP handles GET /ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok || actor.Role == domain.RoleSystem {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
		return
	}

	topic, err := h.topicFor(r.Context(), actor)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperr.ErrNotFound) {
			status = http.StatusNotFound
		}
		h.logger.Warn("ws topic lookup failed",
			logx.String("role", string(actor.Role)),
			logx.Int64("actor_id", actor.ID),
			logx.Err(err),
		)
		http.Error(w, http.StatusText(status), status)
		return
	}

	// Detached from the request: the hijacked connection outlives ServeHTTP.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))

	pushes, unsubscribe, err := h.feed.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		h.logger.Error("ws subscribe failed", logx.String("topic", topic), logx.Err(err))
		http.Error(w, "subscribe failed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		_ = unsubscribe()
		h.logger.Warn("ws upgrade failed", logx.Err(err))
		return
	}

	s := &session{
		h:           h,
		conn:        conn,
		actor:       actor,
		topic:       topic,
		pushes:      pushes,
		replies:     make(chan []byte, h.cfg.SendBuffer),
		ctx:         ctx,
		cancel:      cancel,
		unsubscribe: unsubscribe,
	}
	h.logger.Info("ws session opened",
		logx.String("topic", topic),
		logx.String("role", string(actor.Role)),
		logx.Int64("actor_id", actor.ID),
	)
	go s.writePump()
	go s.readPump()
}

// topicFor resolves the user topic the session listens on.
// Couriers are addressed by their user id, not their courier id.
func (h *Handler) topicFor(ctx context.Context, a domain.Actor) (string, error) {
	if a.Role != domain.RoleCourier {
		return notify.Topic(a.ID, notify.AudienceCustomer), nil
	}
	c, err := h.couriers.Get(ctx, a.ID)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", fmt.Errorf("courier %d: %w", a.ID, apperr.ErrNotFound)
	}
	return notify.Topic(c.UserID, notify.AudienceCourier), nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		return "invalid"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperr.ErrRaceLost):
		return "race_lost"
	case errors.Is(err, apperr.ErrPreconditionFailed):
		return "precondition_failed"
	default:
		return "internal"
	}
}

func marshalReply(r Reply) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		data, _ = json.Marshal(Reply{Type: MsgError, Action: r.Action, Code: "internal", Error: "encode failed"})
	}
	return data
}
