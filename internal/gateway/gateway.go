// Package gateway provides the WebSocket connection gateway, the wire
// protocol, and the broadcast dispatcher for the session server. Each client
// holds exactly one duplex connection; inbound events are routed to the
// session handler and outbound events fan out through per-connection send
// queues.
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/playfield/internal/config"
)

// EventHandler consumes inbound events and connection closures. Implemented
// by SessionHandler; an interface so gateway tests can stub it.
type EventHandler interface {
	HandleEvent(c *Conn, env Envelope)
	HandleDisconnect(c *Conn)
}

// Gateway accepts websocket connections, assigns each a unique identity,
// and runs the per-connection read/write pumps. Channel closure with no
// explicit leave is reported to the handler exactly like an explicit leave.
type Gateway struct {
	cfg      config.ServerConfig
	upgrader websocket.Upgrader
	conns    *Table
	handler  EventHandler
	logger   *zap.Logger
}

// NewGateway creates a Gateway registering connections in the given table.
//
// Precondition: conns, handler, and logger must be non-nil.
func NewGateway(cfg config.ServerConfig, conns *Table, handler EventHandler, logger *zap.Logger) *Gateway {
	return &Gateway{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns:   conns,
		handler: handler,
		logger:  logger,
	}
}

// ServeWS upgrades an HTTP request to a websocket connection and serves it
// until the channel closes.
func (gw *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	sock, err := gw.upgrader.Upgrade(w, r, nil)
	if err != nil {
		gw.logger.Error("websocket upgrade failed",
			zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c := newConn(uuid.NewString(), sock, gw.cfg.SendBuffer,
		gw.cfg.WriteTimeout, gw.cfg.PongTimeout, gw.logger)
	gw.conns.Add(c)

	gw.logger.Info("connection established",
		zap.String("conn_id", c.ID()),
		zap.String("remote", r.RemoteAddr),
	)

	go c.writePump()
	go gw.readPump(c)
}

// readPump reads inbound frames and dispatches them to the handler. It owns
// the connection's teardown: on any read error the connection is treated as
// disconnected, its room membership is released, and it is unregistered.
func (gw *Gateway) readPump(c *Conn) {
	defer func() {
		gw.handler.HandleDisconnect(c)
		gw.conns.Remove(c.ID())
		c.close()
		gw.logger.Info("connection closed", zap.String("conn_id", c.ID()))
	}()

	_ = c.sock.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})

	for {
		msgType, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				gw.logger.Warn("websocket read error",
					zap.String("conn_id", c.ID()), zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			gw.logger.Warn("malformed frame",
				zap.String("conn_id", c.ID()), zap.Error(err))
			continue
		}
		gw.handler.HandleEvent(c, env)
	}
}

// Stop tears down every live connection. Called on shutdown after the HTTP
// listener stops accepting new ones.
func (gw *Gateway) Stop() {
	gw.conns.CloseAll()
	gw.logger.Info("gateway stopped")
}
