package chat

import (
	"net/http"
	"strings"
	"time"

	"RentChat/logger"
	"RentChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 25 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS is the single websocket entry point. The token is verified
// before the upgrade: a failed handshake leaves no partial state behind,
// the HTTP request is simply rejected.
func (s *Server) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		auth := c.GetHeader("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	userID, err := security.Verify(s.auth, token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[ws] upgrade failed user=%s: %v", userID, err)
		return
	}

	conn, err := s.connMgr.Register(ws, userID)
	if err != nil {
		_ = ws.Close()
		return
	}
	logger.Infof("[ws] connected conn=%s user=%s", conn.ID, userID)

	conn.trySend(BuildEvent(EventConnAck, ConnAckPayload{
		ConnID:         conn.ID,
		HeartbeatSec:   int(s.connMgr.HeartbeatTTL() / time.Second),
		ServerTime:     s.connMgr.Clock()().UnixMilli(),
		TypingStaleSec: int(TypingMarkerTTL / time.Second),
	}))

	go s.writePump(conn)
	s.readLoop(conn)
}

// writePump is the only goroutine writing to the socket. It drains the
// send queue and keeps the protocol-level ping alive.
func (s *Server) writePump(c *Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				s.connMgr.Unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.connMgr.Unregister(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Server) readLoop(c *Conn) {
	defer func() {
		s.connMgr.Unregister(c)
		logger.Infof("[ws] disconnected conn=%s user=%s", c.ID, c.UserID)
	}()

	ttl := s.connMgr.HeartbeatTTL()
	_ = c.ws.SetReadDeadline(time.Now().Add(ttl))
	c.ws.SetPongHandler(func(string) error {
		s.connMgr.Touch(c.ID)
		return c.ws.SetReadDeadline(time.Now().Add(ttl))
	})

	ctx := &Context{S: s}
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		s.connMgr.Touch(c.ID)
		_ = c.ws.SetReadDeadline(time.Now().Add(ttl))

		f, err := ParseFrame(raw)
		if err != nil {
			c.trySend(BuildError(err))
			continue
		}
		if err := s.disp.Dispatch(ctx, f, c); err != nil {
			// an error goes back to the offending connection only; other
			// parties never observe the failed attempt
			c.trySend(BuildError(err))
		}
	}
}
