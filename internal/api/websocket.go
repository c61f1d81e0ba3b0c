package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/xchpool-tools/xchpool-stats/internal/estimate"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

const (
	writeWait = 10 * time.Second

	// DefaultPushInterval is used when no push interval is configured
	DefaultPushInterval = 5 * time.Minute
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboards may be served from anywhere
	},
}

// WSMessage is pushed to websocket clients
type WSMessage struct {
	Type   string           `json:"type"`
	Report *estimate.Report `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// wsClient serializes writes to one connection
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) send(msg WSMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// handleWebSocket pushes the current report on connect and every push interval
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.Debugf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn}
	util.Debugf("WebSocket client connected from %s", conn.RemoteAddr())

	// Reads only detect the peer going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.cfg.API.PushInterval
	if interval <= 0 {
		interval = DefaultPushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		msg := WSMessage{Type: "report"}
		rep, err := s.currentReport(ctx)
		if err != nil {
			msg = WSMessage{Type: "error", Error: err.Error()}
		} else {
			msg.Report = rep
		}
		if err := client.send(msg); err != nil {
			util.Debugf("WebSocket write failed: %v", err)
			return
		}

		select {
		case <-ticker.C:
		case <-closed:
			return
		case <-s.quit:
			client.writeMu.Lock()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			client.writeMu.Unlock()
			return
		}
	}
}
