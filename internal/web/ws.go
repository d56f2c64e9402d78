package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livp123/pktstream/internal/capture"
	pkgerrors "github.com/livp123/pktstream/pkg/errors"
)

const maxControlMessage = 4096

// wsConn adapts a websocket connection to broadcast.Conn.
// Only the broadcaster's writer goroutine calls Send.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (c *wsConn) Send(data []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// handleWS registers the viewer and reads control messages until it disconnects.
// handleWS 注册观察端并读取控制消息，直到连接断开。
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	ws.SetReadLimit(maxControlMessage)

	conn := &wsConn{conn: ws, writeTimeout: s.cfg.Viewers.WriteTimeout.Std()}
	if err := s.hub.Register(conn); err != nil {
		ws.Close()
		return
	}
	s.log.Infof("👀 Viewer connected from %s (%d viewers)", r.RemoteAddr, s.hub.Count())
	defer func() {
		s.hub.Unregister(conn)
		s.log.Infof("👋 Viewer %s disconnected", r.RemoteAddr)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		duration, ok := decodeControl(data, s.cfg.Capture.DefaultDuration)
		if !ok {
			s.log.Debugf("Ignoring control message from %s: %q", r.RemoteAddr, data)
			continue
		}
		s.startFromViewer(conn, duration)
	}
}

func (s *Server) startFromViewer(conn *wsConn, duration int) {
	_, err := s.manager.RequestStart(duration)
	switch {
	case err == nil:
	case errors.Is(err, pkgerrors.ErrSessionAlreadyRunning):
		// requester only, never broadcast
		if err := s.hub.Send(conn, capture.NewStatus("%s", capture.MsgAlreadyRunning)); err != nil {
			s.log.Debugf("Reply to viewer failed: %v", err)
		}
	default:
		s.log.Debugf("Ignoring start request: %v", err)
	}
}
