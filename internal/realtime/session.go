package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

const maxClientMessageSize = 4 * 1024 // 客户端入站消息上限

// Session 单个客户端连接：读协程解析入站事件，
// 写协程消费发送缓冲并维持心跳
type Session struct {
	id     uint64
	conn   *websocket.Conn
	server *Server

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id uint64, conn *websocket.Conn, server *Server, sendBuffer int) *Session {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Session{
		id:     id,
		conn:   conn,
		server: server,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// enqueue 非阻塞投递。缓冲满说明客户端消费过慢，直接断开
func (s *Session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- data:
		return true
	default:
		logger.Warn().Uint64("conn_id", s.id).Msg("send buffer overflow, dropping client")
		s.close()
		return false
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
		s.server.unregister(s)
	})
}

func (s *Session) readPump() {
	defer s.close()

	pongWait := s.server.pongWait
	s.conn.SetReadLimit(maxClientMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Uint64("conn_id", s.id).Msg("client read error")
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		s.server.handleMessage(s, raw)
	}
}

func (s *Session) writePump() {
	// 心跳间隔须小于对端读超时
	ticker := time.NewTicker(s.server.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(s.server.writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.server.writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.server.writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
