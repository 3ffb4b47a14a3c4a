package wsconn

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obraviva/site-chat/internal/domain"
)

// connection is one established socket and its two pumps.
type connection struct {
	conn   *websocket.Conn
	chatID string
	cfg    Config
	send   chan []byte

	stop      chan struct{}
	stopOnce  sync.Once
	leaveChat bool
	wg        sync.WaitGroup
}

func newConnection(conn *websocket.Conn, chatID string, cfg Config) *connection {
	return &connection{
		conn:   conn,
		chatID: chatID,
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendBuffer),
		stop:   make(chan struct{}),
	}
}

func (c *connection) start(m *Manager) {
	c.wg.Add(2)
	go c.writePump()
	go c.readPump(m)
}

// close stops the write pump. With leave set, a leave_chat frame and a
// close frame are written first.
func (c *connection) close(leave bool) {
	c.stopOnce.Do(func() {
		c.leaveChat = leave
		close(c.stop)
	})
}

func (c *connection) wait() {
	c.wg.Wait()
}

func (c *connection) enqueue(data []byte) error {
	select {
	case <-c.stop:
		return ErrNotConnected
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *connection) readPump(m *Manager) {
	defer c.wg.Done()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})
	c.conn.SetPingHandler(func(data string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		err := c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.cfg.WriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.close(false)
			m.connectionLost(c, err)
			return
		}
		m.dispatch(c, data)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.wg.Done()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.stop:
			if c.leaveChat {
				c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
				_ = c.conn.WriteJSON(domain.LeaveChatMessage{Type: domain.MsgTypeLeaveChat, ChatID: c.chatID})
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			}
			return
		}
	}
}
