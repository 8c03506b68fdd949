package server

import (
	"context"
	"sync"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/auth"
	"github.com/daniil11ru/bustrack/cli/tracker/types"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// Client одно websocket-соединение. Исходящие события идут через ограниченную
// очередь send; при переполнении событие отбрасывается только для этого клиента.
type Client struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	server   *Server

	send chan []byte
	done chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func (c *Client) ID() string {
	return c.id
}

// Deliver не блокируется
func (c *Client) Deliver(vehicleID types.VehicleID, position types.Position) {
	msg, err := encodeLocation(vehicleID, position)
	if err != nil {
		log.WithFields(log.Fields{"conn": c.id, "err": err}).Error("Ошибка сериализации местоположения")
		return
	}
	c.enqueue(msg)
}

func (c *Client) enqueue(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg:
	case <-c.done:
	default:
		log.WithField("conn", c.id).Warn("Очередь отправки переполнена, событие отброшено")
	}
}

func (c *Client) sendError(event, message string) {
	msg, err := encode(EventError, ErrorPayload{Event: event, Message: message})
	if err != nil {
		return
	}
	c.enqueue(msg)
}

func (c *Client) readPump() {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"conn": c.id, "panic": r}).Error("Паника при обработке события")
		}
		c.teardown()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if ttl := c.server.ttl; ttl > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(ttl))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(ttl))
		})
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.WithFields(log.Fields{"conn": c.id, "err": err}).Warn("Соединение прервано")
			} else {
				log.WithField("conn", c.id).Info("Клиент закрыл соединение")
			}
			return
		}

		if ttl := c.server.ttl; ttl > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(ttl))
		}
		c.server.handle(c, data)
	}
}

func (c *Client) writePump() {
	var tick <-chan time.Time
	if ttl := c.server.ttl; ttl > 0 {
		ticker := time.NewTicker(ttl * 9 / 10)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.WithFields(log.Fields{"conn": c.id, "err": err}).Debug("Ошибка отправки")
				c.close()
				return
			}
		case <-tick:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = c.conn.Close()
			return
		}
	}
}

// close прерывает чтение, дальнейшая очистка выполняется в readPump
func (c *Client) close() {
	_ = c.conn.Close()
}

// teardown выполняется ровно один раз: выход из комнат, затем решение о записи в справочник
func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()

		left := c.server.broadcaster.LeaveAll(c)
		vehicleID, flushed := c.server.flush.Disconnect(c.id)

		c.server.unregister(c)

		log.WithFields(log.Fields{
			"conn":    c.id,
			"subject": c.identity.Subject,
			"rooms":   len(left),
			"bus":     vehicleID,
			"flushed": flushed,
		}).Info("Соединение закрыто")
	})
}
