package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 64 * 1024
	sendBuffer = 256
)

// Client is one websocket connection attached to a session.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	ViewerID    string
	DisplayName string
	SessionID   string
	ClientID    string

	log *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, viewerID, displayName, sessionID, clientID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		ViewerID:    viewerID,
		DisplayName: displayName,
		SessionID:   sessionID,
		ClientID:    clientID,
		log:         slog.With("session", sessionID, "client", clientID, "viewer", viewerID),
	}
}

// ReadPump forwards incoming messages to the client's session until the
// connection closes.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				c.log.Debug("read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("invalid message", "error", err)
			c.hub.replyError(c, "invalid message")
			continue
		}

		msg.ViewerID = c.ViewerID
		msg.ClientID = c.ClientID
		msg.SessionID = c.SessionID

		c.hub.dispatch(c, &msg)
	}
}

func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.log.Debug("ping failed", "error", err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("marshal message", "type", msg.Type, "error", err)
		return
	}
	c.enqueue(data)
}

// enqueue drops the message when the client is too slow to keep up. The next
// frame replaces whatever was lost.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.log.Warn("send buffer full, dropping message")
	}
}
