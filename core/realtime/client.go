package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"Soundcheck/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client message types.
const (
	MsgJoinChannel  = "join-channel"
	MsgLeaveChannel = "leave-channel"
	MsgJoinTrack    = "join-track"
	MsgLeaveTrack   = "leave-track"
	MsgJoinProject  = "join-project"
	MsgLeaveProject = "leave-project"
	MsgPing         = "ping"

	MsgPong   = "pong"
	MsgJoined = "joined"
	MsgLeft   = "left"
	MsgError  = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// ClientMessage is a frame sent by the browser.
type ClientMessage struct {
	Type      string `json:"type"`
	Channel   string `json:"channel,omitempty"`
	TrackID   string `json:"trackId,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

// target resolves the channel a join/leave message refers to.
func (m *ClientMessage) target() string {
	switch m.Type {
	case MsgJoinTrack, MsgLeaveTrack:
		if m.TrackID != "" {
			return TrackChannel(m.TrackID)
		}
	case MsgJoinProject, MsgLeaveProject:
		if m.ProjectID != "" {
			return ProjectChannel(m.ProjectID)
		}
	}
	return m.Channel
}

// Authorizer decides whether userID may subscribe to a channel of the given
// kind (KindTrack or KindProject).
type Authorizer interface {
	CanJoin(ctx context.Context, userID, kind, id string) error
}

// Client is one websocket session.
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	auth   Authorizer
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection for userID.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, auth Authorizer) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		hub:    hub,
		conn:   conn,
		auth:   auth,
		send:   make(chan []byte, sendBuffer),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// Deliver implements Session.
func (c *Client) Deliver(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close implements Session. The write pump sends a close frame and exits.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Serve registers the client and runs both pumps until the socket closes.
func (c *Client) Serve(ctx context.Context) {
	c.hub.Register(c)
	go c.WritePump()
	c.ReadPump(ctx)
}

// ReadPump reads client messages until the socket closes.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("session", c.id),
					logger.String("user", c.userID))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(Message{Type: MsgError, Message: "invalid message format"})
			continue
		}
		c.handle(ctx, &msg)
	}
}

func (c *Client) handle(ctx context.Context, msg *ClientMessage) {
	switch msg.Type {
	case MsgPing:
		c.reply(Message{Type: MsgPong})

	case MsgJoinChannel, MsgJoinTrack, MsgJoinProject:
		channel := msg.target()
		kind, id, ok := ParseChannel(channel)
		if !ok {
			c.reply(Message{Type: MsgError, Channel: channel, Message: "unknown channel"})
			return
		}
		if err := c.auth.CanJoin(ctx, c.userID, kind, id); err != nil {
			logger.Info("channel join refused",
				logger.String("user", c.userID),
				logger.String("channel", channel),
				logger.ErrorField(err))
			c.reply(Message{Type: MsgError, Channel: channel, Message: "channel not found or access denied"})
			return
		}
		c.hub.Registry().Join(c.id, channel)
		c.reply(Message{Type: MsgJoined, Channel: channel})

	case MsgLeaveChannel, MsgLeaveTrack, MsgLeaveProject:
		channel := msg.target()
		c.hub.Registry().Leave(c.id, channel)
		c.reply(Message{Type: MsgLeft, Channel: channel})

	default:
		c.reply(Message{Type: MsgError, Message: "unknown message type"})
	}
}

func (c *Client) reply(msg Message) {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.Deliver(data)
}

// WritePump writes queued frames and keepalive pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
