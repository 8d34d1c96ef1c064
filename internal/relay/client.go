package relay

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// maxMessageSize bounds inbound frames. A relayed message carries the
// whole stored message, whose content may escape to several bytes per
// character.
const maxMessageSize = 64 << 10

// Client is one live websocket connection. identity is written only by
// the relay goroutine; principal is fixed at creation and is empty for
// unauthenticated connections.
type Client struct {
	id        string
	conn      *websocket.Conn
	relay     *Relay
	log       *log.Logger
	principal string
	identity  string
	send      chan *ServerEvent
}

func NewClient(principal string, conn *websocket.Conn, r *Relay, l *log.Logger) *Client {
	return &Client{
		id:        ulid.Make().String(),
		conn:      conn,
		relay:     r,
		log:       l,
		principal: principal,
		send:      make(chan *ServerEvent, defaultSendQueueLen),
	}
}

func (c *Client) Id() string {
	return c.id
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			bytes, err := serializeEvent(msg)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.relay.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var e ClientEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			c.log.Printf("connection %s: error parsing event: %v", c.id, err)
			continue
		}

		c.dispatch(e)
	}
}

// dispatch hands a decoded frame to the relay. Malformed frames are
// logged and dropped; nothing is reported back to the peer.
func (c *Client) dispatch(e ClientEvent) {
	switch e.Event {
	case EventSetup:
		identity, err := parseIdentity(e.Data)
		if err != nil {
			c.log.Printf("connection %s: %s: %v", c.id, e.Event, err)
			return
		}
		c.relay.Setup(c, identity)
	case EventJoinChat:
		chatId, err := parseChatId(e.Data)
		if err != nil {
			c.log.Printf("connection %s: %s: %v", c.id, e.Event, err)
			return
		}
		c.relay.Join(c, chatId)
	case EventNewMessage:
		msg, err := parseMessage(e.Data)
		if err != nil {
			c.log.Printf("connection %s: %s: %v", c.id, e.Event, err)
			return
		}

		var participants []string
		if c.relay.lookup != nil {
			participants, err = c.relay.lookup.ChatParticipants(msg.Chat)
			if err != nil {
				c.log.Printf("connection %s: lookup participants of chat %q: %v", c.id, msg.Chat, err)
				return
			}
		}
		c.relay.Publish(c, msg, participants)
	case EventTyping, EventStopTyping:
		chatId, user, err := parseTyping(e.Data)
		if err != nil {
			c.log.Printf("connection %s: %s: %v", c.id, e.Event, err)
			return
		}
		c.relay.Typing(c, chatId, user, e.Event == EventTyping)
	default:
		c.log.Printf("connection %s: unknown event %q", c.id, e.Event)
	}
}

// queueMessage is called from the relay goroutine only.
func (c *Client) queueMessage(msg *ServerEvent) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("connection %s: send queue full, dropping %q", c.id, msg.Event)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}
