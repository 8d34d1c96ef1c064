package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// Inbound events.
const (
	EventSetup      = "setup"
	EventJoinChat   = "join chat"
	EventNewMessage = "new message"
	EventTyping     = "typing"
	EventStopTyping = "stop typing"
)

// Outbound events.
const (
	EventConnected       = "connected"
	EventMessageReceived = "message received"
)

var (
	ErrMissingId     = errors.New("missing id")
	ErrMissingChat   = errors.New("missing chat id")
	ErrMissingSender = errors.New("missing sender")
)

// ClientEvent is an inbound frame.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is an outbound frame.
type ServerEvent struct {
	Event     string    `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is a chat message as it travels through the relay. Payload is
// the client's message object, forwarded untouched.
type Message struct {
	Chat    string
	Sender  string
	Payload json.RawMessage
}

func newServerEvent(event string, data any) *ServerEvent {
	return &ServerEvent{
		Event:     event,
		Data:      data,
		Timestamp: Now(),
	}
}

func serializeEvent(e *ServerEvent) ([]byte, error) {
	return json.Marshal(e)
}

// decodeId accepts a JSON string, a number, or an object carrying an
// "_id" or "id" field.
func decodeId(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	case '{':
		var obj struct {
			MongoId json.RawMessage `json:"_id"`
			Id      json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", false
		}
		if id, ok := decodeScalarId(obj.MongoId); ok {
			return id, true
		}
		return decodeScalarId(obj.Id)
	default:
		return decodeScalarId(raw)
	}
}

func decodeScalarId(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), true
	}
	return "", false
}

func parseIdentity(raw json.RawMessage) (string, error) {
	id, ok := decodeId(raw)
	if !ok {
		return "", ErrMissingId
	}
	return id, nil
}

func parseChatId(raw json.RawMessage) (string, error) {
	id, ok := decodeId(raw)
	if !ok {
		return "", ErrMissingChat
	}
	return id, nil
}

// parseTyping accepts either a bare chat id or {"chatId": ..., "user": ...}.
// The user is empty when the payload does not name one.
func parseTyping(raw json.RawMessage) (chatId, user string, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var p struct {
			ChatId json.RawMessage `json:"chatId"`
			User   json.RawMessage `json:"user"`
		}
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return "", "", err
		}
		chatId, ok := decodeId(p.ChatId)
		if !ok {
			return "", "", ErrMissingChat
		}
		user, _ = decodeId(p.User)
		return chatId, user, nil
	}

	chatId, err = parseChatId(trimmed)
	return chatId, "", err
}

func parseMessage(raw json.RawMessage) (Message, error) {
	var p struct {
		Chat   json.RawMessage `json:"chat"`
		Sender json.RawMessage `json:"sender"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Message{}, err
	}

	chat, ok := decodeId(p.Chat)
	if !ok {
		return Message{}, ErrMissingChat
	}
	sender, ok := decodeId(p.Sender)
	if !ok {
		return Message{}, ErrMissingSender
	}

	return Message{
		Chat:    chat,
		Sender:  sender,
		Payload: append(json.RawMessage(nil), raw...),
	}, nil
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
