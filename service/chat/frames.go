package chat

import (
	"encoding/json"
	"fmt"

	"RentChat/logger"
	"RentChat/tools/decode"
	"RentChat/tools/errs"
)

// EventType is the closed set of channel events. Every frame on the wire is
// {"type": "...", "payload": {...}}; unknown types are rejected at dispatch.
type EventType string

const (
	// client -> server
	EventJoinConversation   EventType = "join_conversation"
	EventLeaveConversation  EventType = "leave_conversation"
	EventSendMessage        EventType = "send_message"
	EventTyping             EventType = "typing"
	EventStopTyping         EventType = "stop_typing"
	EventMarkAsRead         EventType = "mark_as_read"
	EventRequestOnlineUsers EventType = "request_online_users"
	EventSubscribePresence  EventType = "subscribe_presence"
	EventPing               EventType = "ping"

	// server -> client
	EventConnAck           EventType = "conn_ack"
	EventPong              EventType = "pong"
	EventNewMessage        EventType = "new_message"
	EventReadReceiptUpdate EventType = "read_receipt_update"
	EventUserOnline        EventType = "user_online"
	EventUserOffline       EventType = "user_offline"
	EventOnlineUsers       EventType = "online_users"
	EventError             EventType = "error"
)

// Frame is an inbound channel frame; the payload stays dynamic until the
// handler decodes it into its typed struct.
type Frame struct {
	Type    EventType      `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("frame missing type")
	}
	return f, nil
}

// DecodePayload decodes a frame payload into the handler's typed struct.
func DecodePayload[T any](f *Frame) (*T, error) {
	if f == nil || f.Payload == nil {
		return nil, errs.ErrValidation.WithDetail("missing payload")
	}
	out, err := decode.DecodeMap[T](f.Payload)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail(err.Error())
	}
	return out, nil
}

// ---- typed client payloads ----

type JoinPayload struct {
	ConversationID string `json:"conversation_id"`
}

type SendMessagePayload struct {
	ConversationID string `json:"conversation_id"` // either this...
	PeerID         string `json:"peer_id"`         // ...or the peer on first contact
	Text           string `json:"text"`
}

type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
}

type MarkReadPayload struct {
	ConversationID string `json:"conversation_id"`
}

// ---- typed server payloads ----

type ConnAckPayload struct {
	ConnID         string `json:"conn_id"`
	HeartbeatSec   int    `json:"heartbeat_sec"`
	ServerTime     int64  `json:"server_time"`
	TypingStaleSec int    `json:"typing_stale_sec"` // clients must treat typing as stale after this
}

type TypingEventPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	ExpiresAt      int64  `json:"expires_at,omitempty"` // unix ms, advisory
}

type ReadReceiptPayload struct {
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
	Ts             int64  `json:"ts"`
}

type PresencePayload struct {
	UserID string `json:"user_id"`
}

type OnlineUsersPayload struct {
	Users []string `json:"users"`
}

type ErrorPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type outFrame struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// BuildEvent marshals an outbound frame. Returns nil on marshal failure;
// senders drop nil frames.
func BuildEvent(t EventType, payload any) []byte {
	data, err := json.Marshal(outFrame{Type: t, Payload: payload})
	if err != nil {
		logger.Errorf("[frames] marshal %s: %v", t, err)
		return nil
	}
	return data
}

// BuildError maps an error onto the taxonomy and wraps it in an error frame
// for the offending connection only.
func BuildError(err error) []byte {
	code := errs.CodeOf(err)
	msg := err.Error()
	return BuildEvent(EventError, ErrorPayload{Code: code, Msg: msg})
}
