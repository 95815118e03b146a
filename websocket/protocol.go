package websocket

import (
	"encoding/json"
	"time"
)

// Frame types on the wire.
const (
	TypeJoin       = "join"
	TypeMessage    = "message"
	TypeTyping     = "typing"
	TypeHistory    = "history"
	TypeUserStatus = "user_status"
	TypeError      = "error"
)

// Error codes carried by outbound error frames.
const (
	CodeSendFailed         = "send_failed"
	CodeInvalidMessage     = "invalid_message"
	CodeForbidden          = "forbidden"
	CodeHistoryUnavailable = "history_unavailable"
)

// inboundFrame is the union of every client frame; Type selects which fields matter.
type inboundFrame struct {
	Type         string `json:"type"`
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
	UserName     string `json:"userName"`
	Text         string `json:"text"`
	SenderID     string `json:"senderId"`
	SenderName   string `json:"senderName"`
	// Timestamp is client supplied; clients send either ISO strings or epoch millis.
	Timestamp json.RawMessage `json:"timestamp"`
}

// clientTimestamp renders the inbound timestamp for echoing in error frames.
func (f inboundFrame) clientTimestamp() string {
	if len(f.Timestamp) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.Timestamp, &s); err == nil {
		return s
	}
	return string(f.Timestamp)
}

// User ids may not contain models.ConversationSeparator; otherwise two
// different pairs could map to the same conversation id.
type joinRequest struct {
	UserID       string `validate:"required,max=64,excludes=_"`
	TargetUserID string `validate:"required,max=64,excludes=_"`
	UserName     string `validate:"max=255"`
}

type messageRequest struct {
	SenderID     string `validate:"required,max=64,excludes=_"`
	TargetUserID string `validate:"required,max=64,excludes=_"`
	SenderName   string `validate:"max=255"`
	Text         string `validate:"required,max=4000"`
}

type HistoryItem struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Timestamp  time.Time `json:"timestamp"`
}

type HistoryFrame struct {
	Type     string        `json:"type"`
	Messages []HistoryItem `json:"messages"`
}

type UserStatusFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type MessageFrame struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Timestamp  time.Time `json:"timestamp"`
	Delivered  bool      `json:"delivered"`
}

type TypingFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type ErrorFrame struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

func userStatus(userID string, online bool) UserStatusFrame {
	return UserStatusFrame{Type: TypeUserStatus, UserID: userID, IsOnline: online}
}

func errorFrame(code, message, clientTimestamp string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Code: code, Message: message, Timestamp: clientTimestamp}
}
