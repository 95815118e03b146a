package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationSeparator joins the two sorted participant ids.
const ConversationSeparator = "_"

var ErrMalformedConversationID = errors.New("malformed conversation id")

type Message struct {
	ID             string     `gorm:"type:varchar(36);primaryKey" bson:"_id" json:"id"`
	ConversationID string     `gorm:"size:100;not null;index:idx_messages_conversation_created,priority:1" bson:"conversation_id" json:"conversationId"`
	SenderID       string     `gorm:"size:64;not null;index" bson:"sender_id" json:"senderId"`
	ReceiverID     string     `gorm:"size:64;not null;index" bson:"receiver_id" json:"receiverId"`
	SenderName     string     `gorm:"size:255" bson:"sender_name" json:"senderName"`
	Text           string     `gorm:"type:text;not null" bson:"text" json:"text"`
	IsRead         bool       `gorm:"not null;default:false" bson:"is_read" json:"isRead"`
	DeliveredAt    *time.Time `bson:"delivered_at" json:"deliveredAt"`
	CreatedAt      time.Time  `gorm:"not null;index:idx_messages_conversation_created,priority:2" bson:"created_at" json:"createdAt"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ConversationID returns the identifier shared by both sides of a pair:
// the two ids sorted lexicographically and joined.
func ConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ConversationSeparator + b
}

// Participants splits a conversation id back into its two user ids.
func Participants(conversationID string) (string, string, error) {
	a, b, ok := strings.Cut(conversationID, ConversationSeparator)
	if !ok || a == "" || b == "" || strings.Contains(b, ConversationSeparator) {
		return "", "", ErrMalformedConversationID
	}
	if ConversationID(a, b) != conversationID {
		return "", "", ErrMalformedConversationID
	}
	return a, b, nil
}

// Involves reports whether userID is one of the two participants.
func Involves(conversationID, userID string) bool {
	a, b, err := Participants(conversationID)
	if err != nil {
		return false
	}
	return userID == a || userID == b
}

// Peer returns the other participant of the message relative to userID.
func (m *Message) Peer(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
