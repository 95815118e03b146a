package database

import (
	"context"
	"time"

	"github.com/anjiri1684/social_chat/models"
	"github.com/google/uuid"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 50
)

// MessageStore is the durable record of chat messages. It is the only
// component that mutates IsRead and DeliveredAt.
type MessageStore interface {
	// Append assigns ID and CreatedAt and writes the record.
	Append(ctx context.Context, msg *models.Message) error
	// History returns the newest limit messages of a conversation, oldest first.
	History(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	// Page returns one page counted back from the newest message, oldest first.
	Page(ctx context.Context, conversationID string, page, limit int) (*MessagePage, error)
	MarkDelivered(ctx context.Context, messageID string, at time.Time) error
	MarkRead(ctx context.Context, conversationID, receiverID string) (int64, error)
	DeleteConversation(ctx context.Context, conversationID string) (int64, error)
	// Conversations groups every message touching userID by conversation.
	Conversations(ctx context.Context, userID string) ([]ConversationAggregate, error)
	// UnreadCounts returns, per receiver, the number of unread messages created before cutoff.
	UnreadCounts(ctx context.Context, before time.Time) (map[string]int64, error)
}

type MessagePage struct {
	Messages []models.Message `json:"messages"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	HasMore  bool             `json:"hasMore"`
}

type ConversationAggregate struct {
	ConversationID string         `bson:"_id" json:"conversationId"`
	LastMessage    models.Message `bson:"last_message" json:"lastMessage"`
	UnreadCount    int64          `bson:"unread_count" json:"unreadCount"`
}

// NormalizePage clamps paging parameters to the supported range.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

// newMessageID returns a time-ordered UUIDv7, monotonic within the process.
// Stores break created_at ties on it so history keeps append order.
func newMessageID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func reverse(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

// foldConversations expects messages sorted newest first.
func foldConversations(userID string, msgs []models.Message) []ConversationAggregate {
	index := make(map[string]int)
	var out []ConversationAggregate
	for _, m := range msgs {
		i, seen := index[m.ConversationID]
		if !seen {
			i = len(out)
			index[m.ConversationID] = i
			out = append(out, ConversationAggregate{ConversationID: m.ConversationID, LastMessage: m})
		}
		if m.ReceiverID == userID && !m.IsRead {
			out[i].UnreadCount++
		}
	}
	return out
}
