package services

import (
	"context"
	"strings"

	"github.com/anjiri1684/social_chat/apperrors"
	"github.com/anjiri1684/social_chat/database"
	"github.com/anjiri1684/social_chat/models"
	"go.uber.org/zap"
)

// HistoryCap is the number of messages returned by the unpaged history query.
const HistoryCap = 100

type ConversationSummary struct {
	ConversationID string               `json:"conversationId"`
	OtherUser      models.PublicProfile `json:"otherUser"`
	LastMessage    models.Message       `json:"lastMessage"`
	UnreadCount    int64                `json:"unreadCount"`
}

// ConversationService answers the REST side of the chat: summaries, history
// and read/delete maintenance. It never touches live sockets.
type ConversationService struct {
	store database.MessageStore
	users database.UserDirectory
	log   *zap.Logger
}

func NewConversationService(store database.MessageStore, users database.UserDirectory, log *zap.Logger) *ConversationService {
	return &ConversationService{store: store, users: users, log: log}
}

// ListConversations returns one summary per conversation touching userID,
// most recent first. Conversations whose peer no longer resolves are dropped.
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	aggregates, err := s.store.Conversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	peerIDs := make([]string, 0, len(aggregates))
	for i := range aggregates {
		peerIDs = append(peerIDs, aggregates[i].LastMessage.Peer(userID))
	}
	peers, err := s.users.Users(ctx, peerIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(aggregates))
	for i, agg := range aggregates {
		peer, ok := peers[peerIDs[i]]
		if !ok {
			s.log.Debug("skipping conversation with unknown peer",
				zap.String("conversation_id", agg.ConversationID),
				zap.String("peer_id", peerIDs[i]),
			)
			continue
		}
		summaries = append(summaries, ConversationSummary{
			ConversationID: agg.ConversationID,
			OtherUser:      peer.Profile(),
			LastMessage:    agg.LastMessage,
			UnreadCount:    agg.UnreadCount,
		})
	}
	return summaries, nil
}

// GetHistory returns the newest HistoryCap messages between the two users,
// oldest first. The caller must be one of them.
func (s *ConversationService) GetHistory(ctx context.Context, callerID, userID, targetUserID string) ([]models.Message, error) {
	conversationID, err := s.authorizePair(callerID, userID, targetUserID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.History(ctx, conversationID, HistoryCap)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func (s *ConversationService) GetHistoryPage(ctx context.Context, callerID, userID, targetUserID string, page, limit int) (*database.MessagePage, error) {
	conversationID, err := s.authorizePair(callerID, userID, targetUserID)
	if err != nil {
		return nil, err
	}
	result, err := s.store.Page(ctx, conversationID, page, limit)
	if err != nil {
		return nil, err
	}
	if result.Messages == nil {
		result.Messages = []models.Message{}
	}
	return result, nil
}

// MarkRead flags every message addressed to callerID in the conversation as
// read and reports how many changed.
func (s *ConversationService) MarkRead(ctx context.Context, callerID, conversationID string) (int64, error) {
	if err := authorizeConversation(callerID, conversationID); err != nil {
		return 0, err
	}
	n, err := s.store.MarkRead(ctx, conversationID, callerID)
	if err != nil {
		return 0, err
	}
	s.log.Debug("conversation marked read",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", callerID),
		zap.Int64("updated", n),
	)
	return n, nil
}

func (s *ConversationService) DeleteConversation(ctx context.Context, callerID, conversationID string) (int64, error) {
	if err := authorizeConversation(callerID, conversationID); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteConversation(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	s.log.Info("conversation deleted",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", callerID),
		zap.Int64("messages", n),
	)
	return n, nil
}

func (s *ConversationService) authorizePair(callerID, userID, targetUserID string) (string, error) {
	userID = strings.TrimSpace(userID)
	targetUserID = strings.TrimSpace(targetUserID)
	if userID == "" || targetUserID == "" {
		return "", apperrors.InvalidArg("userId and targetUserId are required")
	}
	if callerID != userID && callerID != targetUserID {
		return "", apperrors.ErrNotParticipant
	}
	return models.ConversationID(userID, targetUserID), nil
}

func authorizeConversation(callerID, conversationID string) error {
	if _, _, err := models.Participants(conversationID); err != nil {
		return apperrors.ErrInvalidConversationID
	}
	if !models.Involves(conversationID, callerID) {
		return apperrors.ErrNotParticipant
	}
	return nil
}
