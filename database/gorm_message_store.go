package database

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/social_chat/apperrors"
	"github.com/anjiri1684/social_chat/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrMessageNotFound = errors.New("message not found")

// GormMessageStore keeps messages in the relational database.
type GormMessageStore struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewGormMessageStore(db *gorm.DB, log *zap.Logger) *GormMessageStore {
	return &GormMessageStore{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for CreatedAt. Tests use it to get
// strictly increasing timestamps.
func (s *GormMessageStore) WithClock(now func() time.Time) *GormMessageStore {
	s.now = now
	return s
}

func (s *GormMessageStore) Append(ctx context.Context, msg *models.Message) error {
	msg.ID = newMessageID()
	msg.CreatedAt = s.now()
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		s.log.Error("failed to append message",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err),
		)
		return apperrors.StoreFailure(err)
	}
	return nil
}

func (s *GormMessageStore) History(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, apperrors.StoreFailure(err)
	}
	reverse(msgs)
	return msgs, nil
}

func (s *GormMessageStore) Page(ctx context.Context, conversationID string, page, limit int) (*MessagePage, error) {
	page, limit = NormalizePage(page, limit)
	offset := (page - 1) * limit

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error; err != nil {
		return nil, apperrors.StoreFailure(err)
	}

	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at desc, id desc").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, apperrors.StoreFailure(err)
	}
	reverse(msgs)

	return &MessagePage{
		Messages: msgs,
		Page:     page,
		Limit:    limit,
		HasMore:  int64(offset+len(msgs)) < total,
	}, nil
}

func (s *GormMessageStore) MarkDelivered(ctx context.Context, messageID string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND delivered_at IS NULL", messageID).
		Update("delivered_at", at.UTC())
	if res.Error != nil {
		return apperrors.StoreFailure(res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", messageID).Count(&count).Error; err != nil {
			return apperrors.StoreFailure(err)
		}
		if count == 0 {
			return ErrMessageNotFound
		}
	}
	return nil
}

func (s *GormMessageStore) MarkRead(ctx context.Context, conversationID, receiverID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, receiverID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, apperrors.StoreFailure(res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormMessageStore) DeleteConversation(ctx context.Context, conversationID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&models.Message{})
	if res.Error != nil {
		return 0, apperrors.StoreFailure(res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormMessageStore) Conversations(ctx context.Context, userID string) ([]ConversationAggregate, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at desc, id desc").
		Find(&msgs).Error
	if err != nil {
		return nil, apperrors.StoreFailure(err)
	}
	return foldConversations(userID, msgs), nil
}

func (s *GormMessageStore) UnreadCounts(ctx context.Context, before time.Time) (map[string]int64, error) {
	type row struct {
		ReceiverID string
		Total      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Select("receiver_id, COUNT(*) AS total").
		Where("is_read = ? AND created_at < ?", false, before.UTC()).
		Group("receiver_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.StoreFailure(err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ReceiverID] = r.Total
	}
	return counts, nil
}
