package database

import (
	"context"
	"time"

	"github.com/anjiri1684/social_chat/apperrors"
	"github.com/anjiri1684/social_chat/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	messagesCollection  = "messages"
	defaultMongoTimeout = 10 * time.Second
)

// OpenMongo connects and pings the server before handing back the database.
func OpenMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultMongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client.Database(database), nil
}

// MongoMessageStore keeps messages in a single collection, one document per message.
type MongoMessageStore struct {
	coll *mongo.Collection
	log  *zap.Logger
	now  func() time.Time
}

func NewMongoMessageStore(db *mongo.Database, log *zap.Logger) *MongoMessageStore {
	return &MongoMessageStore{
		coll: db.Collection(messagesCollection),
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the indexes history and summary queries rely on.
func (s *MongoMessageStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "is_read", Value: 1}}},
	})
	return err
}

func (s *MongoMessageStore) Append(ctx context.Context, msg *models.Message) error {
	msg.ID = newMessageID()
	msg.CreatedAt = s.now().Truncate(time.Millisecond)
	if _, err := s.coll.InsertOne(ctx, msg); err != nil {
		s.log.Error("failed to append message",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err),
		)
		return apperrors.StoreFailure(err)
	}
	return nil
}

func (s *MongoMessageStore) History(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	msgs, err := s.find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

func (s *MongoMessageStore) Page(ctx context.Context, conversationID string, page, limit int) (*MessagePage, error) {
	page, limit = NormalizePage(page, limit)
	offset := (page - 1) * limit
	filter := bson.M{"conversation_id": conversationID}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, apperrors.StoreFailure(err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	msgs, err := s.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	reverse(msgs)

	return &MessagePage{
		Messages: msgs,
		Page:     page,
		Limit:    limit,
		HasMore:  int64(offset+len(msgs)) < total,
	}, nil
}

func (s *MongoMessageStore) MarkDelivered(ctx context.Context, messageID string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": messageID, "delivered_at": nil},
		bson.M{"$set": bson.M{"delivered_at": at.UTC()}},
	)
	if err != nil {
		return apperrors.StoreFailure(err)
	}
	if res.MatchedCount == 0 {
		n, err := s.coll.CountDocuments(ctx, bson.M{"_id": messageID})
		if err != nil {
			return apperrors.StoreFailure(err)
		}
		if n == 0 {
			return ErrMessageNotFound
		}
	}
	return nil
}

func (s *MongoMessageStore) MarkRead(ctx context.Context, conversationID, receiverID string) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "receiver_id": receiverID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, apperrors.StoreFailure(err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoMessageStore) DeleteConversation(ctx context.Context, conversationID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	if err != nil {
		return 0, apperrors.StoreFailure(err)
	}
	return res.DeletedCount, nil
}

func (s *MongoMessageStore) Conversations(ctx context.Context, userID string) ([]ConversationAggregate, error) {
	unreadForUser := bson.M{"$cond": bson.A{
		bson.M{"$and": bson.A{
			bson.M{"$eq": bson.A{"$receiver_id", userID}},
			bson.M{"$eq": bson.A{"$is_read", false}},
		}},
		1,
		0,
	}}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"sender_id": userID},
			bson.M{"receiver_id": userID},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$conversation_id",
			"last_message": bson.M{"$first": "$$ROOT"},
			"unread_count": bson.M{"$sum": unreadForUser},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message.created_at", Value: -1}, {Key: "last_message._id", Value: -1}}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperrors.StoreFailure(err)
	}
	defer cursor.Close(ctx)

	var out []ConversationAggregate
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperrors.StoreFailure(err)
	}
	return out, nil
}

func (s *MongoMessageStore) UnreadCounts(ctx context.Context, before time.Time) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"is_read": false, "created_at": bson.M{"$lt": before.UTC()}}}},
		{{Key: "$group", Value: bson.M{"_id": "$receiver_id", "total": bson.M{"$sum": 1}}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperrors.StoreFailure(err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ReceiverID string `bson:"_id"`
		Total      int64  `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, apperrors.StoreFailure(err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ReceiverID] = r.Total
	}
	return counts, nil
}

func (s *MongoMessageStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Message, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.StoreFailure(err)
	}
	defer cursor.Close(ctx)

	msgs := []models.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, apperrors.StoreFailure(err)
	}
	return msgs, nil
}
