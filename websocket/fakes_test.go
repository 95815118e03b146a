package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/anjiri1684/social_chat/apperrors"
	"github.com/anjiri1684/social_chat/database"
	"github.com/anjiri1684/social_chat/models"
	"github.com/google/uuid"
)

// fakeConn records every outbound frame as a decoded JSON object.
type fakeConn struct {
	inbound chan []byte
	done    chan struct{}
	once    sync.Once

	mu         sync.Mutex
	frames     []map[string]interface{}
	failWrites bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 64), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.inbound:
		if !ok {
			return 0, nil, io.EOF
		}
		return 1, data, nil
	case <-c.done:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("broken pipe")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) setFailWrites(fail bool) {
	c.mu.Lock()
	c.failWrites = fail
	c.mu.Unlock()
}

func (c *fakeConn) all() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) ofType(typ string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, f := range c.all() {
		if f["type"] == typ {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

// memStore is an in-memory MessageStore with switchable failures.
type memStore struct {
	mu         sync.Mutex
	msgs       []models.Message
	clock      time.Time
	failAppend bool
	appendLog  []string
}

func newMemStore() *memStore {
	return &memStore{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

var _ database.MessageStore = (*memStore)(nil)

func (s *memStore) Append(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend {
		return apperrors.StoreFailure(errors.New("connection refused"))
	}
	s.clock = s.clock.Add(time.Second)
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.clock
	s.msgs = append(s.msgs, *msg)
	s.appendLog = append(s.appendLog, msg.ID)
	return nil
}

func (s *memStore) seed(from, to, text string) models.Message {
	msg := &models.Message{
		ConversationID: models.ConversationID(from, to),
		SenderID:       from,
		ReceiverID:     to,
		SenderName:     from,
		Text:           text,
	}
	_ = s.Append(context.Background(), msg)
	return *msg
}

func (s *memStore) byID(id string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.ID == id {
			return m, true
		}
	}
	return models.Message{}, false
}

func (s *memStore) conversation(conversationID string) []models.Message {
	var out []models.Message
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *memStore) History(_ context.Context, conversationID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.conversation(conversationID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *memStore) Page(ctx context.Context, conversationID string, page, limit int) (*database.MessagePage, error) {
	page, limit = database.NormalizePage(page, limit)
	msgs, _ := s.History(ctx, conversationID, page*limit)
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return &database.MessagePage{Messages: msgs, Page: page, Limit: limit}, nil
}

func (s *memStore) MarkDelivered(_ context.Context, messageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.msgs {
		if s.msgs[i].ID == messageID {
			if s.msgs[i].DeliveredAt == nil {
				t := at
				s.msgs[i].DeliveredAt = &t
			}
			return nil
		}
	}
	return database.ErrMessageNotFound
}

func (s *memStore) MarkRead(_ context.Context, conversationID, receiverID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.ConversationID == conversationID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteConversation(_ context.Context, conversationID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.msgs[:0]
	var n int64
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			n++
			continue
		}
		kept = append(kept, m)
	}
	s.msgs = kept
	return n, nil
}

func (s *memStore) Conversations(context.Context, string) ([]database.ConversationAggregate, error) {
	return nil, nil
}

func (s *memStore) UnreadCounts(context.Context, time.Time) (map[string]int64, error) {
	return map[string]int64{}, nil
}
