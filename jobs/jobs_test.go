package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/social_chat/database"
	"github.com/anjiri1684/social_chat/models"
	"github.com/anjiri1684/social_chat/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sentMail struct {
	to      string
	subject string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *recordingMailer) Send(_ context.Context, _, toEmail, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, sentMail{to: toEmail, subject: subject})
	return nil
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(database.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, true, zap.NewNop()))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestUnreadDigest(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	alice := models.User{Name: "Alice", Email: "alice@example.com", Password: "x", IsActive: true}
	bob := models.User{Name: "Bob", Email: "bob@example.com", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)
	a, b := alice.ID.String(), bob.ID.String()

	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store := database.NewGormMessageStore(db, zap.NewNop()).WithClock(func() time.Time { return created })
	for _, text := range []string{"one", "two"} {
		require.NoError(t, store.Append(ctx, &models.Message{
			ConversationID: models.ConversationID(a, b),
			SenderID:       a,
			ReceiverID:     b,
			Text:           text,
		}))
	}

	mailer := &recordingMailer{}
	digest := NewUnreadDigest(store, database.NewGormUserDirectory(db), mailer, time.Hour, zap.NewNop())

	digest.now = func() time.Time { return created.Add(30 * time.Minute) }
	sent, err := digest.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "messages are not old enough yet")

	digest.now = func() time.Time { return created.Add(2 * time.Hour) }
	sent, err = digest.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "bob@example.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].subject, "2 unread")

	sent, err = digest.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "unchanged count is not re-sent")

	_, err = store.MarkRead(ctx, models.ConversationID(a, b), b)
	require.NoError(t, err)
	sent, err = digest.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, digest.notified)
}

func TestUnreadDigest_MailFailureRetries(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	bob := models.User{Name: "Bob", Email: "bob@example.com", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&bob).Error)
	sender := uuid.NewString()

	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store := database.NewGormMessageStore(db, zap.NewNop()).WithClock(func() time.Time { return created })
	require.NoError(t, store.Append(ctx, &models.Message{
		ConversationID: models.ConversationID(sender, bob.ID.String()),
		SenderID:       sender,
		ReceiverID:     bob.ID.String(),
		Text:           "ping",
	}))

	mailer := &recordingMailer{fail: true}
	digest := NewUnreadDigest(store, database.NewGormUserDirectory(db), mailer, time.Hour, zap.NewNop())
	digest.now = func() time.Time { return created.Add(3 * time.Hour) }

	sent, err := digest.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	mailer.fail = false
	sent, err = digest.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

type stubConn struct{ closed chan struct{} }

func (c *stubConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}
func (c *stubConn) WriteJSON(interface{}) error { return nil }
func (c *stubConn) Close() error                { return nil }

func TestPresenceSweep(t *testing.T) {
	presence := websocket.NewMemoryRegistry()
	relay := websocket.NewRelay(nil, presence, zap.NewNop(), websocket.Options{})

	dead := websocket.NewClient(&stubConn{closed: make(chan struct{})})
	presence.Set("ghost", dead)
	_ = dead.Close()

	NewPresenceSweep(relay, zap.NewNop()).Run()

	_, ok := presence.Get("ghost")
	assert.False(t, ok)
}

func TestNewScheduler(t *testing.T) {
	relay := websocket.NewRelay(nil, websocket.NewMemoryRegistry(), zap.NewNop(), websocket.Options{})
	sweep := NewPresenceSweep(relay, zap.NewNop())

	c, err := NewScheduler(sweep, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	digest := NewUnreadDigest(nil, nil, &recordingMailer{}, time.Hour, zap.NewNop())
	c, err = NewScheduler(sweep, digest, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
}
