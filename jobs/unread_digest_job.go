package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anjiri1684/social_chat/database"
	"github.com/anjiri1684/social_chat/notifications"
	"go.uber.org/zap"
)

// UnreadDigest emails users who have had unread messages for longer than
// After. A user is emailed again only when their unread count changes.
type UnreadDigest struct {
	store  database.MessageStore
	users  database.UserDirectory
	mailer notifications.Mailer
	log    *zap.Logger
	after  time.Duration
	now    func() time.Time

	mu       sync.Mutex
	notified map[string]int64
}

func NewUnreadDigest(store database.MessageStore, users database.UserDirectory, mailer notifications.Mailer, after time.Duration, log *zap.Logger) *UnreadDigest {
	return &UnreadDigest{
		store:    store,
		users:    users,
		mailer:   mailer,
		log:      log,
		after:    after,
		now:      time.Now,
		notified: make(map[string]int64),
	}
}

func (j *UnreadDigest) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := j.RunOnce(ctx); err != nil {
		j.log.Error("unread digest failed", zap.Error(err))
	}
}

// RunOnce sends the pending digests and returns how many were sent.
func (j *UnreadDigest) RunOnce(ctx context.Context) (int, error) {
	j.log.Debug("running job: unread digest")

	counts, err := j.store.UnreadCounts(ctx, j.now().Add(-j.after))
	if err != nil {
		return 0, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for userID := range j.notified {
		if _, ok := counts[userID]; !ok {
			delete(j.notified, userID)
		}
	}

	pending := make([]string, 0, len(counts))
	for userID, n := range counts {
		if j.notified[userID] != n {
			pending = append(pending, userID)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	users, err := j.users.Users(ctx, pending)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, userID := range pending {
		user, ok := users[userID]
		if !ok {
			continue
		}
		n := counts[userID]
		subject := fmt.Sprintf("You have %d unread message(s)", n)
		body := fmt.Sprintf("<h1>Unread messages</h1><p>Hi %s,</p><p>You have %d unread message(s) waiting in your conversations.</p>", user.Name, n)
		if err := j.mailer.Send(ctx, user.Name, user.Email, subject, body); err != nil {
			j.log.Warn("failed to send unread digest", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		j.notified[userID] = n
		sent++
	}

	j.log.Info("unread digest sent", zap.Int("emails", sent))
	return sent, nil
}
