package jobs

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	PresenceSweepSchedule = "* * * * *"
	UnreadDigestSchedule  = "0 * * * *"
)

// NewScheduler registers the sweep and, when digest is non-nil, the unread
// digest. The caller starts and stops the returned cron.
func NewScheduler(sweep *PresenceSweep, digest *UnreadDigest, log *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(PresenceSweepSchedule, sweep.Run); err != nil {
		return nil, err
	}
	if digest != nil {
		if _, err := c.AddFunc(UnreadDigestSchedule, digest.Run); err != nil {
			return nil, err
		}
	}
	log.Info("cron jobs scheduled", zap.Int("jobs", len(c.Entries())))
	return c, nil
}
