package jobs

import (
	"github.com/anjiri1684/social_chat/websocket"
	"go.uber.org/zap"
)

// PresenceSweep drops registry entries left behind by sockets that died
// without a clean close.
type PresenceSweep struct {
	relay *websocket.Relay
	log   *zap.Logger
}

func NewPresenceSweep(relay *websocket.Relay, log *zap.Logger) *PresenceSweep {
	return &PresenceSweep{relay: relay, log: log}
}

func (j *PresenceSweep) Run() {
	if removed := j.relay.SweepStale(); removed > 0 {
		j.log.Info("removed stale presence entries", zap.Int("count", removed))
	}
}
