package websocket

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const PresenceBucket = "CHAT_PRESENCE"

// PresenceRecord is the value stored per online user in the KV bucket.
type PresenceRecord struct {
	Instance string `json:"instance"`
	ClientID string `json:"clientId"`
	Since    int64  `json:"since"`
}

// NATSRegistry keeps local handles in the wrapped registry and mirrors who is
// online into a JetStream KeyValue bucket so other relay instances can see it.
// Mirror failures are logged; local presence stays authoritative for delivery.
type NATSRegistry struct {
	Registry
	kv       nats.KeyValue
	instance string
	log      *zap.Logger
}

// OpenPresenceBucket binds to the presence bucket, creating it on first use.
func OpenPresenceBucket(nc *nats.Conn) (nats.KeyValue, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	kv, err := js.KeyValue(PresenceBucket)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:  PresenceBucket,
		History: 1,
		Storage: nats.MemoryStorage,
	})
}

func NewNATSRegistry(local Registry, kv nats.KeyValue, instance string, log *zap.Logger) *NATSRegistry {
	return &NATSRegistry{Registry: local, kv: kv, instance: instance, log: log}
}

func (r *NATSRegistry) Set(userID string, c *Client) {
	r.Registry.Set(userID, c)

	data, err := json.Marshal(PresenceRecord{Instance: r.instance, ClientID: c.ID, Since: time.Now().Unix()})
	if err != nil {
		return
	}
	if _, err := r.kv.Put(userID, data); err != nil {
		r.log.Warn("failed to publish presence", zap.String("user_id", userID), zap.Error(err))
	}
}

func (r *NATSRegistry) Remove(userID string) {
	r.Registry.Remove(userID)
	r.forget(userID, "")
}

func (r *NATSRegistry) Release(userID string, c *Client) bool {
	if !r.Registry.Release(userID, c) {
		return false
	}
	r.forget(userID, c.ID)
	return true
}

// Online reports whether any instance has userID registered.
func (r *NATSRegistry) Online(userID string) (*PresenceRecord, bool) {
	entry, err := r.kv.Get(userID)
	if err != nil {
		return nil, false
	}
	var rec PresenceRecord
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// forget clears the mirrored entry. With a clientID it leaves records written
// by a newer connection, possibly on another instance, untouched.
func (r *NATSRegistry) forget(userID, clientID string) {
	if clientID != "" {
		if rec, ok := r.Online(userID); ok && rec.ClientID != clientID {
			return
		}
	}
	if err := r.kv.Delete(userID); err != nil {
		r.log.Warn("failed to clear presence", zap.String("user_id", userID), zap.Error(err))
	}
}
