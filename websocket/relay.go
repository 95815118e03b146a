package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	config "github.com/anjiri1684/social_chat/configs"
	"github.com/anjiri1684/social_chat/database"
	"github.com/anjiri1684/social_chat/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const DefaultHistoryLimit = 50

type Options struct {
	// HistoryLimit caps the messages replayed on join.
	HistoryLimit int
	// OfflineFanout is config.FanoutAll or config.FanoutPeers.
	OfflineFanout string
}

// Relay mediates join, message, typing and close events between the two
// sides of a conversation. Each connection is served by its own goroutine,
// so events from one socket are handled strictly in arrival order.
type Relay struct {
	store    database.MessageStore
	presence Registry
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	historyLimit int
	fanout       string

	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewRelay(store database.MessageStore, presence Registry, log *zap.Logger, opts Options) *Relay {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.OfflineFanout != config.FanoutPeers {
		opts.OfflineFanout = config.FanoutAll
	}
	return &Relay{
		store:        store,
		presence:     presence,
		log:          log,
		validate:     validator.New(),
		now:          func() time.Time { return time.Now().UTC() },
		historyLimit: opts.HistoryLimit,
		fanout:       opts.OfflineFanout,
		clients:      make(map[*Client]struct{}),
	}
}

func (r *Relay) Presence() Registry { return r.presence }

// Serve runs one connection until it is closed. boundUserID is the identity
// proven by the upgrade request, or empty when the socket is anonymous.
func (r *Relay) Serve(ctx context.Context, conn Conn, boundUserID string) {
	s := &session{relay: r, client: NewClient(conn), boundUserID: boundUserID}
	r.track(s.client)
	defer s.close()

	for {
		data, err := s.client.read()
		if err != nil {
			if s.client.IsOpen() {
				r.log.Debug("websocket read ended", zap.String("client_id", s.client.ID), zap.Error(err))
			}
			return
		}
		s.handle(ctx, data)
	}
}

// Shutdown closes every live connection; their Serve loops then run the
// normal close path.
func (r *Relay) Shutdown() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, c := range clients {
		_ = c.Close()
	}
	r.log.Info("relay connections closed", zap.Int("count", len(clients)))
}

// SweepStale drops registry entries whose socket is no longer open and
// announces those users as offline. It returns the number removed.
func (r *Relay) SweepStale() int {
	removed := 0
	for userID, c := range Stale(r.presence) {
		if r.presence.Release(userID, c) {
			removed++
			r.notifyOffline(userID)
		}
	}
	return removed
}

func (r *Relay) track(c *Client) {
	r.mu.Lock()
	r.clients[c] = struct{}{}
	r.mu.Unlock()
}

func (r *Relay) untrack(c *Client) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
}

// livePeer returns the registered connection for userID if it is still open.
func (r *Relay) livePeer(userID string) (*Client, bool) {
	peer, ok := r.presence.Get(userID)
	if !ok || !peer.IsOpen() {
		return nil, false
	}
	return peer, true
}

func (r *Relay) notifyOffline(userID string) {
	frame := userStatus(userID, false)
	for _, c := range r.presence.Snapshot() {
		if r.fanout == config.FanoutPeers && c.TargetUserID() != userID {
			continue
		}
		if err := c.Send(frame); err != nil {
			r.log.Debug("offline notification not delivered",
				zap.String("user_id", userID),
				zap.String("client_id", c.ID),
				zap.Error(err),
			)
		}
	}
}

type sessionState int

const (
	stateUnjoined sessionState = iota
	stateJoined
	stateClosed
)

// session is the per-connection state machine: Unjoined -> Joined -> Closed.
type session struct {
	relay       *Relay
	client      *Client
	boundUserID string

	state        sessionState
	userID       string
	targetUserID string
	userName     string
}

func (s *session) handle(ctx context.Context, data []byte) {
	log := s.relay.log

	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Warn("ignoring malformed frame", zap.String("client_id", s.client.ID), zap.Error(err))
		return
	}

	switch f.Type {
	case TypeJoin:
		s.join(ctx, f)
	case TypeMessage:
		s.message(ctx, f)
	case TypeTyping:
		s.typing(f)
	default:
		log.Warn("ignoring unknown frame type", zap.String("client_id", s.client.ID), zap.String("type", f.Type))
	}
}

func (s *session) join(ctx context.Context, f inboundFrame) {
	r := s.relay
	if s.state != stateUnjoined {
		r.log.Warn("ignoring join on joined connection", zap.String("user_id", s.userID))
		return
	}

	req := joinRequest{
		UserID:       strings.TrimSpace(f.UserID),
		TargetUserID: strings.TrimSpace(f.TargetUserID),
		UserName:     strings.TrimSpace(f.UserName),
	}
	if err := r.validate.Struct(req); err != nil {
		r.log.Warn("ignoring invalid join", zap.String("client_id", s.client.ID), zap.Error(err))
		return
	}
	if s.boundUserID != "" && req.UserID != s.boundUserID {
		r.log.Warn("join identity does not match token",
			zap.String("claimed", req.UserID),
			zap.String("bound", s.boundUserID),
		)
		_ = s.client.Send(errorFrame(CodeForbidden, "userId does not match the authenticated user", ""))
		return
	}

	s.userID, s.targetUserID, s.userName = req.UserID, req.TargetUserID, req.UserName
	s.client.setIdentity(s.userID, s.targetUserID)
	r.presence.Set(s.userID, s.client)
	s.state = stateJoined
	r.log.Info("user joined",
		zap.String("user_id", s.userID),
		zap.String("target_user_id", s.targetUserID),
		zap.String("client_id", s.client.ID),
	)

	conversationID := models.ConversationID(s.userID, s.targetUserID)
	history, err := r.store.History(ctx, conversationID, r.historyLimit)
	if err != nil {
		r.log.Error("failed to load history", zap.String("conversation_id", conversationID), zap.Error(err))
		_ = s.client.Send(errorFrame(CodeHistoryUnavailable, "message history could not be loaded", ""))
	} else if len(history) > 0 {
		items := make([]HistoryItem, 0, len(history))
		for _, m := range history {
			items = append(items, HistoryItem{
				ID:         m.ID,
				Text:       m.Text,
				SenderID:   m.SenderID,
				SenderName: m.SenderName,
				Timestamp:  m.CreatedAt,
			})
		}
		_ = s.client.Send(HistoryFrame{Type: TypeHistory, Messages: items})
	}

	peer, online := r.livePeer(s.targetUserID)
	_ = s.client.Send(userStatus(s.targetUserID, online))
	if online {
		if err := peer.Send(userStatus(s.userID, true)); err != nil {
			r.log.Debug("online notification not delivered", zap.String("user_id", s.targetUserID), zap.Error(err))
		}
	}
}

func (s *session) message(ctx context.Context, f inboundFrame) {
	r := s.relay
	if s.state != stateJoined {
		r.log.Warn("ignoring message before join", zap.String("client_id", s.client.ID))
		return
	}

	senderID := strings.TrimSpace(f.SenderID)
	if senderID == "" {
		senderID = s.userID
	}
	req := messageRequest{
		SenderID:     senderID,
		TargetUserID: strings.TrimSpace(f.TargetUserID),
		SenderName:   strings.TrimSpace(f.SenderName),
		Text:         strings.TrimSpace(f.Text),
	}
	if req.TargetUserID == "" {
		req.TargetUserID = s.targetUserID
	}
	if req.SenderName == "" {
		req.SenderName = s.userName
	}
	if err := r.validate.Struct(req); err != nil {
		r.log.Warn("rejecting invalid message", zap.String("user_id", s.userID), zap.Error(err))
		_ = s.client.Send(errorFrame(CodeInvalidMessage, "text must be 1 to 4000 characters and ids must not contain '_'", f.clientTimestamp()))
		return
	}
	if req.SenderID != s.userID {
		r.log.Warn("message sender does not match joined user",
			zap.String("sender_id", req.SenderID),
			zap.String("user_id", s.userID),
		)
		_ = s.client.Send(errorFrame(CodeForbidden, "senderId does not match the joined user", f.clientTimestamp()))
		return
	}

	msg := &models.Message{
		ConversationID: models.ConversationID(req.SenderID, req.TargetUserID),
		SenderID:       req.SenderID,
		ReceiverID:     req.TargetUserID,
		SenderName:     req.SenderName,
		Text:           req.Text,
	}
	if err := r.store.Append(ctx, msg); err != nil {
		r.log.Error("failed to save message",
			zap.String("user_id", s.userID),
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err),
		)
		_ = s.client.Send(errorFrame(CodeSendFailed, "message could not be saved", f.clientTimestamp()))
		return
	}

	delivered := s.deliver(ctx, msg)

	echo := MessageFrame{
		Type:       TypeMessage,
		ID:         msg.ID,
		Text:       msg.Text,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Timestamp:  msg.CreatedAt,
		Delivered:  delivered,
	}
	if err := s.client.Send(echo); err != nil {
		r.log.Debug("echo not delivered", zap.String("user_id", s.userID), zap.Error(err))
	}
}

// deliver forwards a persisted message to the receiver's live socket and
// records the delivery time. A send failure only means the peer is offline.
func (s *session) deliver(ctx context.Context, msg *models.Message) bool {
	r := s.relay
	peer, ok := r.livePeer(msg.ReceiverID)
	if !ok {
		return false
	}

	frame := MessageFrame{
		Type:       TypeMessage,
		ID:         msg.ID,
		Text:       msg.Text,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Timestamp:  msg.CreatedAt,
		Delivered:  true,
	}
	if err := peer.Send(frame); err != nil {
		r.log.Debug("peer delivery failed", zap.String("receiver_id", msg.ReceiverID), zap.Error(err))
		return false
	}

	at := r.now()
	if err := r.store.MarkDelivered(ctx, msg.ID, at); err != nil {
		r.log.Warn("failed to record delivery", zap.String("message_id", msg.ID), zap.Error(err))
	} else {
		msg.DeliveredAt = &at
	}
	return true
}

func (s *session) typing(f inboundFrame) {
	r := s.relay
	if s.state != stateJoined {
		r.log.Warn("ignoring typing before join", zap.String("client_id", s.client.ID))
		return
	}

	userID := strings.TrimSpace(f.UserID)
	if userID == "" {
		userID = s.userID
	}
	if userID != s.userID {
		_ = s.client.Send(errorFrame(CodeForbidden, "userId does not match the joined user", ""))
		return
	}
	target := strings.TrimSpace(f.TargetUserID)
	if target == "" {
		target = s.targetUserID
	}

	if peer, ok := r.livePeer(target); ok {
		_ = peer.Send(TypingFrame{Type: TypeTyping, UserID: userID})
	}
}

// close is idempotent. Only a connection that still owns the user's registry
// entry announces the user as offline; a replaced connection leaves quietly.
func (s *session) close() {
	if s.state == stateClosed {
		return
	}
	wasJoined := s.state == stateJoined
	s.state = stateClosed

	r := s.relay
	_ = s.client.Close()
	r.untrack(s.client)

	if !wasJoined {
		return
	}
	if r.presence.Release(s.userID, s.client) {
		r.log.Info("user left", zap.String("user_id", s.userID), zap.String("client_id", s.client.ID))
		r.notifyOffline(s.userID)
		return
	}
	r.log.Debug("closed connection was already replaced", zap.String("user_id", s.userID))
}
