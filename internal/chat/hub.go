package chat

import (
	"sync"

	"go.uber.org/zap"

	"chatwire/internal/metrics"
	"chatwire/internal/presence"
	"chatwire/internal/store"
)

// Hub owns the live session set and routes events onto it. It drives the
// presence registry: attaching a bound session registers its identity,
// detaching unregisters it, and every mutation is followed by a full
// presence broadcast to all sessions.
//
// Pushes are best-effort and at-most-once. A full outbound queue drops the
// event rather than blocking; persisted messages stay retrievable through
// the history endpoint either way.
type Hub struct {
	registry presence.Registry
	log      *zap.Logger

	// mu guards sessions and orders channel sends against Detach's close:
	// sends happen non-blocking under RLock, close(send) under Lock.
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewHub(registry presence.Registry, log *zap.Logger) *Hub {
	return &Hub{
		registry: registry,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Attach adds a freshly upgraded session, binds its identity when it has
// one, and announces the updated online set.
func (h *Hub) Attach(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	n := len(h.sessions)
	h.mu.Unlock()

	if s.Identity != "" {
		h.registry.Register(s.Identity, s.ID)
	}
	metrics.OnlineSessions.Set(float64(n))
	h.log.Info("session attached",
		zap.String("session", s.ID), zap.String("identity", s.Identity))

	h.announcePresence()
}

// Detach removes a dead session. The registry unregister is guarded by the
// session's own ID, so a stale disconnect racing a reconnect from the same
// identity never evicts the newer binding.
func (h *Hub) Detach(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s.ID)
	close(s.send)
	n := len(h.sessions)
	h.mu.Unlock()

	if s.Identity != "" {
		h.registry.Unregister(s.Identity, s.ID)
	}
	metrics.OnlineSessions.Set(float64(n))
	h.log.Info("session detached",
		zap.String("session", s.ID), zap.String("identity", s.Identity))

	h.announcePresence()
}

// Deliver pushes a persisted message to the receiver's session, if any.
// Callers must have persisted the message first; an offline receiver or a
// failed push is a normal outcome, resolved by the pull path.
func (h *Hub) Deliver(msg *store.Message) {
	sid, ok := h.registry.Lookup(msg.ReceiverID)
	if !ok {
		metrics.PushOffline.Inc()
		return
	}

	payload, err := marshalEvent(EventNewMessage, msg)
	if err != nil {
		h.log.Error("marshal message event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[sid]
	if !ok {
		// Session died between lookup and push.
		metrics.PushOffline.Inc()
		return
	}
	select {
	case s.send <- payload:
		metrics.PushOK.Inc()
	default:
		metrics.PushDropped.Inc()
		h.log.Warn("delivery dropped, outbound queue full",
			zap.String("session", sid), zap.String("receiver", msg.ReceiverID))
	}
}

// announcePresence fans the current online set out to every session, bound
// or not. Always the full set, never a delta.
func (h *Hub) announcePresence() {
	payload, err := marshalEvent(EventOnlineUsers, h.registry.Snapshot())
	if err != nil {
		h.log.Error("marshal presence event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		select {
		case s.send <- payload:
		default:
			metrics.PushDropped.Inc()
		}
	}
	metrics.PresenceBroadcasts.Inc()
}

// Online reports how many sessions are attached.
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
