package chat

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatwire/internal/presence"
	"chatwire/internal/store"
)

type testEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newHubForTest() *Hub {
	return NewHub(presence.NewRegistry(), zap.NewNop())
}

func attachSession(h *Hub, identity string) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		Identity: identity,
		hub:      h,
		send:     make(chan []byte, 16),
	}
	h.Attach(s)
	return s
}

// drainEvents empties a session's outbound queue without blocking.
func drainEvents(t *testing.T, s *Session) []testEvent {
	t.Helper()
	var out []testEvent
	for {
		select {
		case b, ok := <-s.send:
			if !ok {
				return out
			}
			var ev testEvent
			if err := json.Unmarshal(b, &ev); err != nil {
				t.Fatalf("bad event payload %q: %v", b, err)
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

// lastPresence returns the identity list from the most recent presence
// event queued on s.
func lastPresence(t *testing.T, s *Session) []string {
	t.Helper()
	var ids []string
	found := false
	for _, ev := range drainEvents(t, s) {
		if ev.Event != EventOnlineUsers {
			continue
		}
		ids = nil
		if err := json.Unmarshal(ev.Data, &ids); err != nil {
			t.Fatalf("bad presence payload: %v", err)
		}
		found = true
	}
	if !found {
		t.Fatal("no presence event queued")
	}
	sort.Strings(ids)
	return ids
}

func deliveredMessages(t *testing.T, s *Session) []store.Message {
	t.Helper()
	var msgs []store.Message
	for _, ev := range drainEvents(t, s) {
		if ev.Event != EventNewMessage {
			continue
		}
		var m store.Message
		if err := json.Unmarshal(ev.Data, &m); err != nil {
			t.Fatalf("bad message payload: %v", err)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAttachBroadcastsFullPresenceToEveryone(t *testing.T) {
	h := newHubForTest()
	s1 := attachSession(h, "u1")
	s2 := attachSession(h, "u2")

	if got := lastPresence(t, s1); !equalStrings(got, []string{"u1", "u2"}) {
		t.Errorf("s1 presence = %v; want [u1 u2]", got)
	}
	if got := lastPresence(t, s2); !equalStrings(got, []string{"u1", "u2"}) {
		t.Errorf("s2 presence = %v; want [u1 u2]", got)
	}
}

func TestUnboundSessionReceivesPresenceButIsNotListed(t *testing.T) {
	h := newHubForTest()
	anon := attachSession(h, "")
	attachSession(h, "u1")

	if got := lastPresence(t, anon); !equalStrings(got, []string{"u1"}) {
		t.Errorf("anon presence = %v; want [u1]", got)
	}
}

func TestDetachAnnouncesShrunkenSet(t *testing.T) {
	h := newHubForTest()
	s1 := attachSession(h, "u1")
	s2 := attachSession(h, "u2")
	drainEvents(t, s2)

	h.Detach(s1)

	if got := lastPresence(t, s2); !equalStrings(got, []string{"u2"}) {
		t.Errorf("presence after detach = %v; want [u2]", got)
	}
	if h.Online() != 1 {
		t.Errorf("Online() = %d; want 1", h.Online())
	}
}

func TestDeliverPushesOnlyToReceiver(t *testing.T) {
	h := newHubForTest()
	sender := attachSession(h, "u1")
	receiver := attachSession(h, "u2")
	drainEvents(t, sender)
	drainEvents(t, receiver)

	msg := &store.Message{ID: 1, SenderID: "u1", ReceiverID: "u2", Text: "hi"}
	h.Deliver(msg)

	got := deliveredMessages(t, receiver)
	if len(got) != 1 || got[0].Text != "hi" || got[0].SenderID != "u1" {
		t.Fatalf("receiver deliveries = %+v; want one 'hi' from u1", got)
	}
	if got := deliveredMessages(t, sender); len(got) != 0 {
		t.Errorf("sender received deliveries: %+v", got)
	}
}

func TestDeliverToOfflineReceiverIsNoop(t *testing.T) {
	h := newHubForTest()
	bystander := attachSession(h, "u1")
	drainEvents(t, bystander)

	h.Deliver(&store.Message{ID: 1, SenderID: "u1", ReceiverID: "u2", Text: "hi"})

	if got := deliveredMessages(t, bystander); len(got) != 0 {
		t.Errorf("bystander received deliveries: %+v", got)
	}
}

func TestDuplicateLoginRoutesToNewestSession(t *testing.T) {
	h := newHubForTest()
	old := attachSession(h, "u1")
	fresh := attachSession(h, "u1")
	drainEvents(t, old)
	drainEvents(t, fresh)

	h.Deliver(&store.Message{ID: 1, SenderID: "u2", ReceiverID: "u1", Text: "hi"})

	if got := deliveredMessages(t, fresh); len(got) != 1 {
		t.Fatalf("fresh session deliveries = %+v; want one", got)
	}
	if got := deliveredMessages(t, old); len(got) != 0 {
		t.Errorf("displaced session received deliveries: %+v", got)
	}
}

func TestStaleDisconnectDoesNotEvictNewSession(t *testing.T) {
	h := newHubForTest()
	old := attachSession(h, "u1")
	fresh := attachSession(h, "u1")
	observer := attachSession(h, "u2")

	// The first connection's teardown lands after the reconnect.
	h.Detach(old)

	if got := lastPresence(t, observer); !equalStrings(got, []string{"u1", "u2"}) {
		t.Errorf("presence after stale detach = %v; want [u1 u2]", got)
	}

	drainEvents(t, fresh)
	h.Deliver(&store.Message{ID: 1, SenderID: "u2", ReceiverID: "u1", Text: "still here"})
	if got := deliveredMessages(t, fresh); len(got) != 1 {
		t.Fatalf("fresh session deliveries = %+v; want one", got)
	}
}

func TestDetachIsIdempotent(t *testing.T) {
	h := newHubForTest()
	s := attachSession(h, "u1")
	h.Detach(s)
	h.Detach(s) // must not panic on the closed channel
	if h.Online() != 0 {
		t.Errorf("Online() = %d; want 0", h.Online())
	}
}
