package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"chatwire/internal/middleware"
	"chatwire/internal/store"
)

type fakeMessageStore struct {
	mu         sync.Mutex
	msgs       []store.Message
	nextID     int64
	failCreate bool
}

func (f *fakeMessageStore) CreateMessage(ctx context.Context, senderID, receiverID, text, image string) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, errors.New("boom")
	}
	f.nextID++
	m := store.Message{
		ID:         f.nextID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		CreatedAt:  time.Now().UTC(),
	}
	f.msgs = append(f.msgs, m)
	return &m, nil
}

func (f *fakeMessageStore) MessagesBetween(ctx context.Context, a, b string) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Message
	for _, m := range f.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func newTestRouter(h *Handler, userID string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/api/messages/send/{id}", h.SendMessage)
	r.Get("/api/messages/{id}", h.GetMessages)
	return r
}

func TestSendPersistsThenDelivers(t *testing.T) {
	hub := newHubForTest()
	receiver := attachSession(hub, "u2")
	drainEvents(t, receiver)

	st := &fakeMessageStore{}
	h := NewHandler(hub, st, nil, zap.NewNop())
	router := newTestRouter(h, "u1")

	req := httptest.NewRequest("POST", "/api/messages/send/u2", strings.NewReader(`{"text":"hi"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; want 201; body %s", w.Code, w.Body)
	}
	var created store.Message
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.Text != "hi" || created.SenderID != "u1" || created.ReceiverID != "u2" {
		t.Errorf("created = %+v", created)
	}

	pushed := deliveredMessages(t, receiver)
	if len(pushed) != 1 || pushed[0].ID != created.ID {
		t.Fatalf("pushed = %+v; want the created message", pushed)
	}

	hist, _ := st.MessagesBetween(context.Background(), "u1", "u2")
	if len(hist) != 1 || hist[0].ID != created.ID {
		t.Fatalf("history = %+v; want the created message", hist)
	}
}

func TestSendToOfflineReceiverStillQueryable(t *testing.T) {
	hub := newHubForTest()
	st := &fakeMessageStore{}
	h := NewHandler(hub, st, nil, zap.NewNop())
	router := newTestRouter(h, "u1")

	req := httptest.NewRequest("POST", "/api/messages/send/u2", strings.NewReader(`{"text":"hi"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; want 201", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/messages/u1", nil)
	w = httptest.NewRecorder()
	newTestRouter(h, "u2").ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d; want 200", w.Code)
	}
	var hist []store.Message
	if err := json.NewDecoder(w.Body).Decode(&hist); err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Text != "hi" {
		t.Fatalf("history = %+v; want the offline message", hist)
	}
}

func TestSendRequiresTextOrImage(t *testing.T) {
	hub := newHubForTest()
	st := &fakeMessageStore{}
	h := NewHandler(hub, st, nil, zap.NewNop())
	router := newTestRouter(h, "u1")

	req := httptest.NewRequest("POST", "/api/messages/send/u2", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
	if len(st.msgs) != 0 {
		t.Errorf("empty message was persisted: %+v", st.msgs)
	}
}

func TestSendAbortsDeliveryWhenPersistenceFails(t *testing.T) {
	hub := newHubForTest()
	receiver := attachSession(hub, "u2")
	drainEvents(t, receiver)

	st := &fakeMessageStore{failCreate: true}
	h := NewHandler(hub, st, nil, zap.NewNop())
	router := newTestRouter(h, "u1")

	req := httptest.NewRequest("POST", "/api/messages/send/u2", strings.NewReader(`{"text":"hi"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", w.Code)
	}
	if got := deliveredMessages(t, receiver); len(got) != 0 {
		t.Fatalf("unpersisted message was pushed: %+v", got)
	}
}

func TestHistoryIsOrderedAndIdempotent(t *testing.T) {
	hub := newHubForTest()
	st := &fakeMessageStore{}
	ctx := context.Background()
	st.CreateMessage(ctx, "u1", "u2", "first", "")
	st.CreateMessage(ctx, "u2", "u1", "second", "")
	st.CreateMessage(ctx, "u1", "u3", "other conversation", "")
	st.CreateMessage(ctx, "u1", "u2", "third", "")

	h := NewHandler(hub, st, nil, zap.NewNop())
	router := newTestRouter(h, "u1")

	fetch := func() []store.Message {
		req := httptest.NewRequest("GET", "/api/messages/u2", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("history status = %d; want 200", w.Code)
		}
		var hist []store.Message
		if err := json.NewDecoder(w.Body).Decode(&hist); err != nil {
			t.Fatal(err)
		}
		return hist
	}

	first := fetch()
	if len(first) != 3 {
		t.Fatalf("history length = %d; want 3", len(first))
	}
	for i, want := range []string{"first", "second", "third"} {
		if first[i].Text != want {
			t.Errorf("history[%d] = %q; want %q", i, first[i].Text, want)
		}
	}

	second := fetch()
	if len(second) != len(first) {
		t.Fatalf("repeated fetch changed history: %d vs %d", len(second), len(first))
	}
}
