package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatwire/internal/assets"
	"chatwire/internal/metrics"
	"chatwire/internal/middleware"
	"chatwire/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS policy is enforced on the REST surface.
	},
}

// MessageStore is the slice of the durable store the chat handlers need.
type MessageStore interface {
	CreateMessage(ctx context.Context, senderID, receiverID, text, image string) (*store.Message, error)
	MessagesBetween(ctx context.Context, a, b string) ([]store.Message, error)
}

type Handler struct {
	hub    *Hub
	store  MessageStore
	assets *assets.Store
	log    *zap.Logger
}

func NewHandler(hub *Hub, st MessageStore, assets *assets.Store, log *zap.Logger) *Handler {
	return &Handler{hub: hub, store: st, assets: assets, log: log}
}

// ServeWs upgrades the connection and runs it until disconnect. The optional
// userId query parameter binds the session to an identity at handshake time;
// the credential that produced that identity lives on the REST path, the
// transport itself does not authenticate.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("userId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &Session{
		ID:       uuid.NewString(),
		Identity: identity,
		hub:      h.hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
	h.hub.Attach(s)

	go s.writePump()
	go s.readPump()
}

type sendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"` // base64 data URI
}

// SendMessage handles POST /api/messages/send/{id}. The message is persisted
// first; only a successful write reaches the hub for live delivery.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	receiverID := chi.URLParam(r, "id")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" && req.Image == "" {
		writeError(w, http.StatusBadRequest, "message requires text or image")
		return
	}

	imageURL := ""
	if req.Image != "" {
		url, err := h.assets.UploadDataURI(r.Context(), req.Image)
		if err != nil {
			if errors.Is(err, assets.ErrInvalidDataURI) {
				writeError(w, http.StatusBadRequest, "invalid image payload")
				return
			}
			h.log.Error("image upload failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		imageURL = url
	}

	msg, err := h.store.CreateMessage(r.Context(), senderID, receiverID, req.Text, imageURL)
	if err != nil {
		h.log.Error("message persistence failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	metrics.MessagesStored.Inc()

	// Persist-then-route: the message is durable by now, so a failed or
	// skipped push costs only the live notification.
	h.hub.Deliver(msg)

	writeJSON(w, http.StatusCreated, msg)
}

// GetMessages handles GET /api/messages/{id}: the full conversation between
// the caller and user {id}, oldest first.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	selfID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	otherID := chi.URLParam(r, "id")

	msgs, err := h.store.MessagesBetween(r.Context(), selfID, otherID)
	if err != nil {
		h.log.Error("history query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
