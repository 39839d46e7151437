package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloudcrafter/console/internal/console/convo"
	"github.com/cloudcrafter/console/internal/console/identity"
	"github.com/cloudcrafter/console/internal/console/observability"
)

// RegisterRoutes registers conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/conversations", func(r chi.Router) {
		r.Post("/", h.CreateConversation)
		r.Get("/", h.ListConversations)
		r.Route("/{conversationID}", func(r chi.Router) {
			r.Get("/", h.GetConversation)
			r.Delete("/", h.DeleteConversation)
			r.Post("/messages", h.PostMessage)
			r.Post("/messages/{messageID}/confirm", h.ConfirmMessage)
		})
	})
	if h.db != nil {
		r.Route("/api/history", func(r chi.Router) {
			r.Get("/", h.ListHistory)
			r.Get("/{conversationID}/messages", h.ListHistoryMessages)
		})
	}
}

// CreateConversation starts a new conversation bound to the caller's
// anonymous session.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	c := h.mgr.Create(sessionID)
	JSON(w, http.StatusCreated, c.Snapshot())
}

// ListConversations returns snapshots of every live conversation, most
// recently created first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	convs := h.mgr.List()
	snaps := make([]convo.Snapshot, 0, len(convs))
	for _, c := range convs {
		snaps = append(snaps, c.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	JSON(w, http.StatusOK, snaps)
}

// GetConversation returns one live conversation snapshot.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	c := h.mgr.Get(chi.URLParam(r, "conversationID"))
	if c == nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	JSON(w, http.StatusOK, c.Snapshot())
}

// DeleteConversation tears down a live conversation.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	if h.mgr.Get(id) == nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	h.mgr.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

type postMessageRequest struct {
	Text string `json:"text"`
}

// PostMessage runs one turn of the conversation and returns the updated
// snapshot.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	c := h.mgr.Get(chi.URLParam(r, "conversationID"))
	if c == nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch err := c.Send(r.Context(), req.Text); {
	case errors.Is(err, convo.ErrEmptyInput):
		Error(w, http.StatusBadRequest, "message text must not be empty")
		return
	case errors.Is(err, convo.ErrBusy):
		Error(w, http.StatusConflict, "a turn is already in progress")
		return
	case err != nil:
		observability.WithTrace(r.Context()).Error("turn failed", "err", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	JSON(w, http.StatusOK, c.Snapshot())
}

// ConfirmMessage triggers the confirm action of a plan-display message.
func (h *Handler) ConfirmMessage(w http.ResponseWriter, r *http.Request) {
	c := h.mgr.Get(chi.URLParam(r, "conversationID"))
	if c == nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	switch err := c.ConfirmMessage(r.Context(), chi.URLParam(r, "messageID")); {
	case errors.Is(err, convo.ErrUnknownMessage):
		Error(w, http.StatusNotFound, "message not found")
		return
	case errors.Is(err, convo.ErrNotConfirmable):
		Error(w, http.StatusConflict, "message carries no confirmation action")
		return
	case errors.Is(err, convo.ErrNoBlueprint):
		Error(w, http.StatusUnprocessableEntity, "no usable blueprint in this session")
		return
	case err != nil:
		observability.WithTrace(r.Context()).Error("confirmation failed", "err", err)
		Error(w, http.StatusBadGateway, "failed to start deployment")
		return
	}
	JSON(w, http.StatusOK, c.Snapshot())
}

// ListHistory returns persisted conversation headers.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	convs, err := h.db.ListConversations(r.Context())
	if err != nil {
		observability.WithTrace(r.Context()).Error("history listing failed", "err", err)
		Error(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	type header struct {
		ID        string `json:"id"`
		Label     string `json:"label"`
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	}
	out := make([]header, 0, len(convs))
	for _, c := range convs {
		out = append(out, header{
			ID:        c.ID,
			Label:     c.Label,
			CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt: c.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	JSON(w, http.StatusOK, out)
}

// ListHistoryMessages returns the persisted log of one conversation.
func (h *Handler) ListHistoryMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.db.ListMessages(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		observability.WithTrace(r.Context()).Error("history messages failed", "err", err)
		Error(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	type entry struct {
		ID        string          `json:"id"`
		Role      string          `json:"role"`
		Kind      string          `json:"kind"`
		Text      string          `json:"text"`
		Topic     string          `json:"topic,omitempty"`
		Buttons   json.RawMessage `json:"buttons,omitempty"`
		Plan      json.RawMessage `json:"plan,omitempty"`
		CreatedAt string          `json:"created_at"`
	}
	out := make([]entry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, entry{
			ID:        m.ID,
			Role:      m.Role,
			Kind:      m.Kind,
			Text:      m.Body,
			Topic:     m.Topic,
			Buttons:   m.Buttons,
			Plan:      m.Plan,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	JSON(w, http.StatusOK, out)
}
