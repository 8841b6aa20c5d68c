package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scholamates/neuralearn-server/internal/core"
	"github.com/scholamates/neuralearn-server/internal/store"
)

// chatIDHeader carries the resolved chat id alongside the streamed body so
// the client can continue the conversation.
const chatIDHeader = "X-Chat-Id"

type ChatRequest struct {
	Message    string `json:"message"`
	ChatID     string `json:"chatId"`
	Regenerate bool   `json:"regenerate"`
}

// ChatHandler serves POST /api/chat: it prepares the completion, then
// relays the provider's stream as plain text, flushing each chunk.
func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "Message is required")
		return
	}

	ex, err := h.chats.Begin(r.Context(), userID, req.Message, req.ChatID, core.BeginOptions{Regenerate: req.Regenerate})
	if err != nil {
		// Preserve an already-resolved chat id so the caller can recover
		// context.
		if ex != nil && ex.ChatID != "" {
			w.Header().Set(chatIDHeader, ex.ChatID)
		}
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Chat not found")
			return
		}
		h.log.WithError(err).WithField("user_id", userID).Error("failed to prepare chat completion")
		respondError(w, http.StatusInternalServerError, "Failed to generate response")
		return
	}

	w.Header().Set(chatIDHeader, ex.ChatID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	flusher, _ := w.(http.Flusher)
	wrote := false
	_, err = h.chats.Stream(r.Context(), ex, func(chunk string) error {
		if _, werr := io.WriteString(w, chunk); werr != nil {
			return werr
		}
		wrote = true
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		h.log.WithError(err).WithField("chat_id", ex.ChatID).Error("chat stream failed")
		if !wrote {
			respondError(w, http.StatusInternalServerError, "Failed to generate response")
		}
		// Mid-stream the status line is gone; terminating the body is the
		// only error signal left.
	}
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type EditMessageResponse struct {
	ChatID string `json:"chat_id"`
}

// EditMessageHandler serves PUT /api/messages/{messageID}: it updates the
// latest user message and removes the trailing model reply so the client
// can regenerate it.
func (h *APIHandler) EditMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	messageID := chi.URLParam(r, "messageID")

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "Content is required")
		return
	}

	chatID, err := h.chats.Edit(r.Context(), userID, messageID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusNotFound, "Message not found")
		case errors.Is(err, core.ErrNotLatestUserMessage):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.WithError(err).WithField("message_id", messageID).Error("failed to edit message")
			respondError(w, http.StatusInternalServerError, "Failed to edit message")
		}
		return
	}

	respondJSON(w, http.StatusOK, EditMessageResponse{ChatID: chatID})
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	chats, err := h.chats.ListChats(r.Context(), userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("failed to list chats")
		respondError(w, http.StatusInternalServerError, "Failed to list chats")
		return
	}
	if chats == nil {
		chats = []store.Chat{}
	}
	respondJSON(w, http.StatusOK, chats)
}

type ChatDetailsResponse struct {
	*store.Chat
	Messages []store.Message `json:"messages"`
}

func (h *APIHandler) GetChatDetailsHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	chatID := chi.URLParam(r, "chatID")

	chat, messages, err := h.chats.GetChatDetails(r.Context(), chatID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Chat not found")
			return
		}
		h.log.WithError(err).WithField("chat_id", chatID).Error("failed to get chat details")
		respondError(w, http.StatusInternalServerError, "Failed to get chat details")
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	respondJSON(w, http.StatusOK, ChatDetailsResponse{Chat: chat, Messages: messages})
}
