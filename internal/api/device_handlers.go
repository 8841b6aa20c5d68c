package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/scholamates/neuralearn-server/internal/core"
	"github.com/scholamates/neuralearn-server/internal/store"
)

// Device-oriented endpoints trust the caller-supplied user id; the device
// authenticated its pairing code via /api/v1/device/register first.

const maxImageUploadBytes = 10 << 20

type DeviceCompletionRequest struct {
	Text      string `json:"text"`
	UserID    string `json:"user_id"`
	TutorMode string `json:"tutor_mode"`
	ChatID    string `json:"chat_id"`
}

type DeviceCompletionResponse struct {
	Text     string  `json:"text"`
	ChatID   string  `json:"chat_id"`
	AudioURL *string `json:"audio_url"` // placeholder for future TTS
}

// DeviceCompletionHandler serves POST /api/v1/chat/completion: the same
// orchestration as the browser chat endpoint, single-shot instead of
// streamed.
func (h *APIHandler) DeviceCompletionHandler(w http.ResponseWriter, r *http.Request) {
	var req DeviceCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "Text is required")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	ex, err := h.chats.Begin(r.Context(), req.UserID, req.Text, req.ChatID, core.BeginOptions{TutorMode: req.TutorMode})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Chat not found")
			return
		}
		h.log.WithError(err).WithField("user_id", req.UserID).Error("failed to prepare device completion")
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	text, err := h.chats.Complete(r.Context(), ex)
	if err != nil {
		h.log.WithError(err).WithField("chat_id", ex.ChatID).Error("device completion failed")
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	respondJSON(w, http.StatusOK, DeviceCompletionResponse{Text: text, ChatID: ex.ChatID})
}

type VisionResponse struct {
	Text   string `json:"text"`
	ChatID string `json:"chat_id"`
}

// VisionAnalyzeHandler serves POST /api/v1/vision/analyze: multipart form
// with an image, a user id, and an optional chat id.
func (h *APIHandler) VisionAnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	userID := r.FormValue("user_id")
	if err != nil || userID == "" {
		respondError(w, http.StatusBadRequest, "Image and User ID are required")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read image")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	text, chatID, err := h.chats.AnalyzeImage(r.Context(), userID, r.FormValue("chat_id"), mimeType, image)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("vision analysis failed")
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	respondJSON(w, http.StatusOK, VisionResponse{Text: text, ChatID: chatID})
}

type DeviceRegisterRequest struct {
	DeviceID string `json:"device_id"`
}

type DeviceRegisterResponse struct {
	Status       string `json:"status"`
	UserID       string `json:"user_id"`
	Nickname     string `json:"nickname"`
	SessionToken string `json:"session_token"`
}

// DeviceRegisterHandler serves POST /api/v1/device/register: pairing code
// to owning user, plus a signed device token.
func (h *APIHandler) DeviceRegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req DeviceRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DeviceID == "" {
		respondError(w, http.StatusBadRequest, "Device ID is required")
		return
	}

	result, err := h.devices.Register(r.Context(), req.DeviceID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDeviceCodeNotFound):
			respondError(w, http.StatusUnauthorized, "Invalid Device ID")
		case errors.Is(err, core.ErrDeviceNotLinked):
			respondError(w, http.StatusForbidden, "Device not active or not linked to a user")
		default:
			h.log.WithError(err).Error("device registration failed")
			respondError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	respondJSON(w, http.StatusOK, DeviceRegisterResponse{
		Status:       "authenticated",
		UserID:       result.UserID,
		Nickname:     result.Nickname,
		SessionToken: result.SessionToken,
	})
}

// DeviceConfigHandler serves GET /api/v1/device/config?user_id=...
func (h *APIHandler) DeviceConfigHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	cfg, err := h.devices.Config(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		h.log.WithError(err).WithField("user_id", userID).Error("failed to load device config")
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

// DeviceStatusHandler serves POST /api/v1/device/status: a heartbeat that
// is logged and acknowledged, nothing more.
func (h *APIHandler) DeviceStatusHandler(w http.ResponseWriter, r *http.Request) {
	var telemetry core.Telemetry
	if err := json.NewDecoder(r.Body).Decode(&telemetry); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.devices.Heartbeat(telemetry)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type PomodoroStartRequest struct {
	UserID string `json:"user_id"`
}

func (h *APIHandler) PomodoroStartHandler(w http.ResponseWriter, r *http.Request) {
	var req PomodoroStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	session, err := h.devices.StartSession(r.Context(), req.UserID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", req.UserID).Error("failed to start study session")
		respondError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"session_id": session.ID,
		"status":     "started",
	})
}

type PomodoroStopRequest struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

func (h *APIHandler) PomodoroStopHandler(w http.ResponseWriter, r *http.Request) {
	var req PomodoroStopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	if err := h.devices.StopSession(r.Context(), req.SessionID, req.Status); err != nil {
		if errors.Is(err, core.ErrInvalidSessionStatus) {
			respondError(w, http.StatusBadRequest, "Invalid session status")
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Session not found")
			return
		}
		h.log.WithError(err).WithField("session_id", req.SessionID).Error("failed to stop study session")
		respondError(w, http.StatusInternalServerError, "Failed to stop session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// PomodoroStateHandler serves GET /api/v1/pomodoro/state?session_id=...:
// the countdown snapshot a device polls to render its timer.
func (h *APIHandler) PomodoroStateHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	state, err := h.devices.SessionTimerState(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "No running timer for session")
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// ModelsHandler serves GET /api/v1/models: the selectable model list.
func (h *APIHandler) ModelsHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, core.Models)
}
