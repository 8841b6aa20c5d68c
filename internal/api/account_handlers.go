package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scholamates/neuralearn-server/internal/core"
	"github.com/scholamates/neuralearn-server/internal/store"
)

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" || req.DeviceID == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	user, err := h.accounts.Signup(r.Context(), req.Username, req.Email, req.Password, req.DeviceID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDeviceCodeNotFound):
			respondError(w, http.StatusBadRequest, "Device ID is invalid")
		case errors.Is(err, store.ErrDeviceCodeUsed):
			respondError(w, http.StatusBadRequest, "This Device ID has already been used")
		case errors.Is(err, store.ErrEmailTaken):
			respondError(w, http.StatusBadRequest, "Email is already registered")
		default:
			h.log.WithError(err).Error("signup failed")
			respondError(w, http.StatusInternalServerError, "Signup failed. Please try again.")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Signup successful",
		"user":    user,
	})
}

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SigninResponse struct {
	Token string      `json:"token"`
	User  *store.User `json:"user"`
}

func (h *APIHandler) SigninHandler(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, user, err := h.accounts.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.log.WithError(err).Error("signin failed")
		respondError(w, http.StatusInternalServerError, "Signin failed. Please try again.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, SigninResponse{Token: token, User: user})
}

type FeedbackRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (h *APIHandler) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Message == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	if err := h.accounts.SubmitFeedback(r.Context(), req.Name, req.Email, req.Message); err != nil {
		h.log.WithError(err).Error("failed to submit feedback")
		respondError(w, http.StatusInternalServerError, "Failed to submit feedback")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Feedback submitted successfully"})
}

type DeviceUpdateRequest struct {
	DeviceID string `json:"deviceId"`
}

// SettingsDeviceHandler serves POST /api/settings/device: pairing-code
// reassignment for the authenticated user.
func (h *APIHandler) SettingsDeviceHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req DeviceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DeviceID == "" {
		respondError(w, http.StatusBadRequest, "Device ID is required")
		return
	}

	changed, err := h.devices.ClaimDevice(r.Context(), userID, req.DeviceID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDeviceCodeNotFound):
			respondError(w, http.StatusBadRequest, "Invalid Device ID")
		case errors.Is(err, store.ErrDeviceCodeUsed):
			respondError(w, http.StatusBadRequest, "This Device ID has already been used")
		default:
			h.log.WithError(err).WithField("user_id", userID).Error("failed to claim device code")
			respondError(w, http.StatusInternalServerError, "Failed to update Device ID")
		}
		return
	}

	if !changed {
		respondJSON(w, http.StatusOK, map[string]string{"message": "Device ID is already set to this value"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Device ID updated successfully"})
}

func (h *APIHandler) GetPersonalizationHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	profile, err := h.accounts.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Profile not found")
			return
		}
		h.log.WithError(err).WithField("user_id", userID).Error("failed to load profile")
		respondError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

type PersonalizationRequest struct {
	Nickname       string `json:"nickname"`
	Occupation     string `json:"occupation"`
	TutorMode      string `json:"tutor_mode"`
	ResponseLength string `json:"response_length"`
	AcademicLevel  string `json:"academic_level"`
	Major          string `json:"major"`
	AboutMe        string `json:"about_me"`
	CustomModel    string `json:"custom_model"`
	GeminiAPIKey   string `json:"gemini_api_key"`
}

func (h *APIHandler) UpdatePersonalizationHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req PersonalizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile := &store.Profile{
		UserID:         userID,
		Nickname:       req.Nickname,
		Occupation:     req.Occupation,
		TutorMode:      req.TutorMode,
		ResponseLength: req.ResponseLength,
		AcademicLevel:  req.AcademicLevel,
		Major:          req.Major,
		AboutMe:        req.AboutMe,
		CustomModel:    req.CustomModel,
		GeminiAPIKey:   req.GeminiAPIKey,
	}
	if err := h.accounts.UpdatePersonalization(r.Context(), profile); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Profile not found")
			return
		}
		h.log.WithError(err).WithField("user_id", userID).Error("failed to update profile")
		respondError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Profile updated successfully"})
}
