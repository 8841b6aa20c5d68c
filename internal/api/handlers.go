package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/scholamates/neuralearn-server/internal/auth"
	"github.com/scholamates/neuralearn-server/internal/core"
)

// sessionCookieName is the cookie set on signin alongside the bearer
// token.
const sessionCookieName = "session"

type APIHandler struct {
	accounts *core.AccountService
	chats    *core.ChatService
	devices  *core.DeviceService
	tokens   *auth.TokenService
	log      *logrus.Logger
}

func NewAPIHandler(accounts *core.AccountService, chats *core.ChatService, devices *core.DeviceService, tokens *auth.TokenService, log *logrus.Logger) *APIHandler {
	return &APIHandler{
		accounts: accounts,
		chats:    chats,
		devices:  devices,
		tokens:   tokens,
		log:      log,
	}
}

type contextKey string

const userIDKey contextKey = "user_id"

// SessionMiddleware authenticates a request from its bearer token or
// session cookie, verifies the user still exists, and attaches the user id
// to the context.
func (h *APIHandler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			if cookie, err := r.Cookie(sessionCookieName); err == nil {
				tokenString = cookie.Value
			}
		}
		if tokenString == "" {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		userID, err := h.tokens.Verify(tokenString)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid or expired session")
			return
		}

		if _, err := h.accounts.GetUser(r.Context(), userID); err != nil {
			respondError(w, http.StatusUnauthorized, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// UserID extracts the authenticated user id set by SessionMiddleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// requestLogger logs one structured line per request.
func (h *APIHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}
