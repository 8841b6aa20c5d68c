package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(h.requestLogger)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Post("/signup", h.SignupHandler)
		r.Post("/signin", h.SigninHandler)
		r.Post("/feedback", h.FeedbackHandler)

		// Session-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(h.SessionMiddleware)

			r.Post("/chat", h.ChatHandler)
			r.Get("/chats", h.ListChatsHandler)
			r.Get("/chats/{chatID}", h.GetChatDetailsHandler)
			r.Put("/messages/{messageID}", h.EditMessageHandler)

			r.Post("/settings/device", h.SettingsDeviceHandler)
			r.Get("/settings/personalization", h.GetPersonalizationHandler)
			r.Put("/settings/personalization", h.UpdatePersonalizationHandler)
		})

		// Device-facing routes; these trust the caller-supplied user id
		r.Route("/v1", func(r chi.Router) {
			r.Post("/chat/completion", h.DeviceCompletionHandler)
			r.Post("/vision/analyze", h.VisionAnalyzeHandler)
			r.Post("/device/register", h.DeviceRegisterHandler)
			r.Get("/device/config", h.DeviceConfigHandler)
			r.Post("/device/status", h.DeviceStatusHandler)
			r.Post("/pomodoro/start", h.PomodoroStartHandler)
			r.Post("/pomodoro/stop", h.PomodoroStopHandler)
			r.Get("/pomodoro/state", h.PomodoroStateHandler)
			r.Get("/models", h.ModelsHandler)
		})
	})

	return r
}
