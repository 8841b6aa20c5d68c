package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/scholamates/neuralearn-server/internal/auth"
	"github.com/scholamates/neuralearn-server/internal/pomodoro"
	"github.com/scholamates/neuralearn-server/internal/store"
)

// ErrDeviceNotLinked is returned when a valid pairing code has not been
// claimed by any profile yet.
var ErrDeviceNotLinked = errors.New("device not active or not linked to a user")

// ErrInvalidSessionStatus is returned for a study-session outcome other
// than completed or interrupted.
var ErrInvalidSessionStatus = errors.New("invalid session status")

// Fallback preferences for devices whose owner never picked any.
const (
	defaultTutorMode      = "socratic"
	defaultResponseLength = "concise"
	defaultDeviceVolume   = 70
)

// DeviceService covers the companion-hardware surface: pairing-code
// claims, device registration, config fetch, heartbeats, and study
// sessions with their countdown timers.
type DeviceService struct {
	store  *store.SQLiteStore
	tokens *auth.TokenService
	log    *logrus.Logger

	mu     sync.Mutex
	timers map[string]*sessionTimer // keyed by study-session id
}

// sessionTimer is the countdown driving one open study session.
type sessionTimer struct {
	timer  *pomodoro.Timer
	cancel context.CancelFunc
}

func NewDeviceService(st *store.SQLiteStore, tokens *auth.TokenService, log *logrus.Logger) *DeviceService {
	return &DeviceService{
		store:  st,
		tokens: tokens,
		log:    log,
		timers: make(map[string]*sessionTimer),
	}
}

// RegisterResult identifies the user a device belongs to, plus a signed
// device token.
type RegisterResult struct {
	UserID       string
	Nickname     string
	SessionToken string
}

// Register resolves a pairing code to its owning user and issues a device
// token.
func (s *DeviceService) Register(ctx context.Context, code string) (*RegisterResult, error) {
	if _, err := s.store.GetDeviceCode(ctx, code); err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfileByDeviceCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrDeviceNotLinked
	}
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.IssueDeviceToken(profile.UserID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to issue device token: %w", err)
	}

	return &RegisterResult{
		UserID:       profile.UserID,
		Nickname:     profile.Nickname,
		SessionToken: token,
	}, nil
}

// DeviceConfig is the preference snapshot a device polls for.
type DeviceConfig struct {
	Volume         int     `json:"volume"`
	TutorMode      string  `json:"tutor_mode"`
	ResponseLength string  `json:"response_length"`
	WifiSSID       *string `json:"wifi_ssid"`
}

// Config returns the owner's tutor-mode and response-length preferences,
// with defaults where unset.
func (s *DeviceService) Config(ctx context.Context, userID string) (*DeviceConfig, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	cfg := &DeviceConfig{
		Volume:         defaultDeviceVolume,
		TutorMode:      profile.TutorMode,
		ResponseLength: profile.ResponseLength,
	}
	if cfg.TutorMode == "" {
		cfg.TutorMode = defaultTutorMode
	}
	if cfg.ResponseLength == "" {
		cfg.ResponseLength = defaultResponseLength
	}
	return cfg, nil
}

// Telemetry is a device heartbeat payload.
type Telemetry struct {
	BatteryLevel *int   `json:"battery_level"`
	Status       string `json:"status"`
	WifiSignal   *int   `json:"wifi_signal"`
}

// Heartbeat records device telemetry. Currently log-only; nothing is
// persisted.
func (s *DeviceService) Heartbeat(telemetry Telemetry) {
	fields := logrus.Fields{"status": telemetry.Status}
	if telemetry.BatteryLevel != nil {
		fields["battery_level"] = *telemetry.BatteryLevel
	}
	if telemetry.WifiSignal != nil {
		fields["wifi_signal"] = *telemetry.WifiSignal
	}
	s.log.WithFields(fields).Info("device heartbeat")
}

// ClaimDevice rebinds the user's profile to a new pairing code. Claiming
// the code already held is a no-op. The previously held code is released
// best-effort after the claim commits.
func (s *DeviceService) ClaimDevice(ctx context.Context, userID, code string) (changed bool, err error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return false, err
	}
	if profile.DeviceCode == code {
		return false, nil
	}

	previous, err := s.store.ClaimDeviceCode(ctx, userID, code)
	if err != nil {
		return false, err
	}

	if previous != "" && previous != code {
		if err := s.store.ReleaseDeviceCode(ctx, previous); err != nil {
			s.log.WithError(err).WithField("code", previous).Warn("failed to release old device code")
		}
	}
	return true, nil
}

// StartSession opens a focus session for the user and starts its
// countdown. When the focus interval runs out the session is closed as
// completed without waiting for a stop call.
func (s *DeviceService) StartSession(ctx context.Context, userID string) (*store.StudySession, error) {
	session, err := s.store.CreateStudySession(ctx, userID)
	if err != nil {
		return nil, err
	}

	timerCtx, cancel := context.WithCancel(context.Background())
	timer := pomodoro.New(pomodoro.DefaultSettings, func(focusMinutes int) {
		s.completeSession(session.ID, focusMinutes)
	})
	timer.Start()
	go timer.Run(timerCtx)

	s.mu.Lock()
	s.timers[session.ID] = &sessionTimer{timer: timer, cancel: cancel}
	s.mu.Unlock()

	return session, nil
}

// completeSession closes an expired session. Invoked from the timer
// callback, so it carries its own context.
func (s *DeviceService) completeSession(sessionID string, focusMinutes int) {
	s.dropTimer(sessionID)
	if err := s.store.CloseStudySession(context.Background(), sessionID, store.SessionCompleted); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("failed to close expired study session")
		return
	}
	s.log.WithFields(logrus.Fields{
		"session_id":    sessionID,
		"focus_minutes": focusMinutes,
	}).Info("study session completed")
}

func (s *DeviceService) dropTimer(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.timers[sessionID]; ok {
		st.cancel()
		delete(s.timers, sessionID)
	}
}

// StopSession closes a session with the given outcome, defaulting to
// completed, and cancels its countdown.
func (s *DeviceService) StopSession(ctx context.Context, sessionID, status string) error {
	switch status {
	case "":
		status = store.SessionCompleted
	case store.SessionCompleted, store.SessionInterrupted:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSessionStatus, status)
	}
	if err := s.store.CloseStudySession(ctx, sessionID, status); err != nil {
		return err
	}
	s.dropTimer(sessionID)
	return nil
}

// TimerState is a snapshot of a running session countdown.
type TimerState struct {
	Mode             string `json:"mode"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Running          bool   `json:"running"`
}

// SessionTimerState returns the countdown snapshot for an open session.
// Sessions without a live timer (stopped, expired, or started before a
// restart) report ErrNotFound.
func (s *DeviceService) SessionTimerState(sessionID string) (*TimerState, error) {
	s.mu.Lock()
	st, ok := s.timers[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return &TimerState{
		Mode:             string(st.timer.Mode()),
		RemainingSeconds: st.timer.Remaining(),
		Running:          st.timer.Running(),
	}, nil
}
