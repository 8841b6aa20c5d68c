package store

import "time"

// Message roles, matching the generative-language API's conversation roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Study session states.
const (
	SessionFocused     = "focused"
	SessionCompleted   = "completed"
	SessionInterrupted = "interrupted"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile holds per-user personalization, one row per user. Created at
// signup and mutated through the settings endpoints.
type Profile struct {
	UserID         string    `json:"user_id"`
	Nickname       string    `json:"nickname"`
	Occupation     string    `json:"occupation"`
	TutorMode      string    `json:"tutor_mode"`
	ResponseLength string    `json:"response_length"`
	AcademicLevel  string    `json:"academic_level"`
	Major          string    `json:"major"`
	AboutMe        string    `json:"about_me"`
	CustomModel    string    `json:"custom_model"`
	GeminiAPIKey   string    `json:"-"`
	DeviceCode     string    `json:"device_code"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DeviceCode is a pre-provisioned pairing code. A code is claimed by at
// most one profile at a time and released when that profile switches to a
// different code.
type DeviceCode struct {
	ID     string     `json:"id"`
	Code   string     `json:"code"`
	IsUsed bool       `json:"is_used"`
	UsedAt *time.Time `json:"used_at"`
}

type StudySession struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Status    string     `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

type Feedback struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
