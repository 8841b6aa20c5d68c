package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	// Foreign keys are off by default in SQLite; the DSN parameter enables
	// them on every pooled connection.
	if !strings.Contains(dataSourceName, "_foreign_keys") {
		dataSourceName += "?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        username TEXT NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS profiles (
        user_id TEXT PRIMARY KEY,
        nickname TEXT NOT NULL DEFAULT '',
        occupation TEXT NOT NULL DEFAULT '',
        tutor_mode TEXT NOT NULL DEFAULT '',
        response_length TEXT NOT NULL DEFAULT '',
        academic_level TEXT NOT NULL DEFAULT '',
        major TEXT NOT NULL DEFAULT '',
        about_me TEXT NOT NULL DEFAULT '',
        custom_model TEXT NOT NULL DEFAULT '',
        gemini_api_key TEXT NOT NULL DEFAULT '',
        device_code TEXT NOT NULL DEFAULT '',
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS chats (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        title TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        chat_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'model')),
        content TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (chat_id) REFERENCES chats (id)
    );

    CREATE TABLE IF NOT EXISTS device_codes (
        id TEXT PRIMARY KEY, -- UUID
        code TEXT UNIQUE NOT NULL,
        is_used BOOLEAN NOT NULL DEFAULT FALSE,
        used_at DATETIME
    );

    CREATE TABLE IF NOT EXISTS study_sessions (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        status TEXT NOT NULL CHECK (status IN ('focused', 'completed', 'interrupted')),
        start_time DATETIME NOT NULL,
        end_time DATETIME
    );

    CREATE TABLE IF NOT EXISTS feedback (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        email TEXT NOT NULL,
        message TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User and profile methods

// CreateUserWithProfile creates the auth user, its profile, and claims the
// pairing code in a single transaction so a partial failure cannot leave an
// orphaned user or a half-claimed code.
func (s *SQLiteStore) CreateUserWithProfile(ctx context.Context, username, email, passwordHash, deviceCode string) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var codeID string
	var isUsed bool
	err = tx.QueryRowContext(ctx, "SELECT id, is_used FROM device_codes WHERE code = ?", deviceCode).Scan(&codeID, &isUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device code: %w", err)
	}
	if isUsed {
		return nil, ErrDeviceCodeUsed
	}

	user := &User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		CreatedAt: time.Now(),
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, username, email, passwordHash, user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO profiles (user_id, device_code, updated_at) VALUES (?, ?, ?)",
		user.ID, deviceCode, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE device_codes SET is_used = TRUE, used_at = ? WHERE id = ?",
		time.Now(), codeID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim device code: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit signup: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?", email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

const profileColumns = "user_id, nickname, occupation, tutor_mode, response_length, academic_level, major, about_me, custom_model, gemini_api_key, device_code, updated_at"

func scanProfile(row *sql.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.UserID, &p.Nickname, &p.Occupation, &p.TutorMode, &p.ResponseLength,
		&p.AcademicLevel, &p.Major, &p.AboutMe, &p.CustomModel, &p.GeminiAPIKey, &p.DeviceCode, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE user_id = ?", userID)
	return scanProfile(row)
}

func (s *SQLiteStore) GetProfileByDeviceCode(ctx context.Context, code string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE device_code = ?", code)
	return scanProfile(row)
}

// UpdateProfile writes the mutable personalization fields.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, p *Profile) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE profiles
        SET nickname = ?, occupation = ?, tutor_mode = ?, response_length = ?,
            academic_level = ?, major = ?, about_me = ?, custom_model = ?,
            gemini_api_key = ?, updated_at = ?
        WHERE user_id = ?`,
		p.Nickname, p.Occupation, p.TutorMode, p.ResponseLength,
		p.AcademicLevel, p.Major, p.AboutMe, p.CustomModel,
		p.GeminiAPIKey, time.Now(), p.UserID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Device code methods

func (s *SQLiteStore) GetDeviceCode(ctx context.Context, code string) (*DeviceCode, error) {
	var dc DeviceCode
	err := s.db.QueryRowContext(ctx,
		"SELECT id, code, is_used, used_at FROM device_codes WHERE code = ?", code).
		Scan(&dc.ID, &dc.Code, &dc.IsUsed, &dc.UsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device code: %w", err)
	}
	return &dc, nil
}

// InsertDeviceCode provisions a new pairing code.
func (s *SQLiteStore) InsertDeviceCode(ctx context.Context, code string) (*DeviceCode, error) {
	dc := &DeviceCode{ID: uuid.NewString(), Code: code}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO device_codes (id, code, is_used) VALUES (?, ?, FALSE)", dc.ID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to insert device code: %w", err)
	}
	return dc, nil
}

// ClaimDeviceCode validates the code, marks it used, and binds it to the
// user's profile in one transaction. It returns the code previously bound
// to the profile, if any, so the caller can release it.
func (s *SQLiteStore) ClaimDeviceCode(ctx context.Context, userID, code string) (previous string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, "SELECT device_code FROM profiles WHERE user_id = ?", userID).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query profile: %w", err)
	}

	var codeID string
	var isUsed bool
	err = tx.QueryRowContext(ctx, "SELECT id, is_used FROM device_codes WHERE code = ?", code).Scan(&codeID, &isUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrDeviceCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query device code: %w", err)
	}
	if isUsed {
		return "", ErrDeviceCodeUsed
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE device_codes SET is_used = TRUE, used_at = ? WHERE id = ?", time.Now(), codeID); err != nil {
		return "", fmt.Errorf("failed to claim device code: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE profiles SET device_code = ?, updated_at = ? WHERE user_id = ?", code, time.Now(), userID); err != nil {
		return "", fmt.Errorf("failed to bind device code: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit device claim: %w", err)
	}
	return previous, nil
}

// ReleaseDeviceCode marks a code unused again so it can be claimed by
// another profile.
func (s *SQLiteStore) ReleaseDeviceCode(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE device_codes SET is_used = FALSE, used_at = NULL WHERE code = ?", code)
	if err != nil {
		return fmt.Errorf("failed to release device code: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrDeviceCodeNotFound
	}
	return nil
}

// Chat methods

func (s *SQLiteStore) CreateChat(ctx context.Context, userID, title string) (*Chat, error) {
	chat := &Chat{ID: uuid.NewString(), UserID: userID, Title: title, CreatedAt: time.Now()}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO chats (id, user_id, title, created_at) VALUES (?, ?, ?, ?)",
		chat.ID, userID, title, chat.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat: %w", err)
	}
	return chat, nil
}

// CreateChatWithMessage inserts the chat and its first user message in one
// transaction so a failed message insert cannot leave an orphaned chat.
func (s *SQLiteStore) CreateChatWithMessage(ctx context.Context, userID, title, content string) (*Chat, *Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	chat := &Chat{ID: uuid.NewString(), UserID: userID, Title: title, CreatedAt: time.Now()}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO chats (id, user_id, title, created_at) VALUES (?, ?, ?, ?)",
		chat.ID, userID, title, chat.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert chat: %w", err)
	}

	msg := &Message{ID: uuid.NewString(), ChatID: chat.ID, Role: RoleUser, Content: content, CreatedAt: time.Now()}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO messages (id, chat_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ID, msg.ChatID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert first message: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit chat creation: %w", err)
	}
	return chat, msg, nil
}

func (s *SQLiteStore) GetChatByID(ctx context.Context, chatID, userID string) (*Chat, error) {
	var chat Chat
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, created_at FROM chats WHERE id = ? AND user_id = ?", chatID, userID).
		Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chat: %w", err)
	}
	return &chat, nil
}

func (s *SQLiteStore) GetChatsByUserID(ctx context.Context, userID string) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, title, created_at FROM chats WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// Message methods

func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, chat_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ID, msg.ChatID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMessagesByChatID(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, chat_id, role, content, created_at FROM messages WHERE chat_id = ? ORDER BY created_at ASC, rowid ASC", chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) GetMessageByID(ctx context.Context, messageID string) (*Message, error) {
	var msg Message
	err := s.db.QueryRowContext(ctx,
		"SELECT id, chat_id, role, content, created_at FROM messages WHERE id = ?", messageID).
		Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	return &msg, nil
}

// GetLatestMessage returns the newest message of a chat regardless of role.
func (s *SQLiteStore) GetLatestMessage(ctx context.Context, chatID string) (*Message, error) {
	var msg Message
	err := s.db.QueryRowContext(ctx, `
        SELECT id, chat_id, role, content, created_at FROM messages
        WHERE chat_id = ?
        ORDER BY created_at DESC, rowid DESC
        LIMIT 1`, chatID).
		Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest message: %w", err)
	}
	return &msg, nil
}

// GetLatestMessageByRole returns the newest message of a chat with the
// given role.
func (s *SQLiteStore) GetLatestMessageByRole(ctx context.Context, chatID, role string) (*Message, error) {
	var msg Message
	err := s.db.QueryRowContext(ctx, `
        SELECT id, chat_id, role, content, created_at FROM messages
        WHERE chat_id = ? AND role = ?
        ORDER BY created_at DESC, rowid DESC
        LIMIT 1`, chatID, role).
		Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest %s message: %w", role, err)
	}
	return &msg, nil
}

func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, messageID, content string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET content = ? WHERE id = ?", content, messageID)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteMessage(ctx context.Context, messageID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", messageID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CountMessages(ctx context.Context, chatID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

// Study session methods

func (s *SQLiteStore) CreateStudySession(ctx context.Context, userID string) (*StudySession, error) {
	session := &StudySession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    SessionFocused,
		StartTime: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO study_sessions (id, user_id, status, start_time) VALUES (?, ?, ?, ?)",
		session.ID, userID, session.Status, session.StartTime)
	if err != nil {
		return nil, fmt.Errorf("failed to insert study session: %w", err)
	}
	return session, nil
}

func (s *SQLiteStore) CloseStudySession(ctx context.Context, sessionID, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE study_sessions SET status = ?, end_time = ? WHERE id = ?",
		status, time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to close study session: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetStudySession(ctx context.Context, sessionID string) (*StudySession, error) {
	var session StudySession
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, status, start_time, end_time FROM study_sessions WHERE id = ?", sessionID).
		Scan(&session.ID, &session.UserID, &session.Status, &session.StartTime, &session.EndTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query study session: %w", err)
	}
	return &session, nil
}

// Feedback methods

func (s *SQLiteStore) CreateFeedback(ctx context.Context, name, email, message string) (*Feedback, error) {
	fb := &Feedback{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Message:   message,
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO feedback (id, name, email, message, created_at) VALUES (?, ?, ?, ?, ?)",
		fb.ID, name, email, message, fb.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert feedback: %w", err)
	}
	return fb, nil
}
