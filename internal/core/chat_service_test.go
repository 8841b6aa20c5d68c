package core

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/scholamates/neuralearn-server/internal/store"
)

// mockLLM lets each test plug in just the provider behavior it needs.
type mockLLM struct {
	completeFunc func(ctx context.Context, req CompletionRequest) (string, error)
	streamFunc   func(ctx context.Context, req CompletionRequest, emit func(chunk string) error) (string, error)
	titleFunc    func(ctx context.Context, apiKey, model, message string) (string, error)
	visionFunc   func(ctx context.Context, apiKey, mimeType string, image []byte, prompt string) (string, error)
}

func (m *mockLLM) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if m.completeFunc == nil {
		return "", errors.New("complete not configured")
	}
	return m.completeFunc(ctx, req)
}

func (m *mockLLM) StreamComplete(ctx context.Context, req CompletionRequest, emit func(chunk string) error) (string, error) {
	if m.streamFunc == nil {
		return "", errors.New("stream not configured")
	}
	return m.streamFunc(ctx, req, emit)
}

func (m *mockLLM) GenerateTitle(ctx context.Context, apiKey, model, message string) (string, error) {
	if m.titleFunc == nil {
		return "", errors.New("title not configured")
	}
	return m.titleFunc(ctx, apiKey, model, message)
}

func (m *mockLLM) AnalyzeImage(ctx context.Context, apiKey, mimeType string, image []byte, prompt string) (string, error) {
	if m.visionFunc == nil {
		return "", errors.New("vision not configured")
	}
	return m.visionFunc(ctx, apiKey, mimeType, image, prompt)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newCoreTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *store.SQLiteStore) *store.User {
	t.Helper()
	ctx := context.Background()
	if _, err := s.InsertDeviceCode(ctx, "test-code"); err != nil {
		t.Fatalf("failed to provision device code: %v", err)
	}
	user, err := s.CreateUserWithProfile(ctx, "tester", "tester@example.com", "hash", "test-code")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestBeginNewChatUsesGeneratedTitle(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	llm := &mockLLM{
		titleFunc: func(ctx context.Context, apiKey, model, message string) (string, error) {
			return "Group Theory Basics", nil
		},
	}
	svc := NewChatService(st, llm, testLogger())
	ctx := context.Background()

	ex, err := svc.Begin(ctx, user.ID, "What is a group?", "", BeginOptions{})
	if err != nil {
		t.Fatalf("failed to begin chat: %v", err)
	}
	if !ex.NewChat || ex.ChatID == "" {
		t.Fatalf("expected a new chat, got %+v", ex)
	}

	chat, err := st.GetChatByID(ctx, ex.ChatID, user.ID)
	if err != nil {
		t.Fatalf("failed to load chat: %v", err)
	}
	if chat.Title != "Group Theory Basics" {
		t.Errorf("expected generated title, got %q", chat.Title)
	}

	messages, err := st.GetMessagesByChatID(ctx, ex.ChatID)
	if err != nil {
		t.Fatalf("failed to load messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Role != store.RoleUser || messages[0].Content != "What is a group?" {
		t.Errorf("expected the user message to be persisted, got %+v", messages)
	}
}

func TestBeginNewChatTitleFallback(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	llm := &mockLLM{
		titleFunc: func(ctx context.Context, apiKey, model, message string) (string, error) {
			return "", errors.New("provider down")
		},
	}
	svc := NewChatService(st, llm, testLogger())
	ctx := context.Background()

	long := strings.Repeat("a", 40)
	ex, err := svc.Begin(ctx, user.ID, long, "", BeginOptions{})
	if err != nil {
		t.Fatalf("failed to begin chat: %v", err)
	}

	chat, err := st.GetChatByID(ctx, ex.ChatID, user.ID)
	if err != nil {
		t.Fatalf("failed to load chat: %v", err)
	}
	want := strings.Repeat("a", 30) + "..."
	if chat.Title != want {
		t.Errorf("expected truncated title %q, got %q", want, chat.Title)
	}
}

func TestBeginExistingChatBuildsHistory(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	svc := NewChatService(st, &mockLLM{}, testLogger())
	ctx := context.Background()

	chat, _, err := st.CreateChatWithMessage(ctx, user.ID, "t", "first question")
	if err != nil {
		t.Fatalf("failed to seed chat: %v", err)
	}
	if err := st.CreateMessage(ctx, &store.Message{ChatID: chat.ID, Role: store.RoleModel, Content: "first answer"}); err != nil {
		t.Fatalf("failed to seed reply: %v", err)
	}

	ex, err := svc.Begin(ctx, user.ID, "second question", chat.ID, BeginOptions{})
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if ex.NewChat {
		t.Error("existing chat flagged as new")
	}
	if len(ex.req.History) != 2 {
		t.Fatalf("expected 2 history turns, got %d", len(ex.req.History))
	}
	if ex.req.History[0].Text != "first question" || ex.req.History[1].Text != "first answer" {
		t.Errorf("unexpected history: %+v", ex.req.History)
	}
	if ex.req.Message != "second question" {
		t.Errorf("unexpected outgoing message: %q", ex.req.Message)
	}

	n, err := st.CountMessages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("failed to count messages: %v", err)
	}
	if n != 3 {
		t.Errorf("expected the new user message to be persisted, got %d messages", n)
	}
}

func TestBeginRegenerateDoesNotDuplicateUserMessage(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	svc := NewChatService(st, &mockLLM{}, testLogger())
	ctx := context.Background()

	chat, _, err := st.CreateChatWithMessage(ctx, user.ID, "t", "edited question")
	if err != nil {
		t.Fatalf("failed to seed chat: %v", err)
	}

	ex, err := svc.Begin(ctx, user.ID, "edited question", chat.ID, BeginOptions{Regenerate: true})
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}

	// The stored message goes out as the new message, not as history.
	if len(ex.req.History) != 0 {
		t.Errorf("expected empty history on regeneration, got %+v", ex.req.History)
	}
	n, err := st.CountMessages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("failed to count messages: %v", err)
	}
	if n != 1 {
		t.Errorf("regeneration should not store another user message, got %d messages", n)
	}
}

func TestBeginUnknownChat(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	svc := NewChatService(st, &mockLLM{}, testLogger())

	_, err := svc.Begin(context.Background(), user.ID, "hi", "no-such-chat", BeginOptions{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBeginAppliesTutorModeOverride(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	svc := NewChatService(st, &mockLLM{titleFunc: func(context.Context, string, string, string) (string, error) {
		return "t", nil
	}}, testLogger())

	ex, err := svc.Begin(context.Background(), user.ID, "hi", "", BeginOptions{TutorMode: "direct"})
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if !strings.Contains(ex.req.SystemInstruction, "Teach directly") {
		t.Errorf("tutor mode override missing from system instruction:\n%s", ex.req.SystemInstruction)
	}
}

func TestStreamPersistsFullResponse(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	llm := &mockLLM{
		titleFunc: func(context.Context, string, string, string) (string, error) { return "t", nil },
		streamFunc: func(ctx context.Context, req CompletionRequest, emit func(string) error) (string, error) {
			for _, chunk := range []string{"Hello", ", ", "world"} {
				if err := emit(chunk); err != nil {
					return "", err
				}
			}
			return "Hello, world", nil
		},
	}
	svc := NewChatService(st, llm, testLogger())
	ctx := context.Background()

	ex, err := svc.Begin(ctx, user.ID, "hi", "", BeginOptions{})
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}

	var got strings.Builder
	full, err := svc.Stream(ctx, ex, func(chunk string) error {
		got.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if full != "Hello, world" || got.String() != "Hello, world" {
		t.Errorf("expected full text relayed, got full=%q emitted=%q", full, got.String())
	}

	messages, err := st.GetMessagesByChatID(ctx, ex.ChatID)
	if err != nil {
		t.Fatalf("failed to load messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected user and model messages, got %d", len(messages))
	}
	if messages[1].Role != store.RoleModel || messages[1].Content != "Hello, world" {
		t.Errorf("unexpected model message: %+v", messages[1])
	}
}

func TestStreamErrorSavesNoModelMessage(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	llm := &mockLLM{
		titleFunc: func(context.Context, string, string, string) (string, error) { return "t", nil },
		streamFunc: func(ctx context.Context, req CompletionRequest, emit func(string) error) (string, error) {
			_ = emit("partial")
			return "partial", errors.New("connection reset")
		},
	}
	svc := NewChatService(st, llm, testLogger())
	ctx := context.Background()

	ex, err := svc.Begin(ctx, user.ID, "hi", "", BeginOptions{})
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}

	if _, err := svc.Stream(ctx, ex, func(string) error { return nil }); err == nil {
		t.Fatal("expected the stream error to surface")
	}

	n, err := st.CountMessages(ctx, ex.ChatID)
	if err != nil {
		t.Fatalf("failed to count messages: %v", err)
	}
	if n != 1 {
		t.Errorf("partial response must not be persisted, got %d messages", n)
	}
}

func TestEditLatestUserMessage(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	svc := NewChatService(st, &mockLLM{}, testLogger())
	ctx := context.Background()

	chat, question, err := st.CreateChatWithMessage(ctx, user.ID, "t", "original question")
	if err != nil {
		t.Fatalf("failed to seed chat: %v", err)
	}
	reply := &store.Message{ChatID: chat.ID, Role: store.RoleModel, Content: "stale answer"}
	if err := st.CreateMessage(ctx, reply); err != nil {
		t.Fatalf("failed to seed reply: %v", err)
	}

	chatID, err := svc.Edit(ctx, user.ID, question.ID, "better question")
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if chatID != chat.ID {
		t.Errorf("expected chat id %s, got %s", chat.ID, chatID)
	}

	messages, err := st.GetMessagesByChatID(ctx, chat.ID)
	if err != nil {
		t.Fatalf("failed to load messages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected the stale reply to be deleted, got %d messages", len(messages))
	}
	if messages[0].Content != "better question" {
		t.Errorf("expected updated content, got %q", messages[0].Content)
	}
}

func TestEditRejectsNonLatestUserMessage(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	svc := NewChatService(st, &mockLLM{}, testLogger())
	ctx := context.Background()

	chat, first, err := st.CreateChatWithMessage(ctx, user.ID, "t", "first question")
	if err != nil {
		t.Fatalf("failed to seed chat: %v", err)
	}
	if err := st.CreateMessage(ctx, &store.Message{ChatID: chat.ID, Role: store.RoleModel, Content: "answer"}); err != nil {
		t.Fatalf("failed to seed reply: %v", err)
	}
	if err := st.CreateMessage(ctx, &store.Message{ChatID: chat.ID, Role: store.RoleUser, Content: "second question"}); err != nil {
		t.Fatalf("failed to seed second question: %v", err)
	}

	if _, err := svc.Edit(ctx, user.ID, first.ID, "rewritten"); !errors.Is(err, ErrNotLatestUserMessage) {
		t.Errorf("expected ErrNotLatestUserMessage, got %v", err)
	}
}

func TestEditRejectsModelMessage(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	svc := NewChatService(st, &mockLLM{}, testLogger())
	ctx := context.Background()

	chat, _, err := st.CreateChatWithMessage(ctx, user.ID, "t", "question")
	if err != nil {
		t.Fatalf("failed to seed chat: %v", err)
	}
	reply := &store.Message{ChatID: chat.ID, Role: store.RoleModel, Content: "answer"}
	if err := st.CreateMessage(ctx, reply); err != nil {
		t.Fatalf("failed to seed reply: %v", err)
	}

	if _, err := svc.Edit(ctx, user.ID, reply.ID, "rewritten"); !errors.Is(err, ErrNotLatestUserMessage) {
		t.Errorf("expected ErrNotLatestUserMessage, got %v", err)
	}
}

func TestEditRejectsOtherUsersChat(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	svc := NewChatService(st, &mockLLM{}, testLogger())
	ctx := context.Background()

	_, question, err := st.CreateChatWithMessage(ctx, user.ID, "t", "question")
	if err != nil {
		t.Fatalf("failed to seed chat: %v", err)
	}

	if _, err := svc.Edit(ctx, "someone-else", question.ID, "rewritten"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalyzeImageCreatesChat(t *testing.T) {
	st := newCoreTestStore(t)
	user := createTestUser(t, st)
	llm := &mockLLM{
		visionFunc: func(ctx context.Context, apiKey, mimeType string, image []byte, prompt string) (string, error) {
			return "A right triangle.", nil
		},
	}
	svc := NewChatService(st, llm, testLogger())
	ctx := context.Background()

	text, chatID, err := svc.AnalyzeImage(ctx, user.ID, "", "image/png", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if text != "A right triangle." {
		t.Errorf("unexpected analysis text %q", text)
	}

	chat, err := st.GetChatByID(ctx, chatID, user.ID)
	if err != nil {
		t.Fatalf("failed to load chat: %v", err)
	}
	if chat.Title != "Image Analysis" {
		t.Errorf("unexpected chat title %q", chat.Title)
	}

	messages, err := st.GetMessagesByChatID(ctx, chatID)
	if err != nil {
		t.Fatalf("failed to load messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected both sides of the exchange stored, got %d", len(messages))
	}
	if !strings.HasPrefix(messages[0].Content, "[Image Uploaded]") {
		t.Errorf("unexpected user message %q", messages[0].Content)
	}
	if messages[1].Content != "A right triangle." {
		t.Errorf("unexpected model message %q", messages[1].Content)
	}
}
