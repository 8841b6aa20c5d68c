package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/scholamates/neuralearn-server/internal/store"
)

const titleMaxPrefix = 30

// ErrNotLatestUserMessage is returned when an edit targets anything other
// than the most recent user message of a chat.
var ErrNotLatestUserMessage = errors.New("only the latest user message can be edited")

// ChatService orchestrates chat completions: it resolves the chat and its
// history, assembles the personalized system instruction, invokes the
// provider, and persists both sides of the exchange.
type ChatService struct {
	store *store.SQLiteStore
	llm   LLM
	log   *logrus.Logger
}

func NewChatService(st *store.SQLiteStore, llm LLM, log *logrus.Logger) *ChatService {
	return &ChatService{store: st, llm: llm, log: log}
}

// BeginOptions tune a single completion call.
type BeginOptions struct {
	// TutorMode overrides the stored tutor-mode preference for this call.
	TutorMode string
	// Regenerate suppresses persistence of the user message; set when the
	// message was already stored by an edit.
	Regenerate bool
}

// Exchange is a prepared completion: the chat is resolved (created if
// needed), the user message persisted, and the provider request assembled.
type Exchange struct {
	ChatID  string
	NewChat bool

	req CompletionRequest
}

// Begin prepares a completion. When it fails after a chat id has been
// resolved, the returned Exchange still carries that id so the caller can
// surface it for recovery.
func (s *ChatService) Begin(ctx context.Context, userID, message, chatID string, opts BeginOptions) (*Exchange, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to load profile, proceeding without personalization")
	}

	var apiKey, model string
	if profile != nil {
		apiKey = profile.GeminiAPIKey
		model = profile.CustomModel
	}

	var history []ChatTurn
	newChat := false

	if chatID == "" {
		title := s.deriveTitle(ctx, apiKey, model, message)
		chat, _, err := s.store.CreateChatWithMessage(ctx, userID, title, message)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat: %w", err)
		}
		chatID = chat.ID
		newChat = true
	} else {
		if _, err := s.store.GetChatByID(ctx, chatID, userID); err != nil {
			return nil, err
		}

		messages, err := s.store.GetMessagesByChatID(ctx, chatID)
		if err != nil {
			return &Exchange{ChatID: chatID}, fmt.Errorf("failed to load chat history: %w", err)
		}
		// On regeneration the edited user message is already the last
		// stored message; it goes out as the new message, not as history.
		if opts.Regenerate && len(messages) > 0 && messages[len(messages)-1].Role == store.RoleUser {
			messages = messages[:len(messages)-1]
		}
		for _, msg := range messages {
			history = append(history, ChatTurn{Role: msg.Role, Text: msg.Content})
		}

		if !opts.Regenerate {
			userMsg := &store.Message{ChatID: chatID, Role: store.RoleUser, Content: message}
			if err := s.store.CreateMessage(ctx, userMsg); err != nil {
				return &Exchange{ChatID: chatID}, fmt.Errorf("failed to store user message: %w", err)
			}
		}
	}

	return &Exchange{
		ChatID:  chatID,
		NewChat: newChat,
		req: CompletionRequest{
			APIKey:            apiKey,
			Model:             model,
			SystemInstruction: BuildSystemInstruction(profile, opts.TutorMode),
			History:           history,
			Message:           message,
		},
	}, nil
}

// Stream runs the prepared completion, relaying chunks through emit. The
// assistant message is persisted only after the full stream completes; on a
// mid-stream error nothing is saved.
func (s *ChatService) Stream(ctx context.Context, ex *Exchange, emit func(chunk string) error) (string, error) {
	full, err := s.llm.StreamComplete(ctx, ex.req, emit)
	if err != nil {
		return full, err
	}
	if err := s.saveModelMessage(ctx, ex.ChatID, full); err != nil {
		return full, err
	}
	return full, nil
}

// Complete runs the prepared completion in one shot.
func (s *ChatService) Complete(ctx context.Context, ex *Exchange) (string, error) {
	text, err := s.llm.Complete(ctx, ex.req)
	if err != nil {
		return "", err
	}
	if err := s.saveModelMessage(ctx, ex.ChatID, text); err != nil {
		return text, err
	}
	return text, nil
}

func (s *ChatService) saveModelMessage(ctx context.Context, chatID, content string) error {
	msg := &store.Message{ChatID: chatID, Role: store.RoleModel, Content: content}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to store model message: %w", err)
	}
	return nil
}

// Edit updates the most recent user message of a chat and deletes the
// trailing model reply so it can be regenerated. The reply is identified as
// the chat's latest message by timestamp, never by a cached id. Returns the
// chat id for the follow-up regeneration request.
func (s *ChatService) Edit(ctx context.Context, userID, messageID, content string) (string, error) {
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return "", err
	}
	if _, err := s.store.GetChatByID(ctx, msg.ChatID, userID); err != nil {
		return "", err
	}
	if msg.Role != store.RoleUser {
		return "", ErrNotLatestUserMessage
	}

	latestUser, err := s.store.GetLatestMessageByRole(ctx, msg.ChatID, store.RoleUser)
	if err != nil {
		return "", fmt.Errorf("failed to find latest user message: %w", err)
	}
	if latestUser.ID != msg.ID {
		return "", ErrNotLatestUserMessage
	}

	if err := s.store.UpdateMessageContent(ctx, messageID, content); err != nil {
		return "", fmt.Errorf("failed to update message: %w", err)
	}

	latest, err := s.store.GetLatestMessage(ctx, msg.ChatID)
	if err != nil {
		return "", fmt.Errorf("failed to find trailing message: %w", err)
	}
	if latest.Role == store.RoleModel {
		if err := s.store.DeleteMessage(ctx, latest.ID); err != nil {
			return "", fmt.Errorf("failed to delete trailing model message: %w", err)
		}
	}

	return msg.ChatID, nil
}

// ListChats returns the user's chats, newest first.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]store.Chat, error) {
	return s.store.GetChatsByUserID(ctx, userID)
}

// GetChatDetails returns a chat and its messages in creation order.
func (s *ChatService) GetChatDetails(ctx context.Context, chatID, userID string) (*store.Chat, []store.Message, error) {
	chat, err := s.store.GetChatByID(ctx, chatID, userID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.store.GetMessagesByChatID(ctx, chatID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return chat, messages, nil
}

// AnalyzeImage runs the vision prompt over an uploaded image and records
// the exchange. Persistence here is best-effort: a storage failure is
// logged and the analysis still returned.
func (s *ChatService) AnalyzeImage(ctx context.Context, userID, chatID, mimeType string, image []byte) (text string, resolvedChatID string, err error) {
	var apiKey string
	if profile, perr := s.store.GetProfile(ctx, userID); perr == nil {
		apiKey = profile.GeminiAPIKey
	}

	text, err = s.llm.AnalyzeImage(ctx, apiKey, mimeType, image, visionPrompt)
	if err != nil {
		return "", "", err
	}

	if chatID == "" {
		chat, cerr := s.store.CreateChat(ctx, userID, "Image Analysis")
		if cerr != nil {
			s.log.WithError(cerr).Warn("failed to create chat for image analysis")
			return text, "", nil
		}
		chatID = chat.ID
	}

	userMsg := &store.Message{ChatID: chatID, Role: store.RoleUser, Content: "[Image Uploaded] " + visionPrompt}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Warn("failed to store image user message")
	}
	modelMsg := &store.Message{ChatID: chatID, Role: store.RoleModel, Content: text}
	if err := s.store.CreateMessage(ctx, modelMsg); err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Warn("failed to store image model message")
	}

	return text, chatID, nil
}

// deriveTitle asks the provider for a short title, falling back to a
// truncated prefix of the first message. Title generation is best-effort.
func (s *ChatService) deriveTitle(ctx context.Context, apiKey, model, message string) string {
	title, err := s.llm.GenerateTitle(ctx, apiKey, model, message)
	if err != nil {
		s.log.WithError(err).Debug("title generation failed, using message prefix")
		return fallbackTitle(message)
	}
	return title
}

func fallbackTitle(message string) string {
	runes := []rune(message)
	if len(runes) > titleMaxPrefix {
		return string(runes[:titleMaxPrefix]) + "..."
	}
	return message
}
