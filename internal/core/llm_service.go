package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	maxOutputTokens = 2000

	titlePromptFormat = "Generate a short, descriptive title (max 6 words) for a conversation " +
		"starting with this message. It should capture the essence of the user's intent. " +
		"Do not use quotes: %s"

	visionPrompt = "Analyze this image and explain the academic concept or solve the problem shown. " +
		"Be helpful and clear."
)

// LLMService talks to the Google generative-language API. It holds one
// client for the process-wide API key; requests carrying a per-user key get
// a short-lived client of their own.
type LLMService struct {
	client       *genai.Client
	defaultModel string
	log          *logrus.Logger
}

func NewLLMService(ctx context.Context, apiKey, defaultModel string, log *logrus.Logger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{
		client:       client,
		defaultModel: defaultModel,
		log:          log,
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log.WithError(err).Warn("error closing GenAI client")
		}
	}
}

// clientFor returns the client to use for a request. The returned cleanup
// func must be called when done; it is a no-op for the shared client.
func (s *LLMService) clientFor(ctx context.Context, apiKey string) (*genai.Client, func(), error) {
	if apiKey == "" {
		return s.client, func() {}, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GenAI client for user key: %w", err)
	}
	return client, func() {
		if err := client.Close(); err != nil {
			s.log.WithError(err).Warn("error closing per-user GenAI client")
		}
	}, nil
}

func (s *LLMService) chatSession(client *genai.Client, req CompletionRequest) *genai.ChatSession {
	modelName := req.Model
	if modelName == "" {
		modelName = s.defaultModel
	}

	model := client.GenerativeModel(modelName)
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemInstruction)},
		}
	}
	maxTokens := int32(maxOutputTokens)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
	}

	session := model.StartChat()
	for _, turn := range req.History {
		session.History = append(session.History, &genai.Content{
			Role:  turn.Role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}
	return session
}

func (s *LLMService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	client, cleanup, err := s.clientFor(ctx, req.APIKey)
	if err != nil {
		return "", err
	}
	defer cleanup()

	session := s.chatSession(client, req)
	resp, err := session.SendMessage(ctx, genai.Text(req.Message))
	if err != nil {
		return "", fmt.Errorf("gemini SendMessage failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

func (s *LLMService) StreamComplete(ctx context.Context, req CompletionRequest, emit func(chunk string) error) (string, error) {
	client, cleanup, err := s.clientFor(ctx, req.APIKey)
	if err != nil {
		return "", err
	}
	defer cleanup()

	session := s.chatSession(client, req)
	iter := session.SendMessageStream(ctx, genai.Text(req.Message))

	var full strings.Builder
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("gemini stream failed: %w", err)
		}
		chunk := responseText(resp)
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if err := emit(chunk); err != nil {
			return full.String(), fmt.Errorf("failed to relay chunk: %w", err)
		}
	}
	return full.String(), nil
}

func (s *LLMService) GenerateTitle(ctx context.Context, apiKey, modelName, message string) (string, error) {
	client, cleanup, err := s.clientFor(ctx, apiKey)
	if err != nil {
		return "", err
	}
	defer cleanup()

	if modelName == "" {
		modelName = s.defaultModel
	}
	model := client.GenerativeModel(modelName)

	temp := float32(0.3)
	maxTokens := int32(20)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(fmt.Sprintf(titlePromptFormat, message)))
	if err != nil {
		return "", fmt.Errorf("gemini title generation failed: %w", err)
	}

	title := strings.Trim(responseText(resp), "\"'\n\r\t .")
	if title == "" {
		return "", fmt.Errorf("gemini generated an empty title")
	}
	return title, nil
}

func (s *LLMService) AnalyzeImage(ctx context.Context, apiKey, mimeType string, image []byte, prompt string) (string, error) {
	client, cleanup, err := s.clientFor(ctx, apiKey)
	if err != nil {
		return "", err
	}
	defer cleanup()

	model := client.GenerativeModel(s.defaultModel)

	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.ImageData(imageFormat(mimeType), image),
	)
	if err != nil {
		return "", fmt.Errorf("gemini vision request failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty vision response")
	}
	return text, nil
}

// imageFormat maps a MIME type to the bare format name genai expects
// ("image/png" -> "png"). Unknown types default to jpeg.
func imageFormat(mimeType string) string {
	if format, ok := strings.CutPrefix(mimeType, "image/"); ok && format != "" {
		return format
	}
	return "jpeg"
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return text.String()
}
