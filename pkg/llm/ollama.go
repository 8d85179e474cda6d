package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// OllamaHandler runs frame analysis and text rewriting on a local Ollama
// server. Ollama has no video input and no image editing.
type OllamaHandler struct {
	logger    *logrus.Logger
	client    *http.Client
	ollamaURL string
	models    Models
}

// NewOllamaHandler creates a new Ollama handler
func NewOllamaHandler(ollamaURL string, models Models, logger *logrus.Logger) *OllamaHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	return &OllamaHandler{
		logger:    logger,
		client:    &http.Client{Timeout: 5 * time.Minute},
		ollamaURL: strings.TrimRight(ollamaURL, "/"),
		models:    models.withDefaults(),
	}
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

func (h *OllamaHandler) AnalyzeVideo(ctx context.Context, video []byte, mimeType, catalog string) ([]Candidate, error) {
	return nil, fmt.Errorf("ollama video analysis: %w", ErrUnsupported)
}

func (h *OllamaHandler) AnalyzeFrame(ctx context.Context, frame []byte, catalog string) ([]Candidate, error) {
	text, err := h.chat(ctx, h.models.Frame, FramePrompt(catalog), frame)
	if err != nil {
		return nil, err
	}
	candidates, _, err := ParseCandidates(text)
	if err != nil {
		return []Candidate{}, nil
	}
	return candidates, nil
}

func (h *OllamaHandler) SynthesizeFix(ctx context.Context, frame []byte, req FixRequest) ([]byte, error) {
	return nil, fmt.Errorf("ollama image synthesis: %w", ErrUnsupported)
}

func (h *OllamaHandler) RewriteDescription(ctx context.Context, prompt string) (string, error) {
	text, err := h.chat(ctx, h.models.Text, prompt, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (h *OllamaHandler) chat(ctx context.Context, model, prompt string, image []byte) (string, error) {
	msg := ollamaMessage{Role: "user", Content: prompt}
	if len(image) > 0 {
		msg.Images = []string{base64.StdEncoding.EncodeToString(image)}
	}
	body, err := json.Marshal(ollamaChatRequest{Model: model, Messages: []ollamaMessage{msg}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.ollamaURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama %s: status %d: %s", model, resp.StatusCode, out.Error)
	}
	h.logger.WithFields(logrus.Fields{"model": model, "chars": len(out.Message.Content)}).Debug("ollama answered")
	return out.Message.Content, nil
}
