package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIHandler talks to any OpenAI-compatible endpoint (OpenAI, Gemini's
// compatibility layer, a local gateway) through go-openai.
type OpenAIHandler struct {
	client     *openai.Client
	httpClient *http.Client
	models     Models
	logger     *logrus.Logger
}

// NewOpenAIHandler creates a handler; baseURL may be empty for api.openai.com.
func NewOpenAIHandler(apiKey, baseURL string, models Models, logger *logrus.Logger) *OpenAIHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	httpClient := &http.Client{Timeout: 10 * time.Minute}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = httpClient
	return &OpenAIHandler{
		client:     openai.NewClientWithConfig(cfg),
		httpClient: httpClient,
		models:     models.withDefaults(),
		logger:     logger,
	}
}

func (h *OpenAIHandler) AnalyzeVideo(ctx context.Context, video []byte, mimeType, catalog string) ([]Candidate, error) {
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	h.logger.WithFields(logrus.Fields{"model": h.models.Video, "bytes": len(video)}).Info("sending video for analysis")

	text, err := h.complete(ctx, h.models.Video, VideoPrompt(catalog), dataURI(mimeType, video))
	if err != nil {
		return nil, err
	}
	candidates, dropped, err := ParseCandidates(text)
	if err != nil {
		h.logger.WithField("response", truncate(text, 500)).Warn("video analysis returned no JSON array")
		return nil, err
	}
	if dropped > 0 {
		h.logger.WithField("dropped", dropped).Warn("skipped malformed violation entries")
	}
	return candidates, nil
}

func (h *OpenAIHandler) AnalyzeFrame(ctx context.Context, frame []byte, catalog string) ([]Candidate, error) {
	text, err := h.complete(ctx, h.models.Frame, FramePrompt(catalog), dataURI("image/jpeg", frame))
	if err != nil {
		return nil, err
	}
	candidates, _, err := ParseCandidates(text)
	if err != nil {
		// 单帧路径：没有数组视为无违规
		return []Candidate{}, nil
	}
	return candidates, nil
}

func (h *OpenAIHandler) SynthesizeFix(ctx context.Context, frame []byte, req FixRequest) ([]byte, error) {
	// go-openai 的图片编辑接口需要带文件名的 multipart
	f, err := os.CreateTemp("", "safestack-frame-*.jpg")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	defer f.Close()
	if _, err := f.Write(frame); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	edit := openai.ImageEditRequest{
		Image:  f,
		Prompt: FixPrompt(req),
		Model:  h.models.Image,
		N:      1,
	}
	if !strings.HasPrefix(h.models.Image, "gpt-image") {
		edit.ResponseFormat = openai.CreateImageResponseFormatB64JSON
	}
	resp, err := h.client.CreateEditImage(ctx, edit)
	if err != nil {
		return nil, fmt.Errorf("image edit: %w", err)
	}
	for _, d := range resp.Data {
		if d.B64JSON != "" {
			return base64.StdEncoding.DecodeString(d.B64JSON)
		}
		if d.URL != "" {
			return h.fetch(ctx, d.URL)
		}
	}
	return nil, ErrNoImage
}

func (h *OpenAIHandler) RewriteDescription(ctx context.Context, prompt string) (string, error) {
	text, err := h.complete(ctx, h.models.Text, prompt, "")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// complete sends one user turn with an optional inline media part.
func (h *OpenAIHandler) complete(ctx context.Context, model, prompt, mediaURI string) (string, error) {
	parts := make([]openai.ChatMessagePart, 0, 2)
	if mediaURI != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: mediaURI, Detail: openai.ImageURLDetailHigh},
		})
	}
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: prompt})

	resp, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (h *OpenAIHandler) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch generated image: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func dataURI(mimeType string, b []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
