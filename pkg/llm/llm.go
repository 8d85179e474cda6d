package llm

import (
	"context"
	"errors"
)

var (
	// ErrNoJSONArray means the model answered without any parseable JSON array.
	ErrNoJSONArray = errors.New("no JSON array in model response")
	// ErrNoImage means the image model returned no image part.
	ErrNoImage = errors.New("no image returned from model")
	// ErrUnsupported is returned by providers that lack a capability.
	ErrUnsupported = errors.New("operation not supported by provider")
)

// Vision is the model-facing contract of the safety pipeline.
type Vision interface {
	// AnalyzeVideo returns ErrNoJSONArray when the answer holds no array.
	AnalyzeVideo(ctx context.Context, video []byte, mimeType, catalog string) ([]Candidate, error)

	// AnalyzeFrame treats a missing array as "no violations".
	AnalyzeFrame(ctx context.Context, frame []byte, catalog string) ([]Candidate, error)

	// SynthesizeFix redraws frame as if req.Fix had been applied.
	SynthesizeFix(ctx context.Context, frame []byte, req FixRequest) ([]byte, error)

	// RewriteDescription runs a plain text prompt and returns the trimmed answer.
	RewriteDescription(ctx context.Context, prompt string) (string, error)
}

// Models selects the model name per capability.
type Models struct {
	Video string
	Frame string
	Image string
	Text  string
}

// DefaultModels 默认走 Gemini 的 OpenAI 兼容接口
func DefaultModels() Models {
	return Models{
		Video: "gemini-3-pro-preview",
		Frame: "gemini-2.0-flash",
		Image: "gemini-3-pro-image-preview",
		Text:  "gemini-2.0-flash",
	}
}

func (m Models) withDefaults() Models {
	d := DefaultModels()
	if m.Video == "" {
		m.Video = d.Video
	}
	if m.Frame == "" {
		m.Frame = d.Frame
	}
	if m.Image == "" {
		m.Image = d.Image
	}
	if m.Text == "" {
		m.Text = d.Text
	}
	return m
}
