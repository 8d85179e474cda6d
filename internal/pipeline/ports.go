package pipeline

import (
	"context"
	"time"

	"SafeStack/internal/models"
)

// PolicyRepository is the policy storage the pipeline reads and amends.
type PolicyRepository interface {
	ListAll(ctx context.Context) ([]models.Policy, error)
	// FindByTitle matches exactly and returns models.ErrNotFound on a miss.
	FindByTitle(ctx context.Context, title string) (*models.Policy, error)
	Get(ctx context.Context, id uint) (*models.Policy, error)
	UpdateDescription(ctx context.Context, id uint, description string) (*models.Policy, error)
}

type VideoRepository interface {
	Create(ctx context.Context, url string) (uint, error)
}

type AlertRepository interface {
	Create(ctx context.Context, in models.NewAlert) (uint, error)
	AttachAmendedImages(ctx context.Context, id uint, urls []string) error
	Get(ctx context.Context, id uint) (*models.AlertView, error)
}

// EvidenceStore uploads an image and returns its public URL.
type EvidenceStore interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
}

type Notifier interface {
	SendAlertEmail(ctx context.Context, recipient string, imageURLs []string, body, subject string) error
}

// Downloader fetches a video into a temp file owned by the caller.
type Downloader interface {
	Download(ctx context.Context, url string) (*DownloadedVideo, error)
}

// AlertSink is told about every alert the pipeline creates.
type AlertSink interface {
	AlertCreated(ctx context.Context, alert *models.AlertView)
}

// Observer receives run and per-violation outcomes, e.g. for metrics.
type Observer interface {
	RunFinished(kind string, err error, elapsed time.Duration)
	ViolationFinished(kind, stage, reason string)
}

type nopSink struct{}

func (nopSink) AlertCreated(context.Context, *models.AlertView) {}

type nopObserver struct{}

func (nopObserver) RunFinished(string, error, time.Duration) {}
func (nopObserver) ViolationFinished(string, string, string) {}
