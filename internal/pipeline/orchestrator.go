package pipeline

import (
	"context"
	stderrors "errors"
	"os"
	"time"

	"SafeStack/internal/models"
	"SafeStack/pkg/errors"
	"SafeStack/pkg/frames"
	"SafeStack/pkg/llm"
	"SafeStack/pkg/logger"
	"SafeStack/pkg/notification"
	stores "SafeStack/pkg/storage"

	"go.uber.org/zap"
)

const (
	KindVideo = "video"
	KindFrame = "frame"
)

// MessageComposer renders alert email text.
type MessageComposer interface {
	Subject(policy string) string
	Body(d notification.AlertDetails) string
}

// Deps are the collaborators of an Orchestrator. Sink and Observer are optional.
type Deps struct {
	Policies   PolicyRepository
	Videos     VideoRepository
	Alerts     AlertRepository
	Catalog    *Catalog
	Vision     llm.Vision
	Frames     frames.Extractor
	Evidence   EvidenceStore
	Notifier   Notifier
	Composer   MessageComposer
	Downloader Downloader
	Sink       AlertSink
	Observer   Observer

	// AlertRecipient disables email when empty.
	AlertRecipient string
}

// Orchestrator runs the safety analysis pipeline.
type Orchestrator struct {
	Deps
}

func New(d Deps) *Orchestrator {
	if d.Sink == nil {
		d.Sink = nopSink{}
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.Catalog == nil {
		d.Catalog = NewCatalog(d.Policies, nil, 0)
	}
	return &Orchestrator{Deps: d}
}

// AlertSummary is one created alert in a video run.
type AlertSummary struct {
	AlertID         uint    `json:"alert_id"`
	PolicyName      string  `json:"policy_name"`
	PolicyLevel     int     `json:"policy_level"`
	Severity        string  `json:"severity"`
	VideoTimestamp  string  `json:"video_timestamp"`
	Description     string  `json:"description"`
	Reasoning       string  `json:"reasoning"`
	ImageURL        string  `json:"image_url"`
	AmendedImageURL *string `json:"amended_image_url"`
}

// Summary is the result of RunFullAnalysis.
type Summary struct {
	VideoID         uint           `json:"video_id"`
	VideoURL        string         `json:"video_url"`
	ViolationsFound int            `json:"violations_found"`
	AlertsCreated   int            `json:"alerts_created"`
	Alerts          []AlertSummary `json:"alerts"`
}

// RunFullAnalysis downloads the video, analyses it and records one alert per
// matched violation. Only the download and the video analysis are fatal.
func (o *Orchestrator) RunFullAnalysis(ctx context.Context, videoURL string) (*Summary, error) {
	start := time.Now()
	summary, err := o.runFull(ctx, videoURL)
	o.Observer.RunFinished(KindVideo, err, time.Since(start))
	return summary, err
}

func (o *Orchestrator) runFull(ctx context.Context, videoURL string) (*Summary, error) {
	video, err := o.Downloader.Download(ctx, videoURL)
	if err != nil {
		return nil, err
	}
	defer video.Remove()

	data, err := os.ReadFile(video.Path)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeInternal, "read temp video")
	}

	videoID, err := o.Videos.Create(ctx, videoURL)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeInternal, "record video")
	}
	log := logger.Lg.With(zap.Uint("video_id", videoID), zap.String("video_url", videoURL))

	catalog, err := o.Catalog.Text(ctx)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeInternal, "load policy catalog")
	}

	candidates, err := o.Vision.AnalyzeVideo(ctx, data, video.MimeType, catalog)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeAnalysis, "analyze video")
	}
	log.Info("video analyzed", zap.Int("candidates", len(candidates)))

	summary := &Summary{
		VideoID:         videoID,
		VideoURL:        videoURL,
		ViolationsFound: len(candidates),
		Alerts:          []AlertSummary{},
	}
	if len(candidates) == 0 {
		return summary, nil
	}

	// 先抽取全部证据帧，再写告警
	violations := make([]*violation, 0, len(candidates))
	for _, c := range candidates {
		v := newViolation(c)
		if c.Timestamp == "" || c.PolicyName == "" {
			o.finish(KindVideo, v, func() { v.drop("missing required field") })
			log.Info("candidate dropped", zap.String("reason", v.reason), zap.String("policy", c.PolicyName))
			continue
		}
		frame, err := o.Frames.ExtractFrame(ctx, video.Path, frames.ParseTimestamp(c.Timestamp))
		if err != nil {
			o.finish(KindVideo, v, func() { v.fail("frame extraction: " + err.Error()) })
			log.Warn("frame extraction failed", zap.String("timestamp", c.Timestamp), zap.String("policy", c.PolicyName), zap.Error(err))
			continue
		}
		v.frame = frame
		o.advance(KindVideo, v, StageFrameExtracted)
		violations = append(violations, v)
	}

	for _, v := range violations {
		if alert := o.processVideoViolation(ctx, videoID, videoURL, v); alert != nil {
			summary.Alerts = append(summary.Alerts, *alert)
		}
	}
	summary.AlertsCreated = len(summary.Alerts)
	log.Info("video run finished", zap.Int("violations_found", summary.ViolationsFound), zap.Int("alerts_created", summary.AlertsCreated))
	return summary, nil
}

// processVideoViolation never returns an error; failures end the violation.
func (o *Orchestrator) processVideoViolation(ctx context.Context, videoID uint, videoURL string, v *violation) *AlertSummary {
	c := v.candidate
	log := logger.Lg.With(zap.Uint("video_id", videoID), zap.String("policy", c.PolicyName), zap.String("timestamp", c.Timestamp))

	if !o.match(ctx, KindVideo, v) {
		return nil
	}

	url, err := o.Evidence.Upload(ctx, v.frame, stores.EvidenceFilename("frame", videoID))
	if err != nil {
		o.finish(KindVideo, v, func() { v.fail("upload frame: " + err.Error()) })
		log.Warn("upload frame failed", zap.Error(err))
		return nil
	}
	v.imageURL = url
	o.advance(KindVideo, v, StageEvidenceUploaded)

	vid := videoID
	alertID, err := o.Alerts.Create(ctx, models.NewAlert{
		PolicyID:       v.policy.ID,
		VideoID:        &vid,
		ImageURLs:      []string{url},
		Explanation:    c.Description,
		Reasoning:      c.Reasoning,
		Severity:       c.Severity,
		VideoTimestamp: c.Timestamp,
	})
	if err != nil {
		o.finish(KindVideo, v, func() { v.fail("create alert: " + err.Error()) })
		log.Error("create alert failed", zap.Error(err))
		return nil
	}
	v.alertID = alertID
	o.advance(KindVideo, v, StageAlertCreated)
	log.Info("alert created", zap.Uint("alert_id", alertID))

	o.synthesizeFix(ctx, videoID, v, log)
	o.Sink.AlertCreated(ctx, o.alertView(v, &vid))
	o.notify(ctx, videoURL, v, log)
	o.Observer.ViolationFinished(KindVideo, v.stage.String(), v.reason)

	out := &AlertSummary{
		AlertID:        alertID,
		PolicyName:     v.policy.Title,
		PolicyLevel:    v.policy.Level,
		Severity:       c.Severity,
		VideoTimestamp: c.Timestamp,
		Description:    c.Description,
		Reasoning:      c.Reasoning,
		ImageURL:       v.imageURL,
	}
	if v.amendedURL != "" {
		amended := v.amendedURL
		out.AmendedImageURL = &amended
	}
	return out
}

// match resolves the candidate's policy by exact title. A miss drops it.
func (o *Orchestrator) match(ctx context.Context, kind string, v *violation) bool {
	policy, err := o.Policies.FindByTitle(ctx, v.candidate.PolicyName)
	if err != nil {
		if stderrors.Is(err, models.ErrNotFound) {
			o.finish(kind, v, func() { v.drop("no matching policy") })
			logger.Info("policy not found, skipping", zap.String("policy", v.candidate.PolicyName))
		} else {
			o.finish(kind, v, func() { v.fail("policy lookup: " + err.Error()) })
			logger.Error("policy lookup failed", zap.String("policy", v.candidate.PolicyName), zap.Error(err))
		}
		return false
	}
	v.policy = policy
	o.advance(kind, v, StageMatched)
	return true
}

func (o *Orchestrator) synthesizeFix(ctx context.Context, videoID uint, v *violation, log *zap.Logger) {
	c := v.candidate
	img, err := o.Vision.SynthesizeFix(ctx, v.frame, llm.FixRequest{
		PolicyName:  c.PolicyName,
		Description: c.Description,
		Reasoning:   c.Reasoning,
		Fix:         c.Fix,
	})
	if err != nil {
		log.Warn("fix synthesis failed", zap.Error(err))
		return
	}
	url, err := o.Evidence.Upload(ctx, img, stores.EvidenceFilename("violation", videoID))
	if err != nil {
		log.Warn("upload amended image failed", zap.Error(err))
		return
	}
	if err := o.Alerts.AttachAmendedImages(ctx, v.alertID, []string{url}); err != nil {
		log.Warn("attach amended image failed", zap.Error(err))
		return
	}
	v.amendedURL = url
	o.advance(KindVideo, v, StageFixSynthesized)
}

func (o *Orchestrator) notify(ctx context.Context, videoURL string, v *violation, log *zap.Logger) {
	if o.AlertRecipient == "" || o.Notifier == nil || o.Composer == nil {
		return
	}
	c := v.candidate
	image := v.imageURL
	if v.amendedURL != "" {
		image = v.amendedURL
	}
	body := o.Composer.Body(notification.AlertDetails{
		Policy:      v.policy.Title,
		Severity:    c.Severity,
		Timestamp:   c.Timestamp,
		Description: c.Description,
		Reasoning:   c.Reasoning,
		VideoURL:    videoURL,
	})
	err := o.Notifier.SendAlertEmail(ctx, o.AlertRecipient, []string{image}, body, o.Composer.Subject(v.policy.Title))
	if err != nil {
		log.Warn("send alert email failed", zap.Error(err))
		return
	}
	o.advance(KindVideo, v, StageNotified)
}

// FrameRequest is one live camera frame.
type FrameRequest struct {
	Frame      []byte
	CameraID   string
	CameraName string
}

// FrameViolation is one alert created from a frame.
type FrameViolation struct {
	AlertID     uint   `json:"alert_id"`
	PolicyName  string `json:"policy_name"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Reasoning   string `json:"reasoning"`
}

type FrameResult struct {
	Violations    []FrameViolation `json:"violations"`
	AlertsCreated int              `json:"alerts_created"`
}

// AnalyzeFrame analyses one frame and records an alert per matched violation.
// Model failures are logged and reported as no violations.
func (o *Orchestrator) AnalyzeFrame(ctx context.Context, req FrameRequest) (*FrameResult, error) {
	start := time.Now()
	res, err := o.analyzeFrame(ctx, req)
	o.Observer.RunFinished(KindFrame, err, time.Since(start))
	return res, err
}

func (o *Orchestrator) analyzeFrame(ctx context.Context, req FrameRequest) (*FrameResult, error) {
	log := logger.Lg.With(zap.String("camera_id", req.CameraID), zap.String("camera_name", req.CameraName))
	res := &FrameResult{Violations: []FrameViolation{}}

	catalog, err := o.Catalog.Text(ctx)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeInternal, "load policy catalog")
	}
	candidates, err := o.Vision.AnalyzeFrame(ctx, req.Frame, catalog)
	if err != nil {
		log.Warn("frame analysis failed", zap.Error(err))
		return res, nil
	}

	for _, c := range candidates {
		v := newViolation(c)
		v.frame = req.Frame
		o.advance(KindFrame, v, StageFrameExtracted)
		if c.PolicyName == "" {
			o.finish(KindFrame, v, func() { v.drop("missing required field") })
			continue
		}
		if !o.match(ctx, KindFrame, v) {
			continue
		}
		alertID, err := o.Alerts.Create(ctx, models.NewAlert{
			PolicyID:    v.policy.ID,
			Explanation: c.Description,
			Reasoning:   c.Reasoning,
			Severity:    c.Severity,
		})
		if err != nil {
			o.finish(KindFrame, v, func() { v.fail("create alert: " + err.Error()) })
			log.Error("create alert failed", zap.String("policy", c.PolicyName), zap.Error(err))
			continue
		}
		v.alertID = alertID
		o.advance(KindFrame, v, StageAlertCreated)
		o.Sink.AlertCreated(ctx, o.alertView(v, nil))
		o.Observer.ViolationFinished(KindFrame, v.stage.String(), "")

		res.Violations = append(res.Violations, FrameViolation{
			AlertID:     alertID,
			PolicyName:  c.PolicyName,
			Severity:    c.Severity,
			Description: c.Description,
			Reasoning:   c.Reasoning,
		})
	}
	res.AlertsCreated = len(res.Violations)
	return res, nil
}

// advance moves v forward. A step out of order is a bug in this file, so it
// is logged at error level and the stage is left unchanged.
func (o *Orchestrator) advance(kind string, v *violation, to Stage) bool {
	if err := v.advance(to); err != nil {
		logger.Error("violation state", zap.String("kind", kind), zap.String("policy", v.candidate.PolicyName), zap.Error(err))
		return false
	}
	return true
}

func (o *Orchestrator) finish(kind string, v *violation, end func()) {
	end()
	o.Observer.ViolationFinished(kind, v.stage.String(), v.reason)
}

func (o *Orchestrator) alertView(v *violation, videoID *uint) *models.AlertView {
	c := v.candidate
	images := []string{}
	if v.imageURL != "" {
		images = append(images, v.imageURL)
	}
	amended := []string{}
	if v.amendedURL != "" {
		amended = append(amended, v.amendedURL)
	}
	return &models.AlertView{
		Alert: models.Alert{
			ID:             v.alertID,
			PolicyID:       v.policy.ID,
			VideoID:        videoID,
			ImageURLs:      images,
			AmendedImages:  amended,
			Explanation:    c.Description,
			Reasoning:      c.Reasoning,
			Severity:       c.Severity,
			VideoTimestamp: c.Timestamp,
			Timestamp:      time.Now(),
		},
		PolicyTitle: v.policy.Title,
		PolicyLevel: v.policy.Level,
	}
}
