package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"SafeStack/internal/models"
	"SafeStack/pkg/i18n"
	"SafeStack/pkg/llm"
	"SafeStack/pkg/notification"
	"SafeStack/pkg/util"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeVision struct {
	videoCandidates []llm.Candidate
	videoErr        error
	frameCandidates []llm.Candidate
	frameErr        error
	fixImage        []byte
	fixErr          error
	rewrite         string
	rewriteErr      error

	videoCalls   int
	lastCatalog  string
	lastMimeType string
	lastPrompt   string
	fixRequests  []llm.FixRequest
}

func (f *fakeVision) AnalyzeVideo(_ context.Context, _ []byte, mimeType, catalog string) ([]llm.Candidate, error) {
	f.videoCalls++
	f.lastMimeType = mimeType
	f.lastCatalog = catalog
	return f.videoCandidates, f.videoErr
}

func (f *fakeVision) AnalyzeFrame(_ context.Context, _ []byte, catalog string) ([]llm.Candidate, error) {
	f.lastCatalog = catalog
	return f.frameCandidates, f.frameErr
}

func (f *fakeVision) SynthesizeFix(_ context.Context, _ []byte, req llm.FixRequest) ([]byte, error) {
	f.fixRequests = append(f.fixRequests, req)
	if f.fixErr != nil {
		return nil, f.fixErr
	}
	return f.fixImage, nil
}

func (f *fakeVision) RewriteDescription(_ context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.rewrite, f.rewriteErr
}

// fakeFrames fails for the listed second offsets.
type fakeFrames struct {
	failAt  map[float64]bool
	offsets []float64
}

func (f *fakeFrames) ExtractFrame(_ context.Context, videoPath string, seconds float64) ([]byte, error) {
	f.offsets = append(f.offsets, seconds)
	if _, err := os.Stat(videoPath); err != nil {
		return nil, err
	}
	if f.failAt[seconds] {
		return nil, errors.New("frame read failed")
	}
	return []byte("jpeg-frame"), nil
}

type fakeEvidence struct {
	mu        sync.Mutex
	filenames []string
	failKind  string
}

func (f *fakeEvidence) Upload(_ context.Context, _ []byte, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKind != "" && strings.HasPrefix(filename, f.failKind+"_") {
		return "", errors.New("bucket unavailable")
	}
	f.filenames = append(f.filenames, filename)
	return "https://cdn.test/images/" + filename, nil
}

type sentMail struct {
	recipient string
	images    []string
	body      string
	subject   string
}

type fakeNotifier struct {
	sent []sentMail
	err  error
}

func (f *fakeNotifier) SendAlertEmail(_ context.Context, recipient string, imageURLs []string, body, subject string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{recipient, imageURLs, body, subject})
	return nil
}

type fakeDownloader struct {
	dir   string
	err   error
	paths []string
}

func (f *fakeDownloader) Download(_ context.Context, url string) (*DownloadedVideo, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := filepath.Join(f.dir, fmt.Sprintf("video-%d.mp4", len(f.paths)))
	if err := os.WriteFile(p, []byte("fake video "+url), 0o600); err != nil {
		return nil, err
	}
	f.paths = append(f.paths, p)
	return &DownloadedVideo{Path: p, MimeType: "video/mp4", Size: 16}, nil
}

// failingAlerts fails Create for the listed policy ids.
type failingAlerts struct {
	AlertRepository
	failPolicy map[uint]bool
	attempts   int
}

func (f *failingAlerts) Create(ctx context.Context, in models.NewAlert) (uint, error) {
	f.attempts++
	if f.failPolicy[in.PolicyID] {
		return 0, errors.New("database is locked")
	}
	return f.AlertRepository.Create(ctx, in)
}

// failAlertsFor swaps in a failingAlerts that rejects alerts for title.
func (h *harness) failAlertsFor(t *testing.T, title string) *failingAlerts {
	t.Helper()
	p, err := models.FindPolicyByTitle(h.db, title)
	require.NoError(t, err)
	fa := &failingAlerts{AlertRepository: h.orch.Alerts, failPolicy: map[uint]bool{p.ID: true}}
	h.orch.Alerts = fa
	return fa
}

type recordingSink struct {
	alerts []*models.AlertView
}

func (r *recordingSink) AlertCreated(_ context.Context, alert *models.AlertView) {
	r.alerts = append(r.alerts, alert)
}

type recordingObserver struct {
	runs       map[string]int
	runErrors  int
	finalStage map[Stage]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{runs: map[string]int{}, finalStage: map[Stage]int{}}
}

func (r *recordingObserver) RunFinished(kind string, err error, _ time.Duration) {
	r.runs[kind]++
	if err != nil {
		r.runErrors++
	}
}

func (r *recordingObserver) ViolationFinished(_, stage, _ string) {
	for s, name := range stageNames {
		if name == stage {
			r.finalStage[Stage(s)]++
		}
	}
}

type harness struct {
	db       *gorm.DB
	vision   *fakeVision
	frames   *fakeFrames
	evidence *fakeEvidence
	notifier *fakeNotifier
	download *fakeDownloader
	sink     *recordingSink
	observer *recordingObserver
	orch     *Orchestrator
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := util.InitDatabase("sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newTestDB(t)
	_, err := models.CreatePolicy(db, "Hard Hat Required", 3, "Everyone on site wears a hard hat.")
	require.NoError(t, err)
	_, err = models.CreatePolicy(db, "Hi-Vis Vest", 2, "Wear a high visibility vest near vehicles.")
	require.NoError(t, err)

	tr, err := i18n.NewI18nSupport("en")
	require.NoError(t, err)

	h := &harness{
		db:       db,
		vision:   &fakeVision{fixImage: []byte("png-fix")},
		frames:   &fakeFrames{failAt: map[float64]bool{}},
		evidence: &fakeEvidence{},
		notifier: &fakeNotifier{},
		download: &fakeDownloader{dir: t.TempDir()},
		sink:     &recordingSink{},
		observer: newRecordingObserver(),
	}
	repo := NewGormRepository(db)
	h.orch = New(Deps{
		Policies:       repo.Policies(),
		Videos:         repo.Videos(),
		Alerts:         repo.Alerts(),
		Vision:         h.vision,
		Frames:         h.frames,
		Evidence:       h.evidence,
		Notifier:       h.notifier,
		Composer:       notification.NewComposer(tr, "en"),
		Downloader:     h.download,
		Sink:           h.sink,
		Observer:       h.observer,
		AlertRecipient: "safety@example.com",
	})
	return h
}

func (h *harness) assertTempFilesRemoved(t *testing.T) {
	t.Helper()
	for _, p := range h.download.paths {
		_, err := os.Stat(p)
		require.True(t, os.IsNotExist(err), "temp video %s still exists", p)
	}
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Count(&n).Error)
	return n
}
