package pipeline

import (
	"fmt"

	"SafeStack/internal/models"
	"SafeStack/pkg/llm"
)

// Stage is the lifecycle position of one candidate violation.
type Stage int

const (
	StagePending Stage = iota
	StageFrameExtracted
	StageMatched
	StageEvidenceUploaded
	StageAlertCreated
	StageFixSynthesized
	StageNotified
	StageDropped
	StageFailed
)

var stageNames = [...]string{
	StagePending:          "pending",
	StageFrameExtracted:   "frame_extracted",
	StageMatched:          "matched",
	StageEvidenceUploaded: "evidence_uploaded",
	StageAlertCreated:     "alert_created",
	StageFixSynthesized:   "fix_synthesized",
	StageNotified:         "notified",
	StageDropped:          "dropped",
	StageFailed:           "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Terminal reports whether no further transition is allowed.
func (s Stage) Terminal() bool {
	return s == StageNotified || s == StageDropped || s == StageFailed
}

// 合法的前进路径；Dropped/Failed 可以从任何非终态进入
var nextStages = map[Stage][]Stage{
	StagePending:          {StageFrameExtracted},
	StageFrameExtracted:   {StageMatched},
	StageMatched:          {StageEvidenceUploaded, StageAlertCreated},
	StageEvidenceUploaded: {StageAlertCreated},
	StageAlertCreated:     {StageFixSynthesized, StageNotified},
	StageFixSynthesized:   {StageNotified},
}

// violation tracks one candidate through the pipeline.
type violation struct {
	candidate llm.Candidate
	stage     Stage
	reason    string

	frame      []byte
	policy     *models.Policy
	imageURL   string
	amendedURL string
	alertID    uint
}

func newViolation(c llm.Candidate) *violation {
	return &violation{candidate: c, stage: StagePending}
}

func (v *violation) advance(to Stage) error {
	for _, s := range nextStages[v.stage] {
		if s == to {
			v.stage = to
			return nil
		}
	}
	return fmt.Errorf("invalid violation transition %s -> %s", v.stage, to)
}

func (v *violation) drop(reason string) { v.end(StageDropped, reason) }
func (v *violation) fail(reason string) { v.end(StageFailed, reason) }

func (v *violation) end(stage Stage, reason string) {
	if v.stage.Terminal() {
		return
	}
	v.stage = stage
	v.reason = reason
}

