package handlers

import (
	"encoding/base64"
	"strings"

	"SafeStack/internal/pipeline"
	"SafeStack/pkg/response"

	"github.com/gin-gonic/gin"
)

type VideoAnalysisRequest struct {
	VideoURL string `json:"video_url" binding:"required"`
}

type FrameAnalysisRequest struct {
	FrameBase64 string `json:"frame_base64" binding:"required"` // JPEG, 可带 data: 前缀
	CameraID    string `json:"camera_id" binding:"required"`
	CameraName  string `json:"camera_name"`
}

type PolicyAmendmentRequest struct {
	AlertID  uint   `json:"alert_id" binding:"required"`
	Feedback string `json:"feedback" binding:"required"`
}

// handleAnalyzeVideoFull 下载视频并跑完整流水线
func (h *Handlers) handleAnalyzeVideoFull(c *gin.Context) {
	var req VideoAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "video_url is required")
		return
	}
	summary, err := h.opts.Analyzer.RunFullAnalysis(c.Request.Context(), strings.TrimSpace(req.VideoURL))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}

func (h *Handlers) handleAnalyzeFrame(c *gin.Context) {
	var req FrameAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "frame_base64 and camera_id are required")
		return
	}
	frame, err := decodeFrame(req.FrameBase64)
	if err != nil || len(frame) == 0 {
		response.Fail(c, "frame_base64 is not valid base64")
		return
	}
	res, err := h.opts.Analyzer.AnalyzeFrame(c.Request.Context(), pipeline.FrameRequest{
		Frame:      frame,
		CameraID:   req.CameraID,
		CameraName: req.CameraName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (h *Handlers) handleAmendPolicy(c *gin.Context) {
	var req PolicyAmendmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "alert_id and feedback are required")
		return
	}
	policy, err := h.opts.Analyzer.AmendPolicy(c.Request.Context(), req.AlertID, req.Feedback)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, policy)
}

func decodeFrame(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(s)
}
