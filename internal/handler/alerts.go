package handlers

import (
	"errors"
	"net/http"
	"strings"

	"SafeStack/internal/models"
	"SafeStack/pkg/response"
	"SafeStack/pkg/search"

	"github.com/gin-gonic/gin"
)

type AlertCreate struct {
	PolicyID    uint     `json:"policy_id" binding:"required"`
	ImageURLs   []string `json:"image_urls"`
	Explanation string   `json:"explanation" binding:"required"`
	UserEmail   *string  `json:"user_email"`
}

// AlertHit 检索结果，附带相关度
type AlertHit struct {
	models.AlertView
	Score float64 `json:"score"`
}

func (h *Handlers) ListAlerts(c *gin.Context) {
	var f models.AlertFilter
	policyID, ok := queryInt(c, "policy_id")
	if !ok {
		response.Fail(c, "policy_id must be an integer")
		return
	}
	if policyID != nil {
		id := uint(*policyID)
		f.PolicyID = &id
	}
	if f.MinLevel, ok = queryInt(c, "min_level"); !ok {
		response.Fail(c, "min_level must be an integer")
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		response.Fail(c, "limit must be an integer")
		return
	}
	if limit != nil {
		f.Limit = *limit
	}
	f.UserEmail = c.Query("user_email")

	alerts, err := models.ListAlerts(h.db.WithContext(c.Request.Context()), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, alerts)
}

func (h *Handlers) GetAlert(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.NotFound(c, "Alert not found")
		return
	}
	alert, err := models.GetAlert(h.db.WithContext(c.Request.Context()), id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Alert not found")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, alert)
}

// CreateAlert 手工告警；policy 或 user 不存在时 400
func (h *Handlers) CreateAlert(c *gin.Context) {
	var in AlertCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Fail(c, "policy_id and explanation are required")
		return
	}
	db := h.db.WithContext(c.Request.Context())
	if _, err := models.GetPolicy(db, in.PolicyID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.Fail(c, "Policy not found")
			return
		}
		response.Error(c, err)
		return
	}
	if in.UserEmail != nil && *in.UserEmail == "" {
		in.UserEmail = nil
	}
	if in.UserEmail != nil {
		if _, err := models.GetUser(db, *in.UserEmail); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				response.Fail(c, "User not found")
				return
			}
			response.Error(c, err)
			return
		}
	}

	created, err := models.CreateAlert(db, models.NewAlert{
		PolicyID:    in.PolicyID,
		ImageURLs:   in.ImageURLs,
		Explanation: in.Explanation,
		UserEmail:   in.UserEmail,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := models.GetAlert(db, created.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.opts.Signals.Emit(models.SigAlertCreated, view)
	response.Created(c, view)
}

func (h *Handlers) DeleteAlert(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.NotFound(c, "Alert not found")
		return
	}
	err := models.DeleteAlert(h.db.WithContext(c.Request.Context()), id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Alert not found")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	h.opts.Signals.Emit(models.SigAlertDeleted, id)
	c.Status(http.StatusNoContent)
}

func (h *Handlers) StreamAlerts(c *gin.Context) {
	if h.opts.Hub == nil {
		response.Abort(c, http.StatusServiceUnavailable, "alert stream disabled")
		return
	}
	h.opts.Hub.Serve(c)
}

// SearchAlerts ?q=&min_level=&limit=；索引里已删除的告警会被跳过
func (h *Handlers) SearchAlerts(c *gin.Context) {
	if h.opts.Search == nil {
		response.Abort(c, http.StatusServiceUnavailable, "alert search disabled")
		return
	}
	req := search.Request{Query: strings.TrimSpace(c.Query("q"))}
	minLevel, ok := queryInt(c, "min_level")
	if !ok {
		response.Fail(c, "min_level must be an integer")
		return
	}
	if minLevel != nil {
		req.MinLevel = *minLevel
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		response.Fail(c, "limit must be an integer")
		return
	}
	if limit != nil {
		req.Limit = *limit
	}

	hits, err := h.opts.Search.Search(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	db := h.db.WithContext(c.Request.Context())
	out := make([]AlertHit, 0, len(hits))
	for _, hit := range hits {
		alert, err := models.GetAlert(db, hit.AlertID)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			response.Error(c, err)
			return
		}
		out = append(out, AlertHit{AlertView: *alert, Score: hit.Score})
	}
	response.Success(c, out)
}
