package handlers

import (
	"errors"
	"net/http"

	"SafeStack/internal/models"
	"SafeStack/pkg/response"

	"github.com/gin-gonic/gin"
)

type PolicyCreate struct {
	Title       string `json:"title" binding:"required"`
	Level       *int   `json:"level" binding:"required"`
	Description string `json:"description"`
}

// ListPolicies ?level= 精确过滤
func (h *Handlers) ListPolicies(c *gin.Context) {
	level, ok := queryInt(c, "level")
	if !ok {
		response.Fail(c, "level must be an integer")
		return
	}
	policies, err := models.ListPolicies(h.db.WithContext(c.Request.Context()), level)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, policies)
}

func (h *Handlers) GetPolicy(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.NotFound(c, "Policy not found")
		return
	}
	policy, err := models.GetPolicy(h.db.WithContext(c.Request.Context()), id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Policy not found")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, policy)
}

func (h *Handlers) CreatePolicy(c *gin.Context) {
	var in PolicyCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Fail(c, "title and level are required")
		return
	}
	db := h.db.WithContext(c.Request.Context())
	if _, err := models.FindPolicyByTitle(db, in.Title); err == nil {
		response.Fail(c, "Policy already exists")
		return
	}
	policy, err := models.CreatePolicy(db, in.Title, *in.Level, in.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateCatalog(c)
	response.Created(c, policy)
}

// DeletePolicy 级联删除其告警
func (h *Handlers) DeletePolicy(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.NotFound(c, "Policy not found")
		return
	}
	err := models.DeletePolicy(h.db.WithContext(c.Request.Context()), id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Policy not found")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateCatalog(c)
	c.Status(http.StatusNoContent)
}

func (h *Handlers) invalidateCatalog(c *gin.Context) {
	if h.opts.Catalog != nil {
		h.opts.Catalog.Invalidate(c.Request.Context())
	}
}
