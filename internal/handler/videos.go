package handlers

import (
	"errors"
	"net/http"

	"SafeStack/internal/models"
	"SafeStack/pkg/response"

	"github.com/gin-gonic/gin"
)

type VideoCreate struct {
	URL string `json:"url" binding:"required"`
}

func (h *Handlers) ListVideos(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		response.Fail(c, "limit must be an integer")
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}
	videos, err := models.ListVideos(h.db.WithContext(c.Request.Context()), n)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, videos)
}

func (h *Handlers) GetVideo(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.NotFound(c, "Video not found")
		return
	}
	video, err := models.GetVideo(h.db.WithContext(c.Request.Context()), id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Video not found")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, video)
}

func (h *Handlers) CreateVideo(c *gin.Context) {
	var in VideoCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Fail(c, "url is required")
		return
	}
	video, err := models.CreateVideo(h.db.WithContext(c.Request.Context()), in.URL)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, video)
}

// DeleteVideo 其告警保留，video_id 置空
func (h *Handlers) DeleteVideo(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.NotFound(c, "Video not found")
		return
	}
	err := models.DeleteVideo(h.db.WithContext(c.Request.Context()), id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Video not found")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
