package handlers

import (
	"errors"
	"net/http"
	"strings"

	"SafeStack/internal/models"
	"SafeStack/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserCreate struct {
	Email string `json:"email" binding:"required"`
	Name  string `json:"name" binding:"required"`
}

func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := models.ListUsers(h.db.WithContext(c.Request.Context()))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

func (h *Handlers) GetUser(c *gin.Context) {
	user, err := models.GetUser(h.db.WithContext(c.Request.Context()), c.Param("email"))
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "User not found")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

func (h *Handlers) CreateUser(c *gin.Context) {
	var in UserCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Fail(c, "email and name are required")
		return
	}
	user, err := models.CreateUser(h.db.WithContext(c.Request.Context()), strings.TrimSpace(in.Email), in.Name)
	if errors.Is(err, models.ErrDuplicate) {
		response.Fail(c, "User already exists")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

func (h *Handlers) DeleteUser(c *gin.Context) {
	err := models.DeleteUser(h.db.WithContext(c.Request.Context()), c.Param("email"))
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "User not found")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
