package handlers

import (
	"net/http"
	"strings"

	"craftcrm/internal/services"

	"github.com/gin-gonic/gin"
)

// EntityHandler 实体（记录模式）接口
type EntityHandler struct {
	service *services.EntityService
}

func NewEntityHandler(service *services.EntityService) *EntityHandler {
	return &EntityHandler{service: service}
}

// CreateEntity 创建实体
func (h *EntityHandler) CreateEntity(c *gin.Context) {
	var req services.CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	req.CreatedBy = c.GetString("user_id")

	entity, err := h.service.Create(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "failed to") {
			status = http.StatusInternalServerError
		}
		c.JSON(status, ErrorResponse{Error: "Failed to create entity", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "Entity created", Data: entity})
}

// ListEntities 工作区内实体列表
func (h *EntityHandler) ListEntities(c *gin.Context) {
	entities, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list entities", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "OK", Data: entities})
}

// GetEntity 实体详情
func (h *EntityHandler) GetEntity(c *gin.Context) {
	entity, err := h.service.Get(c.Request.Context(), c.Param("id"), c.Param("entityId"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Entity not found", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "OK", Data: entity})
}

// UpdateEntity 更新实体模式
func (h *EntityHandler) UpdateEntity(c *gin.Context) {
	var req services.UpdateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	entity, err := h.service.Update(c.Request.Context(), c.Param("id"), c.Param("entityId"), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to update entity", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Entity updated", Data: entity})
}

// DeleteEntity 删除实体
func (h *EntityHandler) DeleteEntity(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), c.Param("entityId")); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Failed to delete entity", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Entity deleted"})
}
