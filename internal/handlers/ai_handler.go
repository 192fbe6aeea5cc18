package handlers

import (
	"net/http"

	"craftcrm/internal/services"

	"github.com/gin-gonic/gin"
)

// AIHandler AI 生成接口
type AIHandler struct {
	service *services.AIConfigService
}

func NewAIHandler(service *services.AIConfigService) *AIHandler {
	return &AIHandler{service: service}
}

type generateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// GenerateConfig 只生成配置预览，不落库
func (h *AIHandler) GenerateConfig(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	cfg, meta, err := h.service.GenerateConfig(c.Request.Context(), req.Prompt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Generation failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "OK", Data: gin.H{
		"config":   cfg,
		"metadata": meta,
	}})
}

// GenerateWorkspace 生成配置并创建工作区
func (h *AIHandler) GenerateWorkspace(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	workspace, meta, err := h.service.GenerateWorkspace(c.Request.Context(), c.GetString("user_id"), req.Prompt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Generation failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "Workspace generated", Data: gin.H{
		"workspace": workspace,
		"metadata":  meta,
	}})
}
