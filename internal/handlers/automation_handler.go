package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"craftcrm/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AutomationHandler 自动化规则接口
type AutomationHandler struct {
	service *services.AutomationService
}

func NewAutomationHandler(service *services.AutomationService) *AutomationHandler {
	return &AutomationHandler{service: service}
}

// CreateAutomation 创建规则
func (h *AutomationHandler) CreateAutomation(c *gin.Context) {
	var req services.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	req.WorkspaceID = c.Param("id")
	req.CreatedBy = c.GetString("user_id")

	rule, err := h.service.CreateRule(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to create automation", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "Automation created", Data: rule})
}

// ListAutomations 规则列表，可按 entity_id 过滤
func (h *AutomationHandler) ListAutomations(c *gin.Context) {
	rules, err := h.service.ListRules(c.Request.Context(), c.Param("id"), c.Query("entity_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list automations", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "OK", Data: rules})
}

// GetAutomation 规则详情
func (h *AutomationHandler) GetAutomation(c *gin.Context) {
	rule, err := h.service.GetRule(c.Request.Context(), c.Param("id"), c.Param("automationId"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Automation not found", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "OK", Data: rule})
}

// UpdateAutomation 更新规则（重新校验配置）
func (h *AutomationHandler) UpdateAutomation(c *gin.Context) {
	var req services.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	rule, err := h.service.UpdateRule(c.Request.Context(), c.Param("id"), c.Param("automationId"), &req)
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "failed to get") {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Failed to update automation", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Automation updated", Data: rule})
}

// DeleteAutomation 删除规则
func (h *AutomationHandler) DeleteAutomation(c *gin.Context) {
	if err := h.service.DeleteRule(c.Request.Context(), c.Param("id"), c.Param("automationId")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Automation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete automation", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Automation deleted"})
}

// ToggleAutomation 启用/停用规则
func (h *AutomationHandler) ToggleAutomation(c *gin.Context) {
	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	err := h.service.SetActive(c.Request.Context(), c.Param("id"), c.Param("automationId"), *req.IsActive)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Automation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to toggle automation", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Automation toggled"})
}

// ListAutomationLogs 规则执行日志
func (h *AutomationHandler) ListAutomationLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.service.ListLogs(c.Request.Context(), c.Param("id"), c.Param("automationId"), limit)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Failed to list logs", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "OK", Data: logs})
}

// TestAutomation 用指定记录手动触发规则
func (h *AutomationHandler) TestAutomation(c *gin.Context) {
	var req struct {
		RecordID string `json:"record_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	res, err := h.service.TestRule(c.Request.Context(), c.Param("id"), c.Param("automationId"), req.RecordID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Automation test failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Automation executed", Data: res})
}
