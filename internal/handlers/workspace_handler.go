package handlers

import (
	"net/http"
	"strings"

	"craftcrm/internal/services"

	"github.com/gin-gonic/gin"
)

// WorkspaceHandler 工作区接口
type WorkspaceHandler struct {
	service *services.WorkspaceService
}

func NewWorkspaceHandler(service *services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{service: service}
}

// CreateWorkspace 创建工作区
func (h *WorkspaceHandler) CreateWorkspace(c *gin.Context) {
	var req services.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	req.OwnerID = c.GetString("user_id")

	workspace, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "slug") {
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{Error: "Failed to create workspace", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "Workspace created", Data: workspace})
}

// ListWorkspaces 当前用户的工作区列表
func (h *WorkspaceHandler) ListWorkspaces(c *gin.Context) {
	workspaces, err := h.service.ListForUser(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list workspaces", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "OK", Data: workspaces})
}

// GetWorkspace 工作区详情
func (h *WorkspaceHandler) GetWorkspace(c *gin.Context) {
	workspace, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Workspace not found", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "OK", Data: workspace})
}

// UpdateWorkspace 更新工作区
func (h *WorkspaceHandler) UpdateWorkspace(c *gin.Context) {
	var req services.UpdateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	workspace, err := h.service.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to update workspace", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Workspace updated", Data: workspace})
}

// DeleteWorkspace 删除工作区（软删除）
func (h *WorkspaceHandler) DeleteWorkspace(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete workspace", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Workspace deleted"})
}

// GetOverview 工作区概览统计
func (h *WorkspaceHandler) GetOverview(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Workspace not found", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "OK", Data: overview})
}

// AddMember 邀请成员
func (h *WorkspaceHandler) AddMember(c *gin.Context) {
	var req services.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	req.InvitedBy = c.GetString("user_id")

	member, err := h.service.AddMember(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to add member", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "Member added", Data: member})
}

// ListMembers 成员列表
func (h *WorkspaceHandler) ListMembers(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list members", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "OK", Data: members})
}

// UpdateMemberRole 调整成员角色
func (h *WorkspaceHandler) UpdateMemberRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	if err := h.service.UpdateMemberRole(c.Request.Context(), c.Param("id"), c.Param("userId"), req.Role); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to update member role", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Member role updated"})
}

// RemoveMember 移除成员
func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
	if err := h.service.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("userId")); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to remove member", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Member removed"})
}
