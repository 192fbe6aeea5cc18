package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"craftcrm/internal/services"

	"github.com/gin-gonic/gin"
)

// RecordHandler 记录接口
type RecordHandler struct {
	service *services.RecordService
}

func NewRecordHandler(service *services.RecordService) *RecordHandler {
	return &RecordHandler{service: service}
}

// CreateRecord 创建记录
func (h *RecordHandler) CreateRecord(c *gin.Context) {
	var req services.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	req.CreatedBy = c.GetString("user_id")

	record, err := h.service.Create(c.Request.Context(), c.Param("id"), c.Param("entityId"), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to create record", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "Record created", Data: record})
}

// ListRecords 记录列表（分页 + 过滤）
func (h *RecordHandler) ListRecords(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	records, total, err := h.service.List(c.Request.Context(), c.Param("id"), c.Param("entityId"), services.ListRecordsOptions{
		IncludeArchived: c.Query("include_archived") == "true",
		Tag:             c.Query("tag"),
		Page:            page,
		PageSize:        pageSize,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list records", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, PaginatedResponse{Data: records, Total: total, Page: page, PageSize: pageSize})
}

// GetRecord 记录详情
func (h *RecordHandler) GetRecord(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"), c.Param("recordId"))
	if err != nil {
		h.notFoundOrError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "OK", Data: record})
}

// UpdateRecord 合并更新记录
func (h *RecordHandler) UpdateRecord(c *gin.Context) {
	var req services.UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	record, err := h.service.Update(c.Request.Context(), c.Param("id"), c.Param("recordId"), &req)
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Record not found"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to update record", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Record updated", Data: record})
}

// ArchiveRecord 归档/恢复
func (h *RecordHandler) ArchiveRecord(c *gin.Context) {
	var req struct {
		Archived *bool `json:"archived" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	record, err := h.service.SetArchived(c.Request.Context(), c.Param("id"), c.Param("recordId"), *req.Archived)
	if err != nil {
		h.notFoundOrError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Record archive state updated", Data: record})
}

// DeleteRecord 永久删除
func (h *RecordHandler) DeleteRecord(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), c.Param("recordId")); err != nil {
		h.notFoundOrError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Record deleted"})
}

// BulkDeleteRecords 批量删除
func (h *RecordHandler) BulkDeleteRecords(c *gin.Context) {
	var req struct {
		RecordIDs []string `json:"record_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	deleted, err := h.service.BulkDelete(c.Request.Context(), c.Param("id"), req.RecordIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete records", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Records deleted", Data: gin.H{"deleted": deleted}})
}

// BulkArchiveRecords 批量归档/恢复
func (h *RecordHandler) BulkArchiveRecords(c *gin.Context) {
	var req struct {
		RecordIDs []string `json:"record_ids" binding:"required"`
		Archived  *bool    `json:"archived" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	updated, err := h.service.BulkSetArchived(c.Request.Context(), c.Param("id"), req.RecordIDs, *req.Archived)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to archive records", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Records archive state updated", Data: gin.H{"updated": updated}})
}

func (h *RecordHandler) notFoundOrError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Record not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal error", Message: err.Error()})
}
