package handlers

import (
	"net/http"
	"time"

	"craftcrm/internal/metrics"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler 健康检查与运行指标
type HealthHandler struct {
	db      *gorm.DB
	started time.Time
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db, started: time.Now()}
}

// Health 健康检查（含数据库探活）
func (h *HealthHandler) Health(c *gin.Context) {
	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "error"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error"
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":   dbStatus,
		"uptime_s": int64(time.Since(h.started).Seconds()),
	})
}

// Ready 就绪检查：数据库可用才返回 200，供编排探针使用
func (h *HealthHandler) Ready(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Metrics 进程内计数器快照
func (h *HealthHandler) Metrics(c *gin.Context) {
	rlTotal, rlByPrefix := metrics.RateLimitSnapshot()
	autoSuccess, autoFailure, autoByKind := metrics.AutomationSnapshot()
	c.JSON(http.StatusOK, gin.H{
		"rate_limit": gin.H{
			"dropped_total":     rlTotal,
			"dropped_by_prefix": rlByPrefix,
		},
		"automation": gin.H{
			"runs_success":   autoSuccess,
			"runs_failure":   autoFailure,
			"runs_by_action": autoByKind,
		},
	})
}
