package handlers

import (
	"craftcrm/internal/config"
	"craftcrm/internal/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handlers 汇集所有接口处理器，便于路由注册
type Handlers struct {
	Workspace  *WorkspaceHandler
	Entity     *EntityHandler
	Record     *RecordHandler
	Automation *AutomationHandler
	AI         *AIHandler
	Events     *EventsHandler
	Health     *HealthHandler
}

// RegisterRoutes 注册全部路由。
// /health 与 /metrics 公开；/api/v1 需要认证，
// 工作区子路由再叠加成员校验与资源权限。
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config, h *Handlers) {
	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	if cfg.Monitoring.Enabled {
		path := cfg.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, h.Health.Metrics)
	}

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	// AI 生成（与具体工作区无关）
	ai := api.Group("/ai")
	{
		ai.POST("/generate", h.AI.GenerateConfig)
		ai.POST("/generate-workspace", h.AI.GenerateWorkspace)
	}

	workspaces := api.Group("/workspaces")
	workspaces.Use(middleware.RequireResourcePermission("workspaces"))
	{
		workspaces.POST("", h.Workspace.CreateWorkspace)
		workspaces.GET("", h.Workspace.ListWorkspaces)
	}

	// 单个工作区：必须是成员
	ws := api.Group("/workspaces/:id")
	ws.Use(middleware.WorkspaceMemberMiddleware(db, "id"))
	{
		ws.GET("", h.Workspace.GetWorkspace)
		ws.GET("/overview", h.Workspace.GetOverview)
		ws.PUT("", middleware.RequireWorkspaceRole("owner", "admin"), h.Workspace.UpdateWorkspace)
		ws.DELETE("", middleware.RequireWorkspaceRole("owner"), h.Workspace.DeleteWorkspace)

		members := ws.Group("/members")
		{
			members.GET("", h.Workspace.ListMembers)
			members.POST("", middleware.RequireWorkspaceRole("owner", "admin"), h.Workspace.AddMember)
			members.PUT("/:userId/role", middleware.RequireWorkspaceRole("owner"), h.Workspace.UpdateMemberRole)
			members.DELETE("/:userId", middleware.RequireWorkspaceRole("owner"), h.Workspace.RemoveMember)
		}

		entities := ws.Group("/entities")
		entities.Use(middleware.RequireResourcePermission("entities"))
		{
			entities.POST("", h.Entity.CreateEntity)
			entities.GET("", h.Entity.ListEntities)
			entities.GET("/:entityId", h.Entity.GetEntity)
			entities.PUT("/:entityId", h.Entity.UpdateEntity)
			entities.DELETE("/:entityId", h.Entity.DeleteEntity)

			records := entities.Group("/:entityId/records")
			records.Use(middleware.RequireResourcePermission("records"))
			{
				records.POST("", h.Record.CreateRecord)
				records.GET("", h.Record.ListRecords)
			}
		}

		recordOps := ws.Group("/records")
		recordOps.Use(middleware.RequireResourcePermission("records"))
		{
			recordOps.GET("/:recordId", h.Record.GetRecord)
			recordOps.PUT("/:recordId", h.Record.UpdateRecord)
			recordOps.POST("/:recordId/archive", h.Record.ArchiveRecord)
			// 永久删除与批量操作限 owner/admin；批量挂在集合上，避免与 :recordId 路由冲突
			recordOps.DELETE("/:recordId", middleware.RequireWorkspaceRole("owner", "admin"), h.Record.DeleteRecord)
			recordOps.DELETE("", middleware.RequireWorkspaceRole("owner", "admin"), h.Record.BulkDeleteRecords)
			recordOps.PATCH("", middleware.RequireWorkspaceRole("owner", "admin"), h.Record.BulkArchiveRecords)
		}

		automations := ws.Group("/automations")
		automations.Use(middleware.RequireResourcePermission("automations"))
		{
			adminOnly := middleware.RequireWorkspaceRole("owner", "admin")
			automations.POST("", adminOnly, h.Automation.CreateAutomation)
			automations.GET("", h.Automation.ListAutomations)
			automations.GET("/:automationId", h.Automation.GetAutomation)
			automations.PUT("/:automationId", adminOnly, h.Automation.UpdateAutomation)
			automations.DELETE("/:automationId", adminOnly, h.Automation.DeleteAutomation)
			automations.POST("/:automationId/toggle", adminOnly, h.Automation.ToggleAutomation)
			automations.GET("/:automationId/logs", h.Automation.ListAutomationLogs)
			automations.POST("/:automationId/test", adminOnly, h.Automation.TestAutomation)
		}

		ws.GET("/events", h.Events.Subscribe)
	}
}
