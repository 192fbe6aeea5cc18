package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"craftcrm/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// WorkspaceService 工作区与成员管理
type WorkspaceService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewWorkspaceService(db *gorm.DB, logger *logrus.Logger) *WorkspaceService {
	return &WorkspaceService{db: db, logger: logger}
}

type CreateWorkspaceRequest struct {
	Name        string         `json:"name" binding:"required"`
	Slug        string         `json:"slug" binding:"required"`
	Description string         `json:"description"`
	Config      models.JSONMap `json:"config"`
	OwnerID     string         `json:"-"`
}

// Create 建工作区并把创建者写入 owner 成员，两步同事务。
func (s *WorkspaceService) Create(ctx context.Context, req *CreateWorkspaceRequest) (*models.Workspace, error) {
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(slug) {
		return nil, fmt.Errorf("invalid slug '%s': lowercase letters, digits and hyphens only", req.Slug)
	}

	workspace := models.Workspace{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		OwnerID:     req.OwnerID,
		Config:      req.Config,
		IsActive:    true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Workspace{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("slug '%s' is already taken", slug)
		}
		if err := tx.Create(&workspace).Error; err != nil {
			return err
		}
		member := models.WorkspaceMember{
			WorkspaceID: workspace.ID,
			UserID:      req.OwnerID,
			Role:        "owner",
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"workspace_id": workspace.ID,
		"slug":         workspace.Slug,
	}).Info("Workspace created")

	return &workspace, nil
}

func (s *WorkspaceService) Get(ctx context.Context, workspaceID string) (*models.Workspace, error) {
	var workspace models.Workspace
	err := s.db.WithContext(ctx).First(&workspace, "id = ?", workspaceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workspace not found")
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &workspace, nil
}

// ListForUser 返回用户参与的全部工作区。
func (s *WorkspaceService) ListForUser(ctx context.Context, userID string) ([]models.Workspace, error) {
	var workspaces []models.Workspace
	err := s.db.WithContext(ctx).
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ? AND workspaces.is_active = ?", userID, true).
		Order("workspaces.created_at ASC").
		Find(&workspaces).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return workspaces, nil
}

type UpdateWorkspaceRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Config      models.JSONMap `json:"config"`
}

func (s *WorkspaceService) Update(ctx context.Context, workspaceID string, req *UpdateWorkspaceRequest) (*models.Workspace, error) {
	workspace, err := s.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		workspace.Name = req.Name
	}
	if req.Description != "" {
		workspace.Description = req.Description
	}
	if req.Config != nil {
		workspace.Config = req.Config
	}
	if err := s.db.WithContext(ctx).Save(workspace).Error; err != nil {
		return nil, fmt.Errorf("failed to update workspace: %w", err)
	}
	return workspace, nil
}

// Delete 软删除工作区（slug 保留占用，恢复时数据完整）。
func (s *WorkspaceService) Delete(ctx context.Context, workspaceID string) error {
	result := s.db.WithContext(ctx).Delete(&models.Workspace{}, "id = ?", workspaceID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete workspace: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("workspace not found")
	}
	return nil
}

// --- members ---

type AddMemberRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	Role      string `json:"role"`
	InvitedBy string `json:"-"`
}

func (s *WorkspaceService) AddMember(ctx context.Context, workspaceID string, req *AddMemberRequest) (*models.WorkspaceMember, error) {
	role := req.Role
	if role == "" {
		role = "member"
	}
	switch role {
	case "admin", "member":
	case "owner":
		return nil, fmt.Errorf("owner role is assigned at workspace creation")
	default:
		return nil, fmt.Errorf("invalid role '%s'", role)
	}

	var count int64
	s.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, req.UserID).
		Count(&count)
	if count > 0 {
		return nil, fmt.Errorf("user is already a member")
	}

	member := models.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      req.UserID,
		Role:        role,
		InvitedBy:   req.InvitedBy,
	}
	if err := s.db.WithContext(ctx).Create(&member).Error; err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return &member, nil
}

func (s *WorkspaceService) ListMembers(ctx context.Context, workspaceID string) ([]models.WorkspaceMember, error) {
	var members []models.WorkspaceMember
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// UpdateMemberRole 调整成员角色；owner 角色不可变更。
func (s *WorkspaceService) UpdateMemberRole(ctx context.Context, workspaceID, userID, role string) error {
	if role != "admin" && role != "member" {
		return fmt.Errorf("invalid role '%s'", role)
	}
	var member models.WorkspaceMember
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&member).Error
	if err != nil {
		return fmt.Errorf("member not found")
	}
	if member.Role == "owner" {
		return fmt.Errorf("cannot change the owner's role")
	}
	return s.db.WithContext(ctx).Model(&member).Update("role", role).Error
}

// RemoveMember 移除成员；owner 不可移除。
func (s *WorkspaceService) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	var member models.WorkspaceMember
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&member).Error
	if err != nil {
		return fmt.Errorf("member not found")
	}
	if member.Role == "owner" {
		return fmt.Errorf("cannot remove the workspace owner")
	}
	return s.db.WithContext(ctx).Delete(&member).Error
}

// WorkspaceOverview 工作区概览统计
type WorkspaceOverview struct {
	EntityCount     int64            `json:"entity_count"`
	RecordCount     int64            `json:"record_count"`
	RecordsByEntity map[string]int64 `json:"records_by_entity"`
	MemberCount     int64            `json:"member_count"`
	AutomationCount int64            `json:"automation_count"`
	AutomationRuns  int64            `json:"automation_runs"`
	PendingTasks    int64            `json:"pending_tasks"`
}

func (s *WorkspaceService) Overview(ctx context.Context, workspaceID string) (*WorkspaceOverview, error) {
	if _, err := s.Get(ctx, workspaceID); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var o WorkspaceOverview
	db.Model(&models.Entity{}).Where("workspace_id = ? AND is_active = ?", workspaceID, true).Count(&o.EntityCount)
	db.Model(&models.Record{}).Where("workspace_id = ? AND is_archived = ?", workspaceID, false).Count(&o.RecordCount)
	db.Model(&models.WorkspaceMember{}).Where("workspace_id = ?", workspaceID).Count(&o.MemberCount)
	db.Model(&models.AutomationRule{}).Where("workspace_id = ?", workspaceID).Count(&o.AutomationCount)
	db.Model(&models.AutomationLog{}).
		Joins("JOIN automation_rules ON automation_rules.id = automation_logs.automation_id").
		Where("automation_rules.workspace_id = ?", workspaceID).
		Count(&o.AutomationRuns)
	db.Model(&models.Task{}).Where("workspace_id = ? AND status = ?", workspaceID, "pending").Count(&o.PendingTasks)

	o.RecordsByEntity = make(map[string]int64)
	var perEntity []struct {
		Name  string
		Total int64
	}
	db.Model(&models.Record{}).
		Select("entities.entity_name AS name, COUNT(records.id) AS total").
		Joins("JOIN entities ON entities.id = records.entity_id").
		Where("records.workspace_id = ? AND records.is_archived = ?", workspaceID, false).
		Group("entities.entity_name").
		Scan(&perEntity)
	for _, row := range perEntity {
		o.RecordsByEntity[row.Name] = row.Total
	}
	return &o, nil
}
