package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"craftcrm/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AutomationService 规则的增删改查与手动测试入口。
// 规则执行本身由 AutomationEngine 承担。
type AutomationService struct {
	db     *gorm.DB
	logger *logrus.Logger
	engine *AutomationEngine
}

func NewAutomationService(db *gorm.DB, logger *logrus.Logger, engine *AutomationEngine) *AutomationService {
	return &AutomationService{db: db, logger: logger, engine: engine}
}

// CreateRuleRequest 创建/更新规则入参
type CreateRuleRequest struct {
	WorkspaceID   string               `json:"workspace_id" binding:"required"`
	EntityID      string               `json:"entity_id" binding:"required"`
	Name          string               `json:"name" binding:"required"`
	Description   string               `json:"description"`
	TriggerType   string               `json:"trigger_type" binding:"required"`
	TriggerConfig models.TriggerConfig `json:"trigger_config"`
	ActionType    string               `json:"action_type" binding:"required"`
	ActionConfig  models.ActionConfig  `json:"action_config"`
	IsActive      *bool                `json:"is_active"`
	CreatedBy     string               `json:"-"`
}

// validateRule 在持久化前校验触发/动作配置。
// 未知触发或动作类型在创建阶段即被拒绝，而不是留到执行时静默不匹配。
func validateRule(req *CreateRuleRequest) error {
	if !isSupportedTrigger(req.TriggerType) {
		return fmt.Errorf("unsupported trigger type: %s", req.TriggerType)
	}
	if !isSupportedAction(req.ActionType) {
		return fmt.Errorf("unsupported action type: %s", req.ActionType)
	}

	ac := req.ActionConfig
	switch req.ActionType {
	case ActionSendEmail:
		if ac.Subject == "" || ac.Body == "" {
			return fmt.Errorf("send_email action requires subject and body")
		}
	case ActionWebhook:
		if ac.URL == "" {
			return fmt.Errorf("webhook action requires url")
		}
		if !strings.HasPrefix(ac.URL, "http://") && !strings.HasPrefix(ac.URL, "https://") {
			return fmt.Errorf("webhook url must be http or https")
		}
		if ac.Method != "" {
			switch strings.ToUpper(ac.Method) {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				return fmt.Errorf("webhook method must be POST, PUT or PATCH")
			}
		}
	case ActionUpdateField:
		if ac.FieldName == "" {
			return fmt.Errorf("update_field action requires field_name")
		}
	case ActionCreateTask:
		if ac.Title == "" {
			return fmt.Errorf("create_task action requires title")
		}
	}
	return nil
}

func (s *AutomationService) CreateRule(ctx context.Context, req *CreateRuleRequest) (*models.AutomationRule, error) {
	if err := validateRule(req); err != nil {
		return nil, err
	}

	rule := models.AutomationRule{
		WorkspaceID:   req.WorkspaceID,
		EntityID:      req.EntityID,
		Name:          req.Name,
		Description:   req.Description,
		TriggerType:   req.TriggerType,
		TriggerConfig: req.TriggerConfig,
		ActionType:    req.ActionType,
		ActionConfig:  req.ActionConfig,
		IsActive:      true,
		CreatedBy:     req.CreatedBy,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := s.db.WithContext(ctx).Create(&rule).Error; err != nil {
		return nil, fmt.Errorf("failed to create automation rule: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"automation_id": rule.ID,
		"trigger_type":  rule.TriggerType,
		"action_type":   rule.ActionType,
	}).Info("Automation rule created")

	return &rule, nil
}

func (s *AutomationService) GetRule(ctx context.Context, workspaceID, ruleID string) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	err := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", ruleID, workspaceID).
		First(&rule).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get automation rule: %w", err)
	}
	return &rule, nil
}

// ListRules 按工作区列出规则，可选按实体过滤。
func (s *AutomationService) ListRules(ctx context.Context, workspaceID, entityID string) ([]models.AutomationRule, error) {
	query := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if entityID != "" {
		query = query.Where("entity_id = ?", entityID)
	}
	var rules []models.AutomationRule
	if err := query.Order("created_at DESC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list automation rules: %w", err)
	}
	return rules, nil
}

func (s *AutomationService) UpdateRule(ctx context.Context, workspaceID, ruleID string, req *CreateRuleRequest) (*models.AutomationRule, error) {
	rule, err := s.GetRule(ctx, workspaceID, ruleID)
	if err != nil {
		return nil, err
	}

	req.WorkspaceID = rule.WorkspaceID
	if req.EntityID == "" {
		req.EntityID = rule.EntityID
	}
	if err := validateRule(req); err != nil {
		return nil, err
	}

	rule.EntityID = req.EntityID
	rule.Name = req.Name
	rule.Description = req.Description
	rule.TriggerType = req.TriggerType
	rule.TriggerConfig = req.TriggerConfig
	rule.ActionType = req.ActionType
	rule.ActionConfig = req.ActionConfig
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := s.db.WithContext(ctx).Save(rule).Error; err != nil {
		return nil, fmt.Errorf("failed to update automation rule: %w", err)
	}
	return rule, nil
}

func (s *AutomationService) DeleteRule(ctx context.Context, workspaceID, ruleID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", ruleID, workspaceID).
		Delete(&models.AutomationRule{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete automation rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetActive 启用/停用规则。
func (s *AutomationService) SetActive(ctx context.Context, workspaceID, ruleID string, active bool) error {
	result := s.db.WithContext(ctx).
		Model(&models.AutomationRule{}).
		Where("id = ? AND workspace_id = ?", ruleID, workspaceID).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle automation rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListLogs 返回规则执行记录，按时间倒序。
func (s *AutomationService) ListLogs(ctx context.Context, workspaceID, ruleID string, limit int) ([]models.AutomationLog, error) {
	if _, err := s.GetRule(ctx, workspaceID, ruleID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []models.AutomationLog
	err := s.db.WithContext(ctx).
		Where("automation_id = ?", ruleID).
		Order("executed_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list automation logs: %w", err)
	}
	return logs, nil
}

// TestRule 用指定记录手动执行规则动作，跳过触发条件判断。
// 执行同样会写入日志，便于排查规则配置。
func (s *AutomationService) TestRule(ctx context.Context, workspaceID, ruleID, recordID string) (*ExecutionResult, error) {
	rule, err := s.GetRule(ctx, workspaceID, ruleID)
	if err != nil {
		return nil, err
	}

	var record models.Record
	err = s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", recordID, workspaceID).
		First(&record).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load record for test: %w", err)
	}

	event := &AutomationEvent{
		Type:        rule.TriggerType,
		WorkspaceID: rule.WorkspaceID,
		EntityID:    rule.EntityID,
		Record:      &record,
	}
	res := s.engine.Execute(ctx, rule, event)
	return &res, nil
}
