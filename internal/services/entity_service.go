package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"craftcrm/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var entityNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var supportedFieldTypes = map[string]struct{}{
	"text": {}, "textarea": {}, "email": {}, "phone": {}, "url": {},
	"number": {}, "currency": {}, "select": {}, "multiselect": {},
	"checkbox": {}, "date": {}, "datetime": {},
}

// EntityService 实体（记录模式）管理
type EntityService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewEntityService(db *gorm.DB, logger *logrus.Logger) *EntityService {
	return &EntityService{db: db, logger: logger}
}

type CreateEntityRequest struct {
	EntityName          string            `json:"entity_name" binding:"required"`
	DisplayName         string            `json:"display_name" binding:"required"`
	DisplayNameSingular string            `json:"display_name_singular"`
	Icon                string            `json:"icon"`
	Color               string            `json:"color"`
	Description         string            `json:"description"`
	Fields              models.FieldList  `json:"fields" binding:"required"`
	Views               models.StringList `json:"views"`
	DefaultView         string            `json:"default_view"`
	CreatedBy           string            `json:"-"`
}

// validateFields 校验字段定义：内部名格式、唯一性、类型、选项。
func validateFields(fields models.FieldList) error {
	if len(fields) == 0 {
		return fmt.Errorf("entity requires at least one field")
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if !entityNamePattern.MatchString(f.Name) {
			return fmt.Errorf("invalid field name '%s': must be snake_case", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name '%s'", f.Name)
		}
		seen[f.Name] = struct{}{}
		if _, ok := supportedFieldTypes[f.Type]; !ok {
			return fmt.Errorf("unsupported field type '%s' for field '%s'", f.Type, f.Name)
		}
		if (f.Type == "select" || f.Type == "multiselect") && len(f.Options) == 0 {
			return fmt.Errorf("field '%s' of type %s requires options", f.Name, f.Type)
		}
	}
	return nil
}

func (s *EntityService) Create(ctx context.Context, workspaceID string, req *CreateEntityRequest) (*models.Entity, error) {
	if !entityNamePattern.MatchString(req.EntityName) {
		return nil, fmt.Errorf("invalid entity name '%s': must be snake_case", req.EntityName)
	}
	if err := validateFields(req.Fields); err != nil {
		return nil, err
	}

	var count int64
	s.db.WithContext(ctx).Model(&models.Entity{}).
		Where("workspace_id = ? AND entity_name = ?", workspaceID, req.EntityName).
		Count(&count)
	if count > 0 {
		return nil, fmt.Errorf("entity '%s' already exists in workspace", req.EntityName)
	}

	entity := models.Entity{
		WorkspaceID:         workspaceID,
		EntityName:          req.EntityName,
		DisplayName:         req.DisplayName,
		DisplayNameSingular: req.DisplayNameSingular,
		Icon:                req.Icon,
		Color:               req.Color,
		Description:         req.Description,
		Fields:              req.Fields,
		Views:               req.Views,
		DefaultView:         req.DefaultView,
		IsActive:            true,
		CreatedBy:           req.CreatedBy,
	}
	if entity.DefaultView == "" {
		entity.DefaultView = "table"
	}
	if len(entity.Views) == 0 {
		entity.Views = models.StringList{"table"}
	}

	if err := s.db.WithContext(ctx).Create(&entity).Error; err != nil {
		return nil, fmt.Errorf("failed to create entity: %w", err)
	}
	return &entity, nil
}

func (s *EntityService) Get(ctx context.Context, workspaceID, entityID string) (*models.Entity, error) {
	var entity models.Entity
	err := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", entityID, workspaceID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("entity not found")
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return &entity, nil
}

func (s *EntityService) List(ctx context.Context, workspaceID string) ([]models.Entity, error) {
	var entities []models.Entity
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Order("created_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return entities, nil
}

type UpdateEntityRequest struct {
	DisplayName         string            `json:"display_name"`
	DisplayNameSingular string            `json:"display_name_singular"`
	Icon                string            `json:"icon"`
	Color               string            `json:"color"`
	Description         string            `json:"description"`
	Fields              models.FieldList  `json:"fields"`
	Views               models.StringList `json:"views"`
	DefaultView         string            `json:"default_view"`
}

func (s *EntityService) Update(ctx context.Context, workspaceID, entityID string, req *UpdateEntityRequest) (*models.Entity, error) {
	entity, err := s.Get(ctx, workspaceID, entityID)
	if err != nil {
		return nil, err
	}

	if req.Fields != nil {
		if err := validateFields(req.Fields); err != nil {
			return nil, err
		}
		entity.Fields = req.Fields
	}
	if req.DisplayName != "" {
		entity.DisplayName = req.DisplayName
	}
	if req.DisplayNameSingular != "" {
		entity.DisplayNameSingular = req.DisplayNameSingular
	}
	if req.Icon != "" {
		entity.Icon = req.Icon
	}
	if req.Color != "" {
		entity.Color = req.Color
	}
	if req.Description != "" {
		entity.Description = req.Description
	}
	if req.Views != nil {
		entity.Views = req.Views
	}
	if req.DefaultView != "" {
		entity.DefaultView = req.DefaultView
	}

	if err := s.db.WithContext(ctx).Save(entity).Error; err != nil {
		return nil, fmt.Errorf("failed to update entity: %w", err)
	}
	return entity, nil
}

// Delete 软删除实体；其下记录保留（可通过恢复实体找回）。
func (s *EntityService) Delete(ctx context.Context, workspaceID, entityID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", entityID, workspaceID).
		Delete(&models.Entity{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete entity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("entity not found")
	}
	return nil
}
