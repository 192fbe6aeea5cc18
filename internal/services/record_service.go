package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"craftcrm/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("record not found")

// RecordService 记录的增删改查，写操作成功后向自动化引擎派发事件。
type RecordService struct {
	db     *gorm.DB
	logger *logrus.Logger
	engine *AutomationEngine
	hub    *EventsHub
}

func NewRecordService(db *gorm.DB, logger *logrus.Logger) *RecordService {
	return &RecordService{db: db, logger: logger}
}

// SetAutomationEngine 注入自动化引擎，避免构造期的循环依赖。
func (s *RecordService) SetAutomationEngine(engine *AutomationEngine) {
	s.engine = engine
}

// SetEventsHub 注入工作区事件推送
func (s *RecordService) SetEventsHub(hub *EventsHub) {
	s.hub = hub
}

type CreateRecordRequest struct {
	Data      models.JSONMap `json:"data" binding:"required"`
	Tags      []string       `json:"tags"`
	CreatedBy string         `json:"-"`
}

type UpdateRecordRequest struct {
	Data models.JSONMap `json:"data"`
	Tags *[]string      `json:"tags"`
}

// ListRecordsOptions 列表过滤与分页
type ListRecordsOptions struct {
	IncludeArchived bool
	Tag             string
	Page            int
	PageSize        int
}

func (s *RecordService) loadEntity(ctx context.Context, workspaceID, entityID string) (*models.Entity, error) {
	var entity models.Entity
	err := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", entityID, workspaceID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("entity not found")
		}
		return nil, fmt.Errorf("failed to load entity: %w", err)
	}
	return &entity, nil
}

func (s *RecordService) Create(ctx context.Context, workspaceID, entityID string, req *CreateRecordRequest) (*models.Record, error) {
	entity, err := s.loadEntity(ctx, workspaceID, entityID)
	if err != nil {
		return nil, err
	}
	if err := ValidateRecordData(entity, req.Data, false); err != nil {
		return nil, err
	}

	record := models.Record{
		WorkspaceID: workspaceID,
		EntityID:    entityID,
		Data:        req.Data,
		Tags:        req.Tags,
		CreatedBy:   req.CreatedBy,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	s.dispatch(ctx, &AutomationEvent{
		Type:        TriggerRecordCreated,
		WorkspaceID: workspaceID,
		EntityID:    entityID,
		Record:      &record,
	})
	s.broadcast(workspaceID, "record.created", &record)

	return &record, nil
}

func (s *RecordService) Get(ctx context.Context, workspaceID, recordID string) (*models.Record, error) {
	var record models.Record
	err := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", recordID, workspaceID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &record, nil
}

func (s *RecordService) List(ctx context.Context, workspaceID, entityID string, opts ListRecordsOptions) ([]models.Record, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Record{}).
		Where("workspace_id = ? AND entity_id = ?", workspaceID, entityID)
	if !opts.IncludeArchived {
		query = query.Where("is_archived = ?", false)
	}
	if opts.Tag != "" {
		// tags 以 JSON 文本存储，用包含匹配过滤
		query = query.Where("tags LIKE ?", "%\""+opts.Tag+"\"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var records []models.Record
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	return records, total, nil
}

// Update 合并更新 data（提交的键覆盖，未提交的键保留），
// 并根据前后快照派发 status_changed / field_updated 事件。
func (s *RecordService) Update(ctx context.Context, workspaceID, recordID string, req *UpdateRecordRequest) (*models.Record, error) {
	record, err := s.Get(ctx, workspaceID, recordID)
	if err != nil {
		return nil, err
	}
	entity, err := s.loadEntity(ctx, workspaceID, record.EntityID)
	if err != nil {
		return nil, err
	}
	if err := ValidateRecordData(entity, req.Data, true); err != nil {
		return nil, err
	}

	oldData := make(models.JSONMap, len(record.Data))
	for k, v := range record.Data {
		oldData[k] = v
	}

	if record.Data == nil {
		record.Data = models.JSONMap{}
	}
	for k, v := range req.Data {
		record.Data[k] = v
	}
	if req.Tags != nil {
		record.Tags = *req.Tags
	}

	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	s.dispatchFieldEvents(ctx, record, oldData, req.Data)
	s.broadcast(workspaceID, "record.updated", record)

	return record, nil
}

// dispatchFieldEvents 比较新旧快照：每个变化的键派发一次 field_updated；
// status 键额外派发 status_changed，两类触发器都能命中。
func (s *RecordService) dispatchFieldEvents(ctx context.Context, record *models.Record, oldData models.JSONMap, submitted models.JSONMap) {
	for key, newValue := range submitted {
		oldValue, existed := oldData[key]
		if existed && reflect.DeepEqual(oldValue, newValue) {
			continue
		}

		if key == "status" {
			oldStatus, _ := oldValue.(string)
			newStatus, _ := newValue.(string)
			s.dispatch(ctx, &AutomationEvent{
				Type:        TriggerStatusChanged,
				WorkspaceID: record.WorkspaceID,
				EntityID:    record.EntityID,
				Record:      record,
				OldStatus:   oldStatus,
				NewStatus:   newStatus,
			})
		}

		s.dispatch(ctx, &AutomationEvent{
			Type:        TriggerFieldUpdated,
			WorkspaceID: record.WorkspaceID,
			EntityID:    record.EntityID,
			Record:      record,
			FieldName:   key,
			OldValue:    oldValue,
			NewValue:    newValue,
		})
	}
}

// SetArchived 归档/恢复记录。归档不派发自动化事件。
func (s *RecordService) SetArchived(ctx context.Context, workspaceID, recordID string, archived bool) (*models.Record, error) {
	record, err := s.Get(ctx, workspaceID, recordID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(record).Update("is_archived", archived).Error; err != nil {
		return nil, fmt.Errorf("failed to archive record: %w", err)
	}
	record.IsArchived = archived
	s.broadcast(workspaceID, "record.archived", record)
	return record, nil
}

// Delete 永久删除记录，删除前的快照用于 record_deleted 规则。
func (s *RecordService) Delete(ctx context.Context, workspaceID, recordID string) error {
	record, err := s.Get(ctx, workspaceID, recordID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Record{}, "id = ?", record.ID).Error; err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	s.dispatch(ctx, &AutomationEvent{
		Type:        TriggerRecordDeleted,
		WorkspaceID: record.WorkspaceID,
		EntityID:    record.EntityID,
		Record:      record,
	})
	s.broadcast(workspaceID, "record.deleted", record)

	return nil
}

// BulkDelete 批量永久删除，每条各自派发 record_deleted。
// 返回实际删除数量。
func (s *RecordService) BulkDelete(ctx context.Context, workspaceID string, recordIDs []string) (int, error) {
	deleted := 0
	for _, id := range recordIDs {
		if err := s.Delete(ctx, workspaceID, id); err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// BulkSetArchived 批量归档/恢复，返回受影响数量。
// 与单条归档一致，不派发自动化事件。
func (s *RecordService) BulkSetArchived(ctx context.Context, workspaceID string, recordIDs []string, archived bool) (int, error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Model(&models.Record{}).
		Where("workspace_id = ? AND id IN ?", workspaceID, recordIDs).
		Update("is_archived", archived)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to bulk archive records: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (s *RecordService) dispatch(ctx context.Context, event *AutomationEvent) {
	if s.engine == nil {
		return
	}
	if _, err := s.engine.Dispatch(ctx, event); err != nil {
		s.logger.WithError(err).Error("Failed to dispatch automation event")
	}
}

func (s *RecordService) broadcast(workspaceID, eventType string, record *models.Record) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(workspaceID, WorkspaceEvent{
		Type:    eventType,
		Payload: record,
	})
}
