package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TriggerConfig 触发条件配置（按 trigger_type 使用其中的子集）。
type TriggerConfig struct {
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	FieldName  string `json:"field_name,omitempty"`
}

func (c TriggerConfig) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *TriggerConfig) Scan(value interface{}) error {
	if value == nil {
		*c = TriggerConfig{}
		return nil
	}
	b, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*c = TriggerConfig{}
		return nil
	}
	return json.Unmarshal(b, c)
}

// ActionConfig 动作配置。字段按 action_type 分组使用，
// 创建规则时按类型校验必填项（见 automation_service）。
type ActionConfig struct {
	// send_email
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
	ToEmail string `json:"to_email,omitempty"`

	// webhook
	URL     string            `json:"url,omitempty"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// update_field
	FieldName string `json:"field_name,omitempty"`
	NewValue  string `json:"new_value,omitempty"`

	// create_task
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

func (c ActionConfig) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *ActionConfig) Scan(value interface{}) error {
	if value == nil {
		*c = ActionConfig{}
		return nil
	}
	b, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*c = ActionConfig{}
		return nil
	}
	return json.Unmarshal(b, c)
}

// AutomationRule 自动化规则：触发条件 + 单个动作
type AutomationRule struct {
	ID            string        `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID   string        `gorm:"index;size:36" json:"workspace_id"`
	EntityID      string        `gorm:"index;size:36" json:"entity_id"`
	Name          string        `gorm:"not null" json:"name"`
	Description   string        `json:"description"`
	TriggerType   string        `gorm:"index;not null" json:"trigger_type"` // record_created, status_changed, field_updated, record_deleted
	TriggerConfig TriggerConfig `gorm:"type:text" json:"trigger_config"`
	ActionType    string        `gorm:"not null" json:"action_type"` // send_email, webhook, update_field, create_task
	ActionConfig  ActionConfig  `gorm:"type:text" json:"action_config"`
	IsActive      bool          `gorm:"default:true;index" json:"is_active"`
	CreatedBy     string        `gorm:"size:36" json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (r *AutomationRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// AutomationLog 执行记录，只追加不修改。
type AutomationLog struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	AutomationID string    `gorm:"index;size:36" json:"automation_id"`
	RecordID     string    `gorm:"index;size:36" json:"record_id"`
	Status       string    `gorm:"index" json:"status"` // success, error
	Result       JSONMap   `gorm:"type:text" json:"result"`
	ExecutedAt   time.Time `json:"executed_at"`

	Rule AutomationRule `gorm:"foreignKey:AutomationID" json:"rule,omitempty"`
}

func (l *AutomationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.ExecutedAt.IsZero() {
		l.ExecutedAt = time.Now()
	}
	return nil
}
