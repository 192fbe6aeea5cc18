package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 用户模型（身份由 JWT 承载，这里只保留成员/审计引用所需的最小信息）
type User struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Name      string         `json:"name"`
	Role      string         `gorm:"default:'member'" json:"role"` // member, admin
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// 工作区（租户边界）
type Workspace struct {
	ID               string         `gorm:"primaryKey;size:36" json:"id"`
	Name             string         `gorm:"not null" json:"name"`
	Slug             string         `gorm:"unique;not null" json:"slug"`
	Description      string         `json:"description"`
	OwnerID          string         `gorm:"index;size:36" json:"owner_id"`
	SubscriptionTier string         `gorm:"default:'free'" json:"subscription_tier"` // free, starter, professional, enterprise
	Config           JSONMap        `gorm:"type:text" json:"config"`
	IsActive         bool           `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	Members  []WorkspaceMember `gorm:"foreignKey:WorkspaceID" json:"members,omitempty"`
	Entities []Entity          `gorm:"foreignKey:WorkspaceID" json:"entities,omitempty"`
}

func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// 工作区成员（角色：owner/admin/member）
type WorkspaceMember struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string    `gorm:"index:idx_member_ws_user,unique;size:36" json:"workspace_id"`
	UserID      string    `gorm:"index:idx_member_ws_user,unique;size:36" json:"user_id"`
	Role        string    `gorm:"default:'member'" json:"role"` // owner, admin, member
	InvitedBy   string    `gorm:"size:36" json:"invited_by"`
	JoinedAt    time.Time `json:"joined_at"`

	Workspace Workspace `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
}

func (m *WorkspaceMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	return nil
}

// 实体：工作区内用户自定义的记录类型（模式）
type Entity struct {
	ID                  string         `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID         string         `gorm:"index:idx_entity_ws_name,unique;size:36" json:"workspace_id"`
	EntityName          string         `gorm:"index:idx_entity_ws_name,unique;not null" json:"entity_name"`
	DisplayName         string         `gorm:"not null" json:"display_name"`
	DisplayNameSingular string         `json:"display_name_singular"`
	Icon                string         `gorm:"default:'DatabaseIcon'" json:"icon"`
	Color               string         `json:"color"`
	Description         string         `json:"description"`
	Fields              FieldList      `gorm:"type:text" json:"fields"`
	Views               StringList     `gorm:"type:text" json:"views"`
	DefaultView         string         `gorm:"default:'table'" json:"default_view"`
	IsActive            bool           `gorm:"default:true" json:"is_active"`
	CreatedBy           string         `gorm:"size:36" json:"created_by"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

func (e *Entity) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// FieldByName 返回指定内部名的字段定义。
func (e *Entity) FieldByName(name string) (FieldDefinition, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// 记录：实体模式下的一行开放键值数据
type Record struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string     `gorm:"index;size:36" json:"workspace_id"`
	EntityID    string     `gorm:"index;size:36" json:"entity_id"`
	Data        JSONMap    `gorm:"type:text" json:"data"`
	Tags        StringList `gorm:"type:text" json:"tags"`
	IsArchived  bool       `gorm:"default:false;index" json:"is_archived"`
	CreatedBy   string     `gorm:"size:36" json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// 任务：create_task 动作落库的待办
type Task struct {
	ID                  string    `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID         string    `gorm:"index;size:36" json:"workspace_id"`
	RecordID            string    `gorm:"index;size:36" json:"record_id"`
	Title               string    `gorm:"not null" json:"title"`
	Description         string    `gorm:"type:text" json:"description"`
	Status              string    `gorm:"default:'pending'" json:"status"` // pending, done
	CreatedByAutomation bool      `gorm:"default:false" json:"created_by_automation"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
