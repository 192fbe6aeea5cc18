package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap 以 text 列存储任意 JSON 对象（记录数据、工作区配置、执行结果）。
// sqlite 与 postgres 共用同一编解码路径。
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	b, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// StringList 以 JSON 数组存储字符串列表（标签、视图）。
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(b, l)
}

// FieldDefinition 实体字段定义（由 AI 生成或手工维护）。
type FieldDefinition struct {
	Name         string                 `json:"name"`
	DisplayName  string                 `json:"display_name"`
	Type         string                 `json:"type"`
	Required     bool                   `json:"required"`
	Options      []string               `json:"options,omitempty"`
	Placeholder  string                 `json:"placeholder,omitempty"`
	HelpText     string                 `json:"help_text,omitempty"`
	DefaultValue interface{}            `json:"default_value,omitempty"`
	Validation   map[string]interface{} `json:"validation,omitempty"`
}

// FieldList 实体的有序字段模式。
type FieldList []FieldDefinition

func (l FieldList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *FieldList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(b, l)
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", value)
	}
}
