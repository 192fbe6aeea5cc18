package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"craftcrm/internal/models"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^[+]?[\d\s\-().]{5,20}$`)
)

// isEmptyValue reports whether a submitted value counts as "not provided".
func isEmptyValue(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// ValidateFieldValue 按字段定义校验单个值。
// 空值只在 required 时报错，其余类型校验只针对非空值。
func ValidateFieldValue(field models.FieldDefinition, value interface{}) error {
	if isEmptyValue(value) {
		if field.Required {
			return fmt.Errorf("field '%s' is required", field.Name)
		}
		return nil
	}

	switch field.Type {
	case "text", "textarea":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field '%s' must be a string", field.Name)
		}
	case "email":
		s, ok := value.(string)
		if !ok || !emailPattern.MatchString(s) {
			return fmt.Errorf("field '%s' must be a valid email address", field.Name)
		}
	case "phone":
		s, ok := value.(string)
		if !ok || !phonePattern.MatchString(s) {
			return fmt.Errorf("field '%s' must be a valid phone number", field.Name)
		}
	case "url":
		s, ok := value.(string)
		if !ok || (!strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://")) {
			return fmt.Errorf("field '%s' must be a valid URL", field.Name)
		}
	case "number", "currency":
		if !isNumeric(value) {
			return fmt.Errorf("field '%s' must be a number", field.Name)
		}
	case "checkbox":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s' must be a boolean", field.Name)
		}
	case "select":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field '%s' must be a string option", field.Name)
		}
		if len(field.Options) > 0 && !containsString(field.Options, s) {
			return fmt.Errorf("field '%s' must be one of %v", field.Name, field.Options)
		}
	case "multiselect":
		items, err := toStringSlice(value)
		if err != nil {
			return fmt.Errorf("field '%s' must be a list of options", field.Name)
		}
		if len(field.Options) > 0 {
			for _, item := range items {
				if !containsString(field.Options, item) {
					return fmt.Errorf("field '%s' contains invalid option '%s'", field.Name, item)
				}
			}
		}
	case "date":
		if err := parseAnyDate(value, "2006-01-02"); err != nil {
			return fmt.Errorf("field '%s' must be a date (YYYY-MM-DD)", field.Name)
		}
	case "datetime":
		if err := parseAnyDate(value, time.RFC3339); err != nil {
			return fmt.Errorf("field '%s' must be an RFC3339 datetime", field.Name)
		}
	default:
		// 未知字段类型不做格式校验
	}
	return nil
}

// ValidateRecordData 按实体模式校验整条数据。
// partial=true 用于更新：跳过未提交字段的必填检查。
// 未在模式中定义的键被拒绝，防止脏数据进入记录。
func ValidateRecordData(entity *models.Entity, data models.JSONMap, partial bool) error {
	known := make(map[string]models.FieldDefinition, len(entity.Fields))
	for _, f := range entity.Fields {
		known[f.Name] = f
	}

	for key, value := range data {
		field, ok := known[key]
		if !ok {
			return fmt.Errorf("unknown field '%s' for entity '%s'", key, entity.EntityName)
		}
		if err := ValidateFieldValue(field, value); err != nil {
			return err
		}
	}

	if !partial {
		for _, f := range entity.Fields {
			if !f.Required {
				continue
			}
			if _, ok := data[f.Name]; !ok {
				return fmt.Errorf("field '%s' is required", f.Name)
			}
		}
	}
	return nil
}

func isNumeric(value interface{}) bool {
	switch v := value.(type) {
	case float64, float32, int, int32, int64:
		return true
	case string:
		_, err := strconv.ParseFloat(v, 64)
		return err == nil
	default:
		return false
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func toStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("not a string list")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not a list")
	}
}

func parseAnyDate(value interface{}, layout string) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("not a string")
	}
	if _, err := time.Parse(layout, s); err == nil {
		return nil
	}
	// datetime 字段也接受纯日期
	if layout == time.RFC3339 {
		if _, err := time.Parse("2006-01-02", s); err == nil {
			return nil
		}
	}
	return fmt.Errorf("invalid date")
}
