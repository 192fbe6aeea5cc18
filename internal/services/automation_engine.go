package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"craftcrm/internal/config"
	"craftcrm/internal/metrics"
	"craftcrm/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"
)

// Trigger types
const (
	TriggerRecordCreated = "record_created"
	TriggerStatusChanged = "status_changed"
	TriggerFieldUpdated  = "field_updated"
	TriggerRecordDeleted = "record_deleted"
)

// Action types
const (
	ActionSendEmail   = "send_email"
	ActionWebhook     = "webhook"
	ActionUpdateField = "update_field"
	ActionCreateTask  = "create_task"
)

func isSupportedTrigger(t string) bool {
	switch t {
	case TriggerRecordCreated, TriggerStatusChanged, TriggerFieldUpdated, TriggerRecordDeleted:
		return true
	}
	return false
}

func isSupportedAction(t string) bool {
	switch t {
	case ActionSendEmail, ActionWebhook, ActionUpdateField, ActionCreateTask:
		return true
	}
	return false
}

// AutomationEvent 记录生命周期事件，由记录服务在写操作后派发。
type AutomationEvent struct {
	Type        string
	WorkspaceID string
	EntityID    string
	Record      *models.Record

	// field_updated
	FieldName string
	OldValue  interface{}
	NewValue  interface{}

	// status_changed
	OldStatus string
	NewStatus string
}

// ExecutionResult 单条规则的执行结果（同时落入执行日志）。
type ExecutionResult struct {
	AutomationID string         `json:"automation_id"`
	ActionType   string         `json:"action_type"`
	Success      bool           `json:"success"`
	Result       models.JSONMap `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// AutomationEngine executes automation rules against record events.
// Execution is isolated per rule: one failing rule never blocks another,
// and every run is appended to the automation log.
type AutomationEngine struct {
	db       *gorm.DB
	logger   *logrus.Logger
	notifier Notifier
	client   *http.Client
	hub      *EventsHub
}

func NewAutomationEngine(db *gorm.DB, logger *logrus.Logger, notifier Notifier, cfg config.AutomationConfig) *AutomationEngine {
	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AutomationEngine{
		db:       db,
		logger:   logger,
		notifier: notifier,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// SetEventsHub 注入工作区事件推送（可选）
func (e *AutomationEngine) SetEventsHub(hub *EventsHub) {
	e.hub = hub
}

var templateVarPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// renderTemplate substitutes {{field}} placeholders from the record data.
// Synthetic fields id/created_at shadow data keys of the same name.
// Unresolved placeholders render as empty string.
func renderTemplate(tpl string, record *models.Record) string {
	if tpl == "" || record == nil {
		return tpl
	}
	ctx := make(map[string]interface{}, len(record.Data)+2)
	for k, v := range record.Data {
		ctx[k] = v
	}
	ctx["id"] = record.ID
	ctx["created_at"] = record.CreatedAt.Format(time.RFC3339)

	return templateVarPattern.ReplaceAllStringFunc(tpl, func(m string) string {
		key := strings.TrimSpace(m[2 : len(m)-2])
		v, ok := ctx[key]
		if !ok || v == nil {
			return ""
		}
		switch t := v.(type) {
		case string:
			return t
		case float64:
			// JSON 数字：整数不带小数点输出
			if t == float64(int64(t)) {
				return fmt.Sprintf("%d", int64(t))
			}
			return fmt.Sprintf("%v", t)
		default:
			return fmt.Sprintf("%v", t)
		}
	})
}

// matchesTrigger reports whether a rule's trigger condition holds for the event.
// Unknown trigger types never match.
func matchesTrigger(rule *models.AutomationRule, event *AutomationEvent) bool {
	if rule.TriggerType != event.Type {
		return false
	}
	switch rule.TriggerType {
	case TriggerRecordCreated, TriggerRecordDeleted:
		return true
	case TriggerStatusChanged:
		tc := rule.TriggerConfig
		if tc.FromStatus != "" && tc.FromStatus != event.OldStatus {
			return false
		}
		if tc.ToStatus != "" && tc.ToStatus != event.NewStatus {
			return false
		}
		return true
	case TriggerFieldUpdated:
		// field_name 留空表示任意字段变化都触发
		tc := rule.TriggerConfig
		return tc.FieldName == "" || tc.FieldName == event.FieldName
	default:
		return false
	}
}

// Dispatch 查找并执行匹配的规则，按创建顺序逐条隔离执行。
// 仅在规则加载失败时返回错误；单条执行失败只体现在对应结果里。
func (e *AutomationEngine) Dispatch(ctx context.Context, event *AutomationEvent) ([]ExecutionResult, error) {
	if event == nil || !isSupportedTrigger(event.Type) {
		return nil, nil
	}

	var rules []models.AutomationRule
	err := e.db.WithContext(ctx).
		Where("workspace_id = ? AND entity_id = ? AND trigger_type = ? AND is_active = ?",
			event.WorkspaceID, event.EntityID, event.Type, true).
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load automation rules: %w", err)
	}

	var results []ExecutionResult
	for i := range rules {
		rule := &rules[i]
		if !matchesTrigger(rule, event) {
			continue
		}
		res := e.Execute(ctx, rule, event)
		if !res.Success {
			e.logger.WithFields(logrus.Fields{
				"automation_id": rule.ID,
				"action_type":   rule.ActionType,
				"error":         res.Error,
			}).Warn("Automation rule execution failed")
		}
		results = append(results, res)
	}
	return results, nil
}

// Execute runs a single rule's action and appends an execution log entry.
// Log-write failures are swallowed so they never mask the action outcome.
func (e *AutomationEngine) Execute(ctx context.Context, rule *models.AutomationRule, event *AutomationEvent) ExecutionResult {
	result, err := e.runAction(ctx, rule, event)

	res := ExecutionResult{
		AutomationID: rule.ID,
		ActionType:   rule.ActionType,
		Success:      err == nil,
		Result:       result,
	}

	status := "success"
	if err != nil {
		status = "error"
		res.Error = err.Error()
		if result == nil {
			result = models.JSONMap{}
			res.Result = result
		}
		result["error"] = err.Error()
	}
	metrics.IncAutomationRun(rule.ActionType, err == nil)

	logEntry := models.AutomationLog{
		AutomationID: rule.ID,
		Status:       status,
		Result:       result,
	}
	if event.Record != nil {
		logEntry.RecordID = event.Record.ID
	}
	if dbErr := e.db.WithContext(ctx).Create(&logEntry).Error; dbErr != nil {
		e.logger.WithError(dbErr).Warn("Failed to write automation log")
	}

	if e.hub != nil {
		e.hub.Broadcast(rule.WorkspaceID, WorkspaceEvent{
			Type:    "automation.executed",
			Payload: res,
		})
	}

	return res
}

func (e *AutomationEngine) runAction(ctx context.Context, rule *models.AutomationRule, event *AutomationEvent) (models.JSONMap, error) {
	switch rule.ActionType {
	case ActionSendEmail:
		return e.executeSendEmail(ctx, rule, event)
	case ActionWebhook:
		return e.executeWebhook(ctx, rule, event)
	case ActionUpdateField:
		return e.executeUpdateField(ctx, rule, event)
	case ActionCreateTask:
		return e.executeCreateTask(ctx, rule, event)
	default:
		return nil, fmt.Errorf("unsupported action type: %s", rule.ActionType)
	}
}

func (e *AutomationEngine) executeSendEmail(ctx context.Context, rule *models.AutomationRule, event *AutomationEvent) (models.JSONMap, error) {
	ac := rule.ActionConfig
	subject := renderTemplate(ac.Subject, event.Record)
	body := renderTemplate(ac.Body, event.Record)

	// 收件人优先取记录自身的 email 字段
	to := ""
	if event.Record != nil {
		if v, ok := event.Record.Data["email"].(string); ok && v != "" {
			to = v
		}
	}
	if to == "" {
		to = renderTemplate(ac.ToEmail, event.Record)
	}
	if to == "" {
		return nil, fmt.Errorf("no recipient email found")
	}

	if err := e.notifier.SendEmail(ctx, to, subject, body); err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}
	return models.JSONMap{
		"action":  ActionSendEmail,
		"to":      to,
		"subject": subject,
	}, nil
}

func (e *AutomationEngine) executeWebhook(ctx context.Context, rule *models.AutomationRule, event *AutomationEvent) (models.JSONMap, error) {
	ac := rule.ActionConfig
	if ac.URL == "" {
		return nil, fmt.Errorf("webhook url is empty")
	}
	method := strings.ToUpper(ac.Method)
	if method == "" {
		method = http.MethodPost
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil, fmt.Errorf("unsupported webhook method: %s", method)
	}

	payload := map[string]interface{}{
		"workspace_id": rule.WorkspaceID,
		"entity_id":    rule.EntityID,
		"record":       event.Record,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"event":        "automation_triggered",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, ac.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ac.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.JSONMap{
			"action":      ActionWebhook,
			"url":         ac.URL,
			"status_code": resp.StatusCode,
		}, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return models.JSONMap{
		"action":      ActionWebhook,
		"url":         ac.URL,
		"status_code": resp.StatusCode,
	}, nil
}

func (e *AutomationEngine) executeUpdateField(ctx context.Context, rule *models.AutomationRule, event *AutomationEvent) (models.JSONMap, error) {
	ac := rule.ActionConfig
	if ac.FieldName == "" {
		return nil, fmt.Errorf("update_field requires field_name")
	}
	if event.Record == nil {
		return nil, fmt.Errorf("update_field requires a record")
	}

	newValue := renderTemplate(ac.NewValue, event.Record)

	var record models.Record
	if err := e.db.WithContext(ctx).First(&record, "id = ?", event.Record.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	if record.Data == nil {
		record.Data = models.JSONMap{}
	}
	// 并发规则更新同一字段时采用 last-write-wins
	record.Data[ac.FieldName] = newValue
	if err := e.db.WithContext(ctx).Model(&record).Update("data", record.Data).Error; err != nil {
		return nil, fmt.Errorf("failed to update record field: %w", err)
	}

	return models.JSONMap{
		"action":     ActionUpdateField,
		"field_name": ac.FieldName,
		"new_value":  newValue,
	}, nil
}

func (e *AutomationEngine) executeCreateTask(ctx context.Context, rule *models.AutomationRule, event *AutomationEvent) (models.JSONMap, error) {
	ac := rule.ActionConfig
	title := renderTemplate(ac.Title, event.Record)
	if title == "" {
		title = "Automated task"
	}
	task := models.Task{
		WorkspaceID:         rule.WorkspaceID,
		Title:               title,
		Description:         renderTemplate(ac.Description, event.Record),
		Status:              "pending",
		CreatedByAutomation: true,
	}
	if event.Record != nil {
		task.RecordID = event.Record.ID
	}
	if err := e.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return models.JSONMap{
		"action":  ActionCreateTask,
		"task_id": task.ID,
		"title":   task.Title,
	}, nil
}
