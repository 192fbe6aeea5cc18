package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"craftcrm/internal/config"
	"craftcrm/internal/models"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const configSystemPrompt = `You are a CRM configuration expert. Given a business description,
produce a JSON object describing the CRM setup:
{
  "workspace_name": string,
  "industry": string,
  "entities": [
    {
      "entity_name": string (snake_case),
      "display_name": string,
      "display_name_singular": string,
      "icon": string,
      "fields": [
        {"name": string (snake_case), "display_name": string,
         "type": "text|textarea|email|phone|url|number|currency|select|multiselect|checkbox|date|datetime",
         "required": bool, "options": [string] (for select/multiselect)}
      ]
    }
  ],
  "automations": [
    {"entity_name": string, "name": string,
     "trigger_type": "record_created|status_changed|field_updated|record_deleted",
     "trigger_config": {"from_status": string, "to_status": string, "field_name": string},
     "action_type": "send_email|webhook|update_field|create_task",
     "action_config": {"subject": string, "body": string, "to_email": string,
                       "field_name": string, "new_value": string,
                       "title": string, "description": string}}
  ]
}
Return only valid JSON. Every entity should include a "status" select field.`

// CRMConfig AI 生成（或模板兜底）的工作区蓝图
type CRMConfig struct {
	WorkspaceName string               `json:"workspace_name"`
	Industry      string               `json:"industry"`
	Entities      []EntityTemplate     `json:"entities"`
	Automations   []AutomationTemplate `json:"automations"`
}

type EntityTemplate struct {
	EntityName          string           `json:"entity_name"`
	DisplayName         string           `json:"display_name"`
	DisplayNameSingular string           `json:"display_name_singular"`
	Icon                string           `json:"icon"`
	Fields              models.FieldList `json:"fields"`
}

type AutomationTemplate struct {
	EntityName    string               `json:"entity_name"`
	Name          string               `json:"name"`
	TriggerType   string               `json:"trigger_type"`
	TriggerConfig models.TriggerConfig `json:"trigger_config"`
	ActionType    string               `json:"action_type"`
	ActionConfig  models.ActionConfig  `json:"action_config"`
}

// GenerationMetadata 生成过程信息，随配置一并返回给前端展示。
type GenerationMetadata struct {
	Model        string        `json:"model"`
	UsedFallback bool          `json:"used_fallback"`
	PromptTokens int           `json:"prompt_tokens,omitempty"`
	TotalTokens  int           `json:"total_tokens,omitempty"`
	Duration     time.Duration `json:"duration_ms"`
}

// chatCompleter is the slice of the OpenAI client the service needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AIConfigService 用 LLM 从一句业务描述生成完整 CRM 配置，
// 失败时回退到内置行业模板。
type AIConfigService struct {
	client    chatCompleter
	cfg       config.OpenAIConfig
	logger    *logrus.Logger
	workspace *WorkspaceService
	entities  *EntityService
	rules     *AutomationService
}

func NewAIConfigService(cfg config.OpenAIConfig, logger *logrus.Logger,
	workspace *WorkspaceService, entities *EntityService, rules *AutomationService) *AIConfigService {

	var client chatCompleter
	if cfg.APIKey != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			cc.BaseURL = cfg.BaseURL
		}
		client = openai.NewClientWithConfig(cc)
	}
	return &AIConfigService{
		client:    client,
		cfg:       cfg,
		logger:    logger,
		workspace: workspace,
		entities:  entities,
		rules:     rules,
	}
}

// GenerateConfig 生成配置。未配置 API key 或调用/解析失败时使用模板兜底。
func (s *AIConfigService) GenerateConfig(ctx context.Context, prompt string) (*CRMConfig, *GenerationMetadata, error) {
	start := time.Now()
	meta := &GenerationMetadata{Model: s.cfg.Model}

	if s.client == nil {
		cfg := templateForPrompt(prompt)
		meta.UsedFallback = true
		meta.Duration = time.Since(start)
		return cfg, meta, nil
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: float32(s.cfg.Temperature),
		MaxTokens:   s.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: configSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		s.logger.WithError(err).Warn("AI config generation failed, using industry template")
		cfg := templateForPrompt(prompt)
		meta.UsedFallback = true
		meta.Duration = time.Since(start)
		return cfg, meta, nil
	}

	meta.PromptTokens = resp.Usage.PromptTokens
	meta.TotalTokens = resp.Usage.TotalTokens

	var cfg CRMConfig
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &cfg); err != nil {
		s.logger.WithError(err).Warn("AI returned invalid JSON, using industry template")
		fallback := templateForPrompt(prompt)
		meta.UsedFallback = true
		meta.Duration = time.Since(start)
		return fallback, meta, nil
	}
	s.normalizeCRMConfig(&cfg)
	if err := validateCRMConfig(&cfg); err != nil {
		s.logger.WithError(err).Warn("AI config failed validation, using industry template")
		fallback := templateForPrompt(prompt)
		meta.UsedFallback = true
		meta.Duration = time.Since(start)
		return fallback, meta, nil
	}

	meta.Duration = time.Since(start)
	return &cfg, meta, nil
}

// normalizeCRMConfig 宽容处理模型输出：未知字段类型降级为 text。
// 触发/动作类型不降级，交由 validateCRMConfig 拒绝。
func (s *AIConfigService) normalizeCRMConfig(cfg *CRMConfig) {
	for i := range cfg.Entities {
		fields := cfg.Entities[i].Fields
		for j := range fields {
			if _, ok := supportedFieldTypes[fields[j].Type]; ok {
				continue
			}
			s.logger.WithFields(logrus.Fields{
				"entity": cfg.Entities[i].EntityName,
				"field":  fields[j].Name,
				"type":   fields[j].Type,
			}).Warn("Unknown field type in AI config, coercing to text")
			fields[j].Type = "text"
			fields[j].Options = nil
		}
	}
}

// validateCRMConfig 确保生成结果能直接落库。
func validateCRMConfig(cfg *CRMConfig) error {
	if cfg.WorkspaceName == "" {
		return fmt.Errorf("missing workspace_name")
	}
	if len(cfg.Entities) == 0 {
		return fmt.Errorf("config has no entities")
	}
	names := make(map[string]struct{}, len(cfg.Entities))
	for _, e := range cfg.Entities {
		if e.EntityName == "" || e.DisplayName == "" {
			return fmt.Errorf("entity missing name")
		}
		if _, dup := names[e.EntityName]; dup {
			return fmt.Errorf("duplicate entity '%s'", e.EntityName)
		}
		names[e.EntityName] = struct{}{}
		if err := validateFields(e.Fields); err != nil {
			return err
		}
	}
	for _, a := range cfg.Automations {
		if _, ok := names[a.EntityName]; !ok {
			return fmt.Errorf("automation '%s' references unknown entity '%s'", a.Name, a.EntityName)
		}
		if !isSupportedTrigger(a.TriggerType) {
			return fmt.Errorf("automation '%s' has unsupported trigger '%s'", a.Name, a.TriggerType)
		}
		if !isSupportedAction(a.ActionType) {
			return fmt.Errorf("automation '%s' has unsupported action '%s'", a.Name, a.ActionType)
		}
	}
	return nil
}

// GenerateWorkspace 生成配置并落库：工作区 + 实体 + 自动化规则。
func (s *AIConfigService) GenerateWorkspace(ctx context.Context, userID, prompt string) (*models.Workspace, *GenerationMetadata, error) {
	cfg, meta, err := s.GenerateConfig(ctx, prompt)
	if err != nil {
		return nil, meta, err
	}

	workspace, err := s.workspace.Create(ctx, &CreateWorkspaceRequest{
		Name:    cfg.WorkspaceName,
		Slug:    slugify(cfg.WorkspaceName),
		OwnerID: userID,
		Config: models.JSONMap{
			"industry":     cfg.Industry,
			"generated_by": "ai",
		},
	})
	if err != nil {
		return nil, meta, err
	}

	entityIDs := make(map[string]string, len(cfg.Entities))
	for _, tpl := range cfg.Entities {
		entity, err := s.entities.Create(ctx, workspace.ID, &CreateEntityRequest{
			EntityName:          tpl.EntityName,
			DisplayName:         tpl.DisplayName,
			DisplayNameSingular: tpl.DisplayNameSingular,
			Icon:                tpl.Icon,
			Fields:              tpl.Fields,
			CreatedBy:           userID,
		})
		if err != nil {
			return nil, meta, fmt.Errorf("failed to create entity '%s': %w", tpl.EntityName, err)
		}
		entityIDs[tpl.EntityName] = entity.ID
	}

	// 生成的规则默认停用，由用户检查后再启用
	inactive := false
	for _, tpl := range cfg.Automations {
		_, err := s.rules.CreateRule(ctx, &CreateRuleRequest{
			WorkspaceID:   workspace.ID,
			EntityID:      entityIDs[tpl.EntityName],
			Name:          tpl.Name,
			TriggerType:   tpl.TriggerType,
			TriggerConfig: tpl.TriggerConfig,
			ActionType:    tpl.ActionType,
			ActionConfig:  tpl.ActionConfig,
			IsActive:      &inactive,
			CreatedBy:     userID,
		})
		if err != nil {
			return nil, meta, fmt.Errorf("failed to create automation '%s': %w", tpl.Name, err)
		}
	}

	return workspace, meta, nil
}

// slugify 把工作区名转成 slug；加时间后缀避免碰撞。
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "workspace"
	}
	return fmt.Sprintf("%s-%d", slug, time.Now().UnixNano()%1000000)
}
