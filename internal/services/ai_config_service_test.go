package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"craftcrm/internal/config"
	"craftcrm/internal/models"

	openai "github.com/sashabaranov/go-openai"
	"gorm.io/gorm"
)

type fakeChatCompleter struct {
	content string
	err     error
}

func (f *fakeChatCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
		Usage: openai.Usage{PromptTokens: 10, TotalTokens: 50},
	}, nil
}

func newAIFixture(t *testing.T) (*AIConfigService, *gorm.DB) {
	t.Helper()
	db := newServiceTestDB(t)
	logger := newTestLogger()
	ws := NewWorkspaceService(db, logger)
	ent := NewEntityService(db, logger)
	rules := NewAutomationService(db, logger, newTestEngine(t, db))
	svc := NewAIConfigService(config.OpenAIConfig{Model: "gpt-4o-mini"}, logger, ws, ent, rules)
	return svc, db
}

func TestGenerateConfigFallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("no api key uses template", func(t *testing.T) {
		svc, _ := newAIFixture(t)
		cfg, meta, err := svc.GenerateConfig(ctx, "pipeline for my sales team")
		if err != nil {
			t.Fatalf("GenerateConfig() error = %v", err)
		}
		if !meta.UsedFallback {
			t.Error("expected fallback without api key")
		}
		if cfg.Industry != "sales" {
			t.Errorf("industry = %s, want sales", cfg.Industry)
		}
	})

	t.Run("template keyword routing", func(t *testing.T) {
		svc, _ := newAIFixture(t)
		cfg, _, _ := svc.GenerateConfig(ctx, "I manage property listings")
		if cfg.Industry != "real_estate" {
			t.Errorf("industry = %s, want real_estate", cfg.Industry)
		}
		cfg, _, _ = svc.GenerateConfig(ctx, "track candidates for hiring")
		if cfg.Industry != "recruitment" {
			t.Errorf("industry = %s, want recruitment", cfg.Industry)
		}
	})

	t.Run("api error falls back", func(t *testing.T) {
		svc, _ := newAIFixture(t)
		svc.client = &fakeChatCompleter{err: errors.New("rate limited")}
		cfg, meta, err := svc.GenerateConfig(ctx, "anything")
		if err != nil {
			t.Fatalf("GenerateConfig() error = %v", err)
		}
		if !meta.UsedFallback || cfg == nil {
			t.Error("expected template fallback on api error")
		}
	})

	t.Run("invalid json falls back", func(t *testing.T) {
		svc, _ := newAIFixture(t)
		svc.client = &fakeChatCompleter{content: "not json at all"}
		_, meta, err := svc.GenerateConfig(ctx, "anything")
		if err != nil {
			t.Fatalf("GenerateConfig() error = %v", err)
		}
		if !meta.UsedFallback {
			t.Error("expected fallback on invalid json")
		}
	})

	t.Run("unsupported trigger type falls back", func(t *testing.T) {
		svc, _ := newAIFixture(t)
		bad, _ := json.Marshal(CRMConfig{WorkspaceName: "X",
			Entities: []EntityTemplate{
				{EntityName: "a", DisplayName: "A", Fields: models.FieldList{{Name: "f", Type: "text"}}},
			},
			Automations: []AutomationTemplate{
				{EntityName: "a", Name: "bad", TriggerType: "record_viewed", ActionType: ActionCreateTask},
			},
		})
		svc.client = &fakeChatCompleter{content: string(bad)}
		_, meta, err := svc.GenerateConfig(ctx, "anything")
		if err != nil {
			t.Fatalf("GenerateConfig() error = %v", err)
		}
		if !meta.UsedFallback {
			t.Error("expected fallback on unsupported trigger type")
		}
	})

	t.Run("unknown field type coerced to text", func(t *testing.T) {
		svc, _ := newAIFixture(t)
		odd, _ := json.Marshal(CRMConfig{WorkspaceName: "X", Entities: []EntityTemplate{
			{EntityName: "a", DisplayName: "A", Fields: models.FieldList{{Name: "f", DisplayName: "F", Type: "hologram"}}},
		}})
		svc.client = &fakeChatCompleter{content: string(odd)}
		cfg, meta, err := svc.GenerateConfig(ctx, "anything")
		if err != nil {
			t.Fatalf("GenerateConfig() error = %v", err)
		}
		if meta.UsedFallback {
			t.Fatal("coercible config should not fall back")
		}
		if got := cfg.Entities[0].Fields[0].Type; got != "text" {
			t.Errorf("field type = %s, want text", got)
		}
	})
}

func TestGenerateConfigFromModel(t *testing.T) {
	svc, _ := newAIFixture(t)
	good, _ := json.Marshal(CRMConfig{
		WorkspaceName: "Consulting CRM",
		Industry:      "consulting",
		Entities: []EntityTemplate{
			{
				EntityName:  "clients",
				DisplayName: "Clients",
				Fields: models.FieldList{
					{Name: "name", DisplayName: "Name", Type: "text", Required: true},
					{Name: "status", DisplayName: "Status", Type: "select", Options: []string{"active", "closed"}},
				},
			},
		},
		Automations: []AutomationTemplate{
			{
				EntityName:   "clients",
				Name:         "Welcome client",
				TriggerType:  TriggerRecordCreated,
				ActionType:   ActionCreateTask,
				ActionConfig: models.ActionConfig{Title: "Onboard {{name}}"},
			},
		},
	})
	svc.client = &fakeChatCompleter{content: string(good)}

	cfg, meta, err := svc.GenerateConfig(context.Background(), "consulting business")
	if err != nil {
		t.Fatalf("GenerateConfig() error = %v", err)
	}
	if meta.UsedFallback {
		t.Error("valid model output should not fall back")
	}
	if meta.TotalTokens != 50 {
		t.Errorf("total tokens = %d, want 50", meta.TotalTokens)
	}
	if cfg.WorkspaceName != "Consulting CRM" || len(cfg.Entities) != 1 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestGenerateWorkspace(t *testing.T) {
	svc, db := newAIFixture(t)
	ctx := context.Background()

	ws, meta, err := svc.GenerateWorkspace(ctx, "user-1", "sales pipeline")
	if err != nil {
		t.Fatalf("GenerateWorkspace() error = %v", err)
	}
	if !meta.UsedFallback {
		t.Error("expected template fallback without api key")
	}

	var entityCount, ruleCount, memberCount int64
	db.Model(&models.Entity{}).Where("workspace_id = ?", ws.ID).Count(&entityCount)
	db.Model(&models.AutomationRule{}).Where("workspace_id = ?", ws.ID).Count(&ruleCount)
	db.Model(&models.WorkspaceMember{}).Where("workspace_id = ?", ws.ID).Count(&memberCount)

	if entityCount != 2 {
		t.Errorf("entities = %d, want 2", entityCount)
	}
	if ruleCount != 2 {
		t.Errorf("rules = %d, want 2", ruleCount)
	}
	if memberCount != 1 {
		t.Errorf("members = %d, want 1 (owner)", memberCount)
	}
	if ws.Config["generated_by"] != "ai" {
		t.Errorf("workspace config = %v", ws.Config)
	}
}
