package services

import (
	"context"
	"testing"

	"craftcrm/internal/models"

	"gorm.io/gorm"
)

func newAutomationService(t *testing.T) (*AutomationService, *gorm.DB) {
	t.Helper()
	db := newServiceTestDB(t)
	engine := newTestEngine(t, db)
	return NewAutomationService(db, newTestLogger(), engine), db
}

func validRuleRequest() *CreateRuleRequest {
	return &CreateRuleRequest{
		WorkspaceID: "ws-1",
		EntityID:    "ent-1",
		Name:        "notify on won",
		TriggerType: TriggerStatusChanged,
		TriggerConfig: models.TriggerConfig{
			ToStatus: "won",
		},
		ActionType: ActionSendEmail,
		ActionConfig: models.ActionConfig{
			Subject: "Deal won: {{name}}",
			Body:    "Congrats",
			ToEmail: "sales@example.com",
		},
	}
}

func TestCreateRuleValidation(t *testing.T) {
	svc, _ := newAutomationService(t)
	ctx := context.Background()

	t.Run("valid rule", func(t *testing.T) {
		rule, err := svc.CreateRule(ctx, validRuleRequest())
		if err != nil {
			t.Fatalf("CreateRule() error = %v", err)
		}
		if rule.ID == "" {
			t.Error("rule should get an id")
		}
		if !rule.IsActive {
			t.Error("rule should default to active")
		}
	})

	t.Run("field_updated without field name is a wildcard", func(t *testing.T) {
		req := validRuleRequest()
		req.TriggerType = TriggerFieldUpdated
		req.TriggerConfig = models.TriggerConfig{}
		if _, err := svc.CreateRule(ctx, req); err != nil {
			t.Errorf("CreateRule() error = %v, want any-field rule accepted", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*CreateRuleRequest)
	}{
		{"unknown trigger type", func(r *CreateRuleRequest) { r.TriggerType = "record_viewed" }},
		{"unknown action type", func(r *CreateRuleRequest) { r.ActionType = "play_sound" }},
		{"send_email without subject", func(r *CreateRuleRequest) {
			r.ActionConfig = models.ActionConfig{Body: "b"}
		}},
		{"webhook without url", func(r *CreateRuleRequest) {
			r.ActionType = ActionWebhook
			r.ActionConfig = models.ActionConfig{}
		}},
		{"webhook with bad scheme", func(r *CreateRuleRequest) {
			r.ActionType = ActionWebhook
			r.ActionConfig = models.ActionConfig{URL: "ftp://example.com"}
		}},
		{"webhook with GET method", func(r *CreateRuleRequest) {
			r.ActionType = ActionWebhook
			r.ActionConfig = models.ActionConfig{URL: "https://example.com", Method: "GET"}
		}},
		{"update_field without field name", func(r *CreateRuleRequest) {
			r.ActionType = ActionUpdateField
			r.ActionConfig = models.ActionConfig{NewValue: "x"}
		}},
		{"create_task without title", func(r *CreateRuleRequest) {
			r.ActionType = ActionCreateTask
			r.ActionConfig = models.ActionConfig{}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRuleRequest()
			tt.mutate(req)
			if _, err := svc.CreateRule(ctx, req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRuleCRUD(t *testing.T) {
	svc, _ := newAutomationService(t)
	ctx := context.Background()

	rule, err := svc.CreateRule(ctx, validRuleRequest())
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	t.Run("get scoped by workspace", func(t *testing.T) {
		if _, err := svc.GetRule(ctx, "ws-1", rule.ID); err != nil {
			t.Errorf("GetRule() error = %v", err)
		}
		if _, err := svc.GetRule(ctx, "ws-other", rule.ID); err == nil {
			t.Error("rule must not be visible from another workspace")
		}
	})

	t.Run("list by entity", func(t *testing.T) {
		rules, err := svc.ListRules(ctx, "ws-1", "ent-1")
		if err != nil {
			t.Fatalf("ListRules() error = %v", err)
		}
		if len(rules) != 1 {
			t.Errorf("rules = %d, want 1", len(rules))
		}
		rules, _ = svc.ListRules(ctx, "ws-1", "ent-other")
		if len(rules) != 0 {
			t.Errorf("rules for other entity = %d, want 0", len(rules))
		}
	})

	t.Run("update revalidates", func(t *testing.T) {
		req := validRuleRequest()
		req.Name = "renamed"
		req.ActionType = ActionCreateTask
		req.ActionConfig = models.ActionConfig{Title: "Follow up"}
		updated, err := svc.UpdateRule(ctx, "ws-1", rule.ID, req)
		if err != nil {
			t.Fatalf("UpdateRule() error = %v", err)
		}
		if updated.Name != "renamed" || updated.ActionType != ActionCreateTask {
			t.Errorf("update not applied: %+v", updated)
		}

		bad := validRuleRequest()
		bad.TriggerType = "bogus"
		if _, err := svc.UpdateRule(ctx, "ws-1", rule.ID, bad); err == nil {
			t.Error("expected validation error on update")
		}
	})

	t.Run("toggle active", func(t *testing.T) {
		if err := svc.SetActive(ctx, "ws-1", rule.ID, false); err != nil {
			t.Fatalf("SetActive() error = %v", err)
		}
		got, _ := svc.GetRule(ctx, "ws-1", rule.ID)
		if got.IsActive {
			t.Error("rule should be inactive")
		}
		if err := svc.SetActive(ctx, "ws-1", "missing", false); err == nil {
			t.Error("expected not-found error")
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := svc.DeleteRule(ctx, "ws-1", rule.ID); err != nil {
			t.Fatalf("DeleteRule() error = %v", err)
		}
		if err := svc.DeleteRule(ctx, "ws-1", rule.ID); err == nil {
			t.Error("expected not-found on second delete")
		}
	})
}

func TestTestRuleAndLogs(t *testing.T) {
	svc, db := newAutomationService(t)
	ctx := context.Background()

	record := seedRecord(t, db, "ws-1", "ent-1", models.JSONMap{"name": "Acme"})

	req := validRuleRequest()
	req.ActionType = ActionCreateTask
	req.ActionConfig = models.ActionConfig{Title: "Call {{name}}"}
	rule, err := svc.CreateRule(ctx, req)
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	res, err := svc.TestRule(ctx, "ws-1", rule.ID, record.ID)
	if err != nil {
		t.Fatalf("TestRule() error = %v", err)
	}
	if !res.Success {
		t.Fatalf("TestRule() failed: %s", res.Error)
	}

	var task models.Task
	if err := db.First(&task).Error; err != nil {
		t.Fatalf("expected task created by test run: %v", err)
	}
	if task.Title != "Call Acme" {
		t.Errorf("task title = %q", task.Title)
	}

	logs, err := svc.ListLogs(ctx, "ws-1", rule.ID, 10)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(logs))
	}
	if logs[0].Status != "success" {
		t.Errorf("log status = %s", logs[0].Status)
	}

	if _, err := svc.ListLogs(ctx, "ws-other", rule.ID, 10); err == nil {
		t.Error("logs must not be visible from another workspace")
	}
}
