package services

import (
	"context"
	"testing"

	"craftcrm/internal/models"
)

func TestWorkspaceCreate(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewWorkspaceService(db, newTestLogger())
	ctx := context.Background()

	t.Run("creates workspace with owner member", func(t *testing.T) {
		ws, err := svc.Create(ctx, &CreateWorkspaceRequest{
			Name:    "Acme Sales",
			Slug:    "acme-sales",
			OwnerID: "user-1",
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		var member models.WorkspaceMember
		if err := db.First(&member, "workspace_id = ?", ws.ID).Error; err != nil {
			t.Fatalf("expected owner member: %v", err)
		}
		if member.UserID != "user-1" || member.Role != "owner" {
			t.Errorf("member = %+v, want user-1/owner", member)
		}
	})

	t.Run("duplicate slug rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, &CreateWorkspaceRequest{
			Name:    "Other",
			Slug:    "acme-sales",
			OwnerID: "user-2",
		})
		if err == nil {
			t.Error("expected slug conflict error")
		}
	})

	t.Run("invalid slug rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, &CreateWorkspaceRequest{
			Name:    "Bad",
			Slug:    "Not A Slug!",
			OwnerID: "user-1",
		})
		if err == nil {
			t.Error("expected slug format error")
		}
	})
}

func TestWorkspaceMembers(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewWorkspaceService(db, newTestLogger())
	ctx := context.Background()

	ws, err := svc.Create(ctx, &CreateWorkspaceRequest{
		Name: "Team", Slug: "team", OwnerID: "owner-1",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("add member", func(t *testing.T) {
		m, err := svc.AddMember(ctx, ws.ID, &AddMemberRequest{UserID: "user-2", Role: "admin", InvitedBy: "owner-1"})
		if err != nil {
			t.Fatalf("AddMember() error = %v", err)
		}
		if m.Role != "admin" {
			t.Errorf("role = %s, want admin", m.Role)
		}
		if _, err := svc.AddMember(ctx, ws.ID, &AddMemberRequest{UserID: "user-2"}); err == nil {
			t.Error("expected duplicate-member error")
		}
		if _, err := svc.AddMember(ctx, ws.ID, &AddMemberRequest{UserID: "user-3", Role: "owner"}); err == nil {
			t.Error("expected owner-role rejection")
		}
	})

	t.Run("list members", func(t *testing.T) {
		members, err := svc.ListMembers(ctx, ws.ID)
		if err != nil {
			t.Fatalf("ListMembers() error = %v", err)
		}
		if len(members) != 2 {
			t.Errorf("members = %d, want 2", len(members))
		}
	})

	t.Run("update role protects owner", func(t *testing.T) {
		if err := svc.UpdateMemberRole(ctx, ws.ID, "user-2", "member"); err != nil {
			t.Errorf("UpdateMemberRole() error = %v", err)
		}
		if err := svc.UpdateMemberRole(ctx, ws.ID, "owner-1", "member"); err == nil {
			t.Error("owner role change should be rejected")
		}
	})

	t.Run("remove member protects owner", func(t *testing.T) {
		if err := svc.RemoveMember(ctx, ws.ID, "user-2"); err != nil {
			t.Errorf("RemoveMember() error = %v", err)
		}
		if err := svc.RemoveMember(ctx, ws.ID, "owner-1"); err == nil {
			t.Error("owner removal should be rejected")
		}
	})

	t.Run("list for user", func(t *testing.T) {
		list, err := svc.ListForUser(ctx, "owner-1")
		if err != nil {
			t.Fatalf("ListForUser() error = %v", err)
		}
		if len(list) != 1 {
			t.Errorf("workspaces = %d, want 1", len(list))
		}
		list, _ = svc.ListForUser(ctx, "user-2")
		if len(list) != 0 {
			t.Errorf("removed member should see 0 workspaces, got %d", len(list))
		}
	})
}

func TestWorkspaceOverview(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewWorkspaceService(db, newTestLogger())
	ctx := context.Background()

	ws, err := svc.Create(ctx, &CreateWorkspaceRequest{Name: "W", Slug: "w", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	entity := models.Entity{WorkspaceID: ws.ID, EntityName: "leads", DisplayName: "Leads", IsActive: true}
	db.Create(&entity)
	db.Create(&models.Record{WorkspaceID: ws.ID, EntityID: entity.ID, Data: models.JSONMap{"a": "b"}})
	db.Create(&models.Record{WorkspaceID: ws.ID, EntityID: entity.ID, IsArchived: true})
	db.Create(&models.AutomationRule{WorkspaceID: ws.ID, EntityID: entity.ID, Name: "r",
		TriggerType: TriggerRecordCreated, ActionType: ActionCreateTask})
	db.Create(&models.Task{WorkspaceID: ws.ID, Title: "t", Status: "pending"})
	db.Create(&models.Task{WorkspaceID: ws.ID, Title: "t2", Status: "done"})

	o, err := svc.Overview(ctx, ws.ID)
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if o.EntityCount != 1 || o.RecordCount != 1 || o.MemberCount != 1 ||
		o.AutomationCount != 1 || o.PendingTasks != 1 {
		t.Errorf("overview = %+v", o)
	}
	if o.RecordsByEntity["leads"] != 1 {
		t.Errorf("records_by_entity = %v, want leads:1", o.RecordsByEntity)
	}
}
