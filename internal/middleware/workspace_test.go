package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"craftcrm/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMembershipRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Workspace{}, &models.WorkspaceMember{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	r := gin.New()
	r.GET("/ws/:id",
		func(c *gin.Context) { c.Set("user_id", c.GetHeader("X-Test-User")) },
		WorkspaceMemberMiddleware(db, "id"),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"role": c.GetString("member_role")})
		})
	r.DELETE("/ws/:id",
		func(c *gin.Context) { c.Set("user_id", c.GetHeader("X-Test-User")) },
		WorkspaceMemberMiddleware(db, "id"),
		RequireWorkspaceRole("owner"),
		func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r, db
}

func TestWorkspaceMemberMiddleware(t *testing.T) {
	r, db := newMembershipRouter(t)

	member := models.WorkspaceMember{WorkspaceID: "ws-1", UserID: "user-1", Role: "member"}
	owner := models.WorkspaceMember{WorkspaceID: "ws-1", UserID: "user-2", Role: "owner"}
	for _, m := range []*models.WorkspaceMember{&member, &owner} {
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("failed to seed member: %v", err)
		}
	}

	do := func(method, path, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("member passes and role is injected", func(t *testing.T) {
		w := do(http.MethodGet, "/ws/ws-1", "user-1")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if body := w.Body.String(); body != `{"role":"member"}` {
			t.Errorf("body = %s", body)
		}
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		if w := do(http.MethodGet, "/ws/ws-1", "stranger"); w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})

	t.Run("missing identity is unauthorized", func(t *testing.T) {
		if w := do(http.MethodGet, "/ws/ws-1", ""); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("role gate rejects member", func(t *testing.T) {
		if w := do(http.MethodDelete, "/ws/ws-1", "user-1"); w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})

	t.Run("role gate admits owner", func(t *testing.T) {
		if w := do(http.MethodDelete, "/ws/ws-1", "user-2"); w.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", w.Code)
		}
	})
}
