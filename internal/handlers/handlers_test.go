package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"craftcrm/internal/config"
	"craftcrm/internal/models"
	"craftcrm/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testSecret = "handler-test-secret"

func newHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.Entity{},
		&models.Record{},
		&models.Task{},
		&models.AutomationRule{},
		&models.AutomationLog{},
	))
	return db
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerTestDB(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.GetDefaultConfig()
	cfg.JWT.Secret = testSecret

	engine := services.NewAutomationEngine(db, logger, services.NewLogNotifier(logger), cfg.Automation)
	workspaceSvc := services.NewWorkspaceService(db, logger)
	entitySvc := services.NewEntityService(db, logger)
	automationSvc := services.NewAutomationService(db, logger, engine)
	recordSvc := services.NewRecordService(db, logger)
	recordSvc.SetAutomationEngine(engine)
	hub := services.NewEventsHub(logger)
	recordSvc.SetEventsHub(hub)
	engine.SetEventsHub(hub)
	aiSvc := services.NewAIConfigService(cfg.AI.OpenAI, logger, workspaceSvc, entitySvc, automationSvc)

	h := &Handlers{
		Workspace:  NewWorkspaceHandler(workspaceSvc),
		Entity:     NewEntityHandler(entitySvc),
		Record:     NewRecordHandler(recordSvc),
		Automation: NewAutomationHandler(automationSvc),
		AI:         NewAIHandler(aiSvc),
		Events:     NewEventsHandler(hub),
		Health:     NewHealthHandler(db),
	}

	r := gin.New()
	RegisterRoutes(r, db, cfg, h)
	return r, db
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	claims, err := json.Marshal(map[string]interface{}{
		"user_id": userID,
		"roles":   []string{"member"},
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	payload := base64.RawURLEncoding.EncodeToString(claims)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(header + "." + payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return header + "." + payload + "." + sig
}

func doJSON(t *testing.T, r *gin.Engine, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken(t, userID))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func dataField(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")

	w = doJSON(t, r, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")
}

func TestAuthRequired(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/v1/workspaces", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWorkspaceLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/workspaces", "user-1", gin.H{
		"name": "Acme", "slug": "acme",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	wsID := dataField(t, w)["id"].(string)

	t.Run("list shows own workspace", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/v1/workspaces", "user-1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "acme")
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/v1/workspaces/"+wsID, "stranger", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("member role matrix", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/v1/workspaces/"+wsID+"/members", "user-1", gin.H{
			"user_id": "user-2", "role": "member",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		// 普通成员可读不可删
		w = doJSON(t, r, http.MethodGet, "/api/v1/workspaces/"+wsID, "user-2", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		w = doJSON(t, r, http.MethodDelete, "/api/v1/workspaces/"+wsID, "user-2", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		// owner 可删
		w = doJSON(t, r, http.MethodDelete, "/api/v1/workspaces/"+wsID, "user-1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRecordAndAutomationFlow(t *testing.T) {
	r, db := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/workspaces", "user-1", gin.H{
		"name": "Sales", "slug": "sales",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	wsID := dataField(t, w)["id"].(string)

	w = doJSON(t, r, http.MethodPost, "/api/v1/workspaces/"+wsID+"/entities", "user-1", gin.H{
		"entity_name":  "leads",
		"display_name": "Leads",
		"fields": []gin.H{
			{"name": "name", "display_name": "Name", "type": "text", "required": true},
			{"name": "status", "display_name": "Status", "type": "select", "options": []string{"new", "won"}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	entityID := dataField(t, w)["id"].(string)

	w = doJSON(t, r, http.MethodPost, "/api/v1/workspaces/"+wsID+"/automations", "user-1", gin.H{
		"entity_id":      entityID,
		"name":           "deal won task",
		"trigger_type":   "status_changed",
		"trigger_config": gin.H{"to_status": "won"},
		"action_type":    "create_task",
		"action_config":  gin.H{"title": "Celebrate {{name}}"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	automationID := dataField(t, w)["id"].(string)

	t.Run("invalid rule rejected", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/v1/workspaces/"+wsID+"/automations", "user-1", gin.H{
			"entity_id":    entityID,
			"name":         "bad",
			"trigger_type": "record_viewed",
			"action_type":  "create_task",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w = doJSON(t, r, http.MethodPost, "/api/v1/workspaces/"+wsID+"/entities/"+entityID+"/records", "user-1", gin.H{
		"data": gin.H{"name": "Acme", "status": "new"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	recordID := dataField(t, w)["id"].(string)

	t.Run("status change runs automation", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPut, "/api/v1/workspaces/"+wsID+"/records/"+recordID, "user-1", gin.H{
			"data": gin.H{"status": "won"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var task models.Task
		require.NoError(t, db.First(&task, "title = ?", "Celebrate Acme").Error)
		assert.True(t, task.CreatedByAutomation)
	})

	t.Run("logs endpoint", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet,
			"/api/v1/workspaces/"+wsID+"/automations/"+automationID+"/logs", "user-1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "success")
	})

	t.Run("test endpoint bypasses trigger", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost,
			"/api/v1/workspaces/"+wsID+"/automations/"+automationID+"/test", "user-1",
			gin.H{"record_id": recordID})
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("toggle then list", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost,
			"/api/v1/workspaces/"+wsID+"/automations/"+automationID+"/toggle", "user-1",
			gin.H{"is_active": false})
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, r, http.MethodGet, "/api/v1/workspaces/"+wsID+"/automations", "user-1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"is_active":false`)
	})

	t.Run("record validation surfaced", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/v1/workspaces/"+wsID+"/entities/"+entityID+"/records", "user-1", gin.H{
			"data": gin.H{"status": "bogus"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("paginated list", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet,
			"/api/v1/workspaces/"+wsID+"/entities/"+entityID+"/records?page=1&page_size=10", "user-1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		var resp PaginatedResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.Total)
	})
}

func TestAIGenerateEndpoint(t *testing.T) {
	r, db := newTestRouter(t)

	t.Run("preview without persistence", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/v1/ai/generate", "user-1", gin.H{
			"prompt": "sales pipeline for my startup",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "used_fallback")

		var count int64
		db.Model(&models.Workspace{}).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("generate-workspace persists", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/v1/ai/generate-workspace", "user-1", gin.H{
			"prompt": "recruiting agency tracking candidates",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var count int64
		db.Model(&models.Workspace{}).Count(&count)
		assert.Equal(t, int64(1), count)
		db.Model(&models.Entity{}).Count(&count)
		assert.Equal(t, int64(2), count)
	})
}
