package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"guardian/src/database"
	"guardian/src/model"
	"guardian/src/repository"
)

func newHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in memory db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func ruleRouter(repo *repository.RuleRepository) http.Handler {
	r := chi.NewRouter()
	r.Get("/rules", ListRulesHandler(repo))
	r.Post("/rules", CreateRuleHandler(repo))
	r.Put("/rules/{id}", UpdateRuleHandler(repo))
	r.Delete("/rules/{id}", DeactivateRuleHandler(repo))
	return r
}

func TestCreateRuleHandler_StripsSystemFlag(t *testing.T) {
	db := newHandlerTestDB(t)
	repo := (&repository.RuleRepository{}).WithDB(db)
	router := ruleRouter(repo)

	body := `{"name":"clear cache","correction_action":"CACHE_CLEAR","allowed_environments":"SANDBOX","is_system_rule":true,"execution_count":99}`
	req := httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(body))
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var stored model.CorrectionRule
	require.NoError(t, db.First(&stored).Error)
	require.False(t, stored.IsSystemRule, "tenants cannot create system rules")
	require.Equal(t, 0, stored.ExecutionCount, "counters always start at zero")
	require.Equal(t, "tenant-1", stored.TenantID)
}

func TestCreateRuleHandler_RejectsMissingAction(t *testing.T) {
	db := newHandlerTestDB(t)
	router := ruleRouter((&repository.RuleRepository{}).WithDB(db))

	req := httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(`{"name":"no action"}`))
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateRuleHandler_SystemRuleForbidden(t *testing.T) {
	db := newHandlerTestDB(t)
	repo := (&repository.RuleRepository{}).WithDB(db)
	router := ruleRouter(repo)

	rule := model.CorrectionRule{
		TenantID:     "tenant-1",
		Name:         "baseline system rule",
		Action:       model.ActionMonitoringOnly,
		IsSystemRule: true,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&rule).Error)

	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/rules/%d", rule.ID), strings.NewReader(`{"name":"tampered"}`))
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/rules/%d", rule.ID), nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rr = httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestDeactivateRuleHandler_NotFound(t *testing.T) {
	db := newHandlerTestDB(t)
	router := ruleRouter((&repository.RuleRepository{}).WithDB(db))

	req := httptest.NewRequest(http.MethodDelete, "/rules/424242", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
