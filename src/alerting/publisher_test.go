package alerting_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"guardian/src/alerting"
	"guardian/src/database"
	"guardian/src/model"
	"guardian/src/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
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

func TestPublisher_PersistsAndDeliversSignedPayload(t *testing.T) {
	var gotBody []byte
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = body
		gotSignature = r.Header.Get("X-Guardian-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db := newTestDB(t)
	alerts := (&repository.AlertRepository{}).WithDB(db)
	notifier := alerting.NewWebhookNotifierFor(server.URL, "sekrit")
	publisher := alerting.NewPublisherWith(alerts, notifier)

	det := &model.ErrorDetection{
		ID:       1,
		TenantID: "tenant-1",
		Severity: model.SeverityCritical,
		Message:  "nil pointer dereference",
	}
	require.NoError(t, publisher.PublishCriticalError(context.Background(), det))

	var stored model.GuardianAlert
	require.NoError(t, db.First(&stored).Error)
	require.Equal(t, model.AlertCriticalError, stored.AlertType)
	require.Equal(t, model.SeverityCritical, stored.Severity)
	require.Contains(t, stored.TargetRoles, "admin")

	var delivered model.GuardianAlert
	require.NoError(t, json.Unmarshal(gotBody, &delivered))
	require.Equal(t, "tenant-1", delivered.TenantID)

	mac := hmac.New(sha256.New, []byte("sekrit"))
	mac.Write(gotBody)
	require.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSignature)
}

func TestPublisher_DeliveryFailureStillPersists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	db := newTestDB(t)
	alerts := (&repository.AlertRepository{}).WithDB(db)
	publisher := alerting.NewPublisherWith(alerts, alerting.NewWebhookNotifierFor(server.URL, ""))

	corr := &model.Correction{CorrectionID: "corr-1", TenantID: "tenant-1"}
	require.NoError(t, publisher.PublishRollback(context.Background(), corr, "tests failed"))

	var rows int64
	require.NoError(t, db.Model(&model.GuardianAlert{}).Count(&rows).Error)
	require.EqualValues(t, 1, rows)
}

func TestPublisher_NilNotifierPersistsOnly(t *testing.T) {
	db := newTestDB(t)
	alerts := (&repository.AlertRepository{}).WithDB(db)
	publisher := alerting.NewPublisherWith(alerts, nil)

	corr := &model.Correction{CorrectionID: "corr-1", TenantID: "tenant-1"}
	require.NoError(t, publisher.PublishRollbackFailed(context.Background(), corr, "backend unreachable"))

	var stored model.GuardianAlert
	require.NoError(t, db.First(&stored).Error)
	require.Equal(t, model.AlertRollbackFailed, stored.AlertType)
	require.Equal(t, model.SeverityCritical, stored.Severity)
}

func TestWebhookNotifier_NoSignatureWithoutSecret(t *testing.T) {
	var gotSignature string
	sawRequest := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRequest = true
		gotSignature = r.Header.Get("X-Guardian-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := alerting.NewWebhookNotifierFor(server.URL, "")
	err := notifier.Deliver(context.Background(), &model.GuardianAlert{TenantID: "tenant-1"})
	require.NoError(t, err)
	require.True(t, sawRequest)
	require.Empty(t, gotSignature)
}
