package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guardian/src/model"
	"guardian/src/repository"
)

func newAlert(t *testing.T, repo *repository.AlertRepository) *model.GuardianAlert {
	t.Helper()

	alert := &model.GuardianAlert{
		TenantID:  "tenant-1",
		AlertType: model.AlertCriticalError,
		Severity:  model.SeverityCritical,
		Title:     "CRITICAL error detected in SANDBOX",
		Message:   "nil pointer dereference",
	}
	require.NoError(t, repo.Create(context.Background(), alert))
	return alert
}

func TestAlertRepository_AcknowledgeIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.AlertRepository{}).WithDB(db)
	ctx := context.Background()

	alert := newAlert(t, repo)
	first := time.Now()
	require.NoError(t, repo.Acknowledge(ctx, alert, "user:7", first))

	require.True(t, alert.IsAcknowledged)
	require.True(t, alert.IsRead, "acknowledging implies reading")
	require.Equal(t, "user:7", alert.AcknowledgedBy)

	// the second acknowledgement must not overwrite the first stamp
	require.NoError(t, repo.Acknowledge(ctx, alert, "user:8", first.Add(time.Hour)))

	stored, err := repo.FindByID(ctx, "tenant-1", alert.ID)
	require.NoError(t, err)
	require.Equal(t, "user:7", stored.AcknowledgedBy)
	require.WithinDuration(t, first, *stored.AcknowledgedAt, time.Second)
}

func TestAlertRepository_ResolveAcknowledgesFirst(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.AlertRepository{}).WithDB(db)
	ctx := context.Background()

	alert := newAlert(t, repo)
	at := time.Now()
	require.NoError(t, repo.Resolve(ctx, alert, "user:7", at))

	stored, err := repo.FindByID(ctx, "tenant-1", alert.ID)
	require.NoError(t, err)
	require.True(t, stored.IsRead)
	require.True(t, stored.IsAcknowledged)
	require.True(t, stored.IsResolved)
	require.Equal(t, "user:7", stored.ResolvedBy)

	// resolving twice is a no-op
	require.NoError(t, repo.Resolve(ctx, alert, "user:8", at.Add(time.Hour)))
	stored, err = repo.FindByID(ctx, "tenant-1", alert.ID)
	require.NoError(t, err)
	require.Equal(t, "user:7", stored.ResolvedBy)
}

func TestAlertRepository_SearchUnresolved(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.AlertRepository{}).WithDB(db)
	ctx := context.Background()

	open := newAlert(t, repo)
	closed := newAlert(t, repo)
	require.NoError(t, repo.Resolve(ctx, closed, "user:7", time.Now()))

	alerts, err := repo.Search(ctx, repository.AlertSearchOptions{TenantID: "tenant-1", Unresolved: true})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, open.ID, alerts[0].ID)

	alerts, err = repo.Search(ctx, repository.AlertSearchOptions{TenantID: "tenant-1"})
	require.NoError(t, err)
	require.Len(t, alerts, 2)
}
