package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guardian/src/model"
	"guardian/src/repository"
)

func newDetection(message string, at time.Time) *model.ErrorDetection {
	det := &model.ErrorDetection{
		TenantID:          "tenant-1",
		Severity:          model.SeverityCritical,
		Source:            model.SourceAPIError,
		ErrorType:         model.ErrorTypeException,
		Environment:       model.EnvSandbox,
		Message:           message,
		Module:            "billing",
		Route:             "/v1/invoices",
		OccurrenceCount:   1,
		FirstOccurrenceAt: at,
		LastOccurrenceAt:  at,
	}
	det.Fingerprint = det.ComputeFingerprint()
	return det
}

func TestErrorRepository_FindDuplicate_InsideWindow(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.ErrorRepository{}).WithDB(db)
	ctx := context.Background()

	now := time.Now()
	existing := newDetection("nil pointer dereference", now.Add(-30*time.Minute))
	require.NoError(t, repo.Create(ctx, existing))

	probe := newDetection("nil pointer dereference", now)
	dup, err := repo.FindDuplicate(ctx, probe, now)
	require.NoError(t, err)
	require.NotNil(t, dup)
	require.Equal(t, existing.ID, dup.ID)
}

func TestErrorRepository_FindDuplicate_OutsideWindow(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.ErrorRepository{}).WithDB(db)
	ctx := context.Background()

	now := time.Now()
	old := newDetection("nil pointer dereference", now.Add(-2*time.Hour))
	require.NoError(t, repo.Create(ctx, old))

	probe := newDetection("nil pointer dereference", now)
	dup, err := repo.FindDuplicate(ctx, probe, now)
	require.NoError(t, err)
	require.Nil(t, dup, "an occurrence outside the window starts a new incident")
}

func TestErrorRepository_FindDuplicate_DifferentTuple(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.ErrorRepository{}).WithDB(db)
	ctx := context.Background()

	now := time.Now()
	existing := newDetection("nil pointer dereference", now)
	require.NoError(t, repo.Create(ctx, existing))

	probe := newDetection("index out of range", now)
	dup, err := repo.FindDuplicate(ctx, probe, now)
	require.NoError(t, err)
	require.Nil(t, dup)
}

func TestErrorRepository_IncrementOccurrence(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.ErrorRepository{}).WithDB(db)
	ctx := context.Background()

	now := time.Now()
	det := newDetection("nil pointer dereference", now.Add(-10*time.Minute))
	require.NoError(t, repo.Create(ctx, det))

	require.NoError(t, repo.IncrementOccurrence(ctx, det.ID, now))
	require.NoError(t, repo.IncrementOccurrence(ctx, det.ID, now))

	stored, err := repo.FindByID(ctx, "tenant-1", det.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.OccurrenceCount)
	require.WithinDuration(t, now, stored.LastOccurrenceAt, time.Second)
}

func TestErrorRepository_LinkCorrection(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.ErrorRepository{}).WithDB(db)
	ctx := context.Background()

	det := newDetection("nil pointer dereference", time.Now())
	require.NoError(t, repo.Create(ctx, det))

	require.NoError(t, repo.LinkCorrection(ctx, det.ID, "corr-1"))

	stored, err := repo.FindByID(ctx, "tenant-1", det.ID)
	require.NoError(t, err)
	require.True(t, stored.IsProcessed)
	require.NotNil(t, stored.CorrectionID)
	require.Equal(t, "corr-1", *stored.CorrectionID)
}

func TestErrorRepository_FindByID_TenantScoped(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.ErrorRepository{}).WithDB(db)
	ctx := context.Background()

	det := newDetection("nil pointer dereference", time.Now())
	require.NoError(t, repo.Create(ctx, det))

	stored, err := repo.FindByID(ctx, "tenant-2", det.ID)
	require.NoError(t, err)
	require.Nil(t, stored, "other tenants must not see the detection")
}
