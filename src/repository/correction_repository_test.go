package repository_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

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

func pendingCorrection(id string) *model.Correction {
	return &model.Correction{
		CorrectionID:               id,
		TenantID:                   "tenant-1",
		Environment:                model.EnvSandbox,
		ProbableCause:              "stale cache entries after deploy",
		CorrectionDescription:      "clear the application cache for the billing module",
		EstimatedImpact:            "cache misses for a few minutes, no data loss",
		ReversibilityJustification: "cache rebuilds itself from the primary store",
		Action:                     model.ActionCacheClear,
		ExecutedBy:                 model.ExecutedByGuardian,
	}
}

func TestCorrectionRepository_CreateWritesFirstTrailEvent(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.CorrectionRepository{}).WithDB(db)
	ctx := context.Background()

	corr := pendingCorrection("corr-1")
	require.NoError(t, repo.Create(ctx, corr))
	require.Equal(t, model.StatusPending, corr.Status)

	events, err := repo.Events(ctx, corr.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 1, events[0].Seq)
	require.Equal(t, "created", events[0].Action)
	require.Equal(t, model.ExecutedByGuardian, events[0].By)
}

func TestCorrectionRepository_CreateRejectsShortJustification(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.CorrectionRepository{}).WithDB(db)

	corr := pendingCorrection("corr-1")
	corr.EstimatedImpact = "none"
	err := repo.Create(context.Background(), corr)
	require.ErrorIs(t, err, model.ErrImpactTooShort)

	// nothing persisted on a validation failure
	var corrections, events int64
	require.NoError(t, db.Model(&model.Correction{}).Count(&corrections).Error)
	require.NoError(t, db.Model(&model.CorrectionEvent{}).Count(&events).Error)
	require.EqualValues(t, 0, corrections)
	require.EqualValues(t, 0, events)
}

func TestCorrectionRepository_TransitionAppendsMonotonicTrail(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.CorrectionRepository{}).WithDB(db)
	ctx := context.Background()

	corr := pendingCorrection("corr-1")
	require.NoError(t, repo.Create(ctx, corr))

	require.NoError(t, repo.Transition(ctx, corr, model.StatusInProgress, "execution_started", "GUARDIAN", "", nil))
	require.NoError(t, repo.Transition(ctx, corr, model.StatusTesting, "tests_started", "GUARDIAN", "", nil))
	require.NoError(t, repo.Transition(ctx, corr, model.StatusApplied, "applied", "GUARDIAN", "2 tests passed", nil))

	events, err := repo.Events(ctx, corr.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	for i, ev := range events {
		require.Equal(t, i+1, ev.Seq)
	}
	require.Equal(t, model.StatusApplied, events[3].Status)

	stored, err := repo.FindByCorrectionID(ctx, "tenant-1", "corr-1")
	require.NoError(t, err)
	require.Equal(t, model.StatusApplied, stored.Status)
	require.Equal(t, 3, stored.Version)
}

func TestCorrectionRepository_TransitionRejectsInvalidEdge(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.CorrectionRepository{}).WithDB(db)
	ctx := context.Background()

	corr := pendingCorrection("corr-1")
	require.NoError(t, repo.Create(ctx, corr))

	err := repo.Transition(ctx, corr, model.StatusApplied, "applied", "GUARDIAN", "", nil)
	require.ErrorIs(t, err, model.ErrInvalidTransition)

	// the rejected edge left no trace
	events, err := repo.Events(ctx, corr.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestCorrectionRepository_TransitionConcurrencyConflict(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.CorrectionRepository{}).WithDB(db)
	ctx := context.Background()

	corr := pendingCorrection("corr-1")
	require.NoError(t, repo.Create(ctx, corr))

	// a second worker holding the same version
	stale, err := repo.FindByCorrectionID(ctx, "tenant-1", "corr-1")
	require.NoError(t, err)

	require.NoError(t, repo.Transition(ctx, corr, model.StatusInProgress, "execution_started", "GUARDIAN", "", nil))

	err = repo.Transition(ctx, stale, model.StatusBlocked, "blocked", "GUARDIAN", "", nil)
	require.ErrorIs(t, err, repository.ErrConcurrencyConflict)

	// the losing transition wrote nothing
	events, err := repo.Events(ctx, corr.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	stored, err := repo.FindByCorrectionID(ctx, "tenant-1", "corr-1")
	require.NoError(t, err)
	require.Equal(t, model.StatusInProgress, stored.Status)
}

func TestCorrectionRepository_AppendEventKeepsStatus(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.CorrectionRepository{}).WithDB(db)
	ctx := context.Background()

	corr := pendingCorrection("corr-1")
	require.NoError(t, repo.Create(ctx, corr))
	require.NoError(t, repo.Transition(ctx, corr, model.StatusInProgress, "execution_started", "GUARDIAN", "", nil))

	require.NoError(t, repo.AppendEvent(ctx, corr, "rollback_failed", "GUARDIAN", "backend unreachable"))

	events, err := repo.Events(ctx, corr.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "rollback_failed", events[2].Action)
	require.Equal(t, 3, events[2].Seq)

	stored, err := repo.FindByCorrectionID(ctx, "tenant-1", "corr-1")
	require.NoError(t, err)
	require.Equal(t, model.StatusInProgress, stored.Status)
}

func TestCorrectionRepository_CountExecutedSince(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.CorrectionRepository{}).WithDB(db)
	ctx := context.Background()

	auto := pendingCorrection("auto-1")
	require.NoError(t, repo.Create(ctx, auto))

	manual := pendingCorrection("manual-1")
	manual.ExecutedBy = "user:7"
	require.NoError(t, repo.Create(ctx, manual))

	otherEnv := pendingCorrection("auto-2")
	otherEnv.Environment = model.EnvProduction
	require.NoError(t, repo.Create(ctx, otherEnv))

	since := time.Now().Add(-time.Minute)
	count, err := repo.CountExecutedSince(ctx, "tenant-1", model.EnvSandbox, since)
	require.NoError(t, err)
	require.EqualValues(t, 1, count, "only automatic corrections in the environment count")

	count, err = repo.CountExecutedSince(ctx, "tenant-1", model.EnvSandbox, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestCorrectionRepository_FindByCorrectionID_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.CorrectionRepository{}).WithDB(db)

	corr, err := repo.FindByCorrectionID(context.Background(), "tenant-1", "missing")
	require.NoError(t, err)
	require.Nil(t, corr)
}

func TestCorrectionRepository_Search(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.CorrectionRepository{}).WithDB(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		corr := pendingCorrection(fmt.Sprintf("corr-%d", i))
		require.NoError(t, repo.Create(ctx, corr))
	}
	foreign := pendingCorrection("corr-foreign")
	foreign.TenantID = "tenant-2"
	require.NoError(t, repo.Create(ctx, foreign))

	results, err := repo.Search(ctx, repository.CorrectionSearchOptions{TenantID: "tenant-1"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	status := model.StatusPending
	results, err = repo.Search(ctx, repository.CorrectionSearchOptions{
		TenantID: "tenant-1",
		Status:   &status,
		Limit:    2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
}
