package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"guardian/src/database"
	"guardian/src/model"
)

// GuardianStats aggregates governance activity over a rolling period.
type GuardianStats struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	TotalErrors      int64            `json:"total_errors"`
	ErrorsBySeverity map[string]int64 `json:"errors_by_severity"`
	ErrorsByType     map[string]int64 `json:"errors_by_type"`
	ErrorsByModule   map[string]int64 `json:"errors_by_module"`
	ErrorsBySource   map[string]int64 `json:"errors_by_source"`

	TotalCorrections      int64 `json:"total_corrections"`
	CorrectionsApplied    int64 `json:"corrections_applied"`
	CorrectionsFailed     int64 `json:"corrections_failed"`
	CorrectionsRolledBack int64 `json:"corrections_rolled_back"`
	CorrectionsBlocked    int64 `json:"corrections_blocked"`

	TotalAlerts int64 `json:"total_alerts"`

	// Share of finished corrections that ended APPLIED, 0..1 with 4 dp
	SuccessRate decimal.Decimal `json:"success_rate"`

	AvgCorrectionDurationMs int64 `json:"avg_correction_duration_ms"`
}

// StatsRepository computes the aggregation surface exposed to
// collaborators.
type StatsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a new repository instance using the main
// read/write database.
func NewStatsRepository() *StatsRepository {
	return &StatsRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *StatsRepository) WithDB(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

type bucketCount struct {
	Bucket string
	Count  int64
}

func (r *StatsRepository) countErrorsBy(ctx context.Context, tenantID string, since time.Time, column string) (map[string]int64, error) {
	var rows []bucketCount
	err := r.db.WithContext(ctx).
		Model(&model.ErrorDetection{}).
		Select(column+" AS bucket, COUNT(*) AS count").
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		if row.Bucket == "" {
			continue
		}
		out[row.Bucket] = row.Count
	}
	return out, nil
}

func (r *StatsRepository) countCorrections(ctx context.Context, tenantID string, since time.Time, status model.CorrectionStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Correction{}).
		Where("tenant_id = ? AND created_at >= ? AND status = ?", tenantID, since, status).
		Count(&count).Error
	return count, err
}

// Aggregate computes guardian statistics for the tenant over the rolling
// period ending now.
func (r *StatsRepository) Aggregate(ctx context.Context, tenantID string, since, now time.Time) (*GuardianStats, error) {
	stats := &GuardianStats{
		PeriodStart: since,
		PeriodEnd:   now,
		SuccessRate: decimal.Zero,
	}

	if err := r.db.WithContext(ctx).
		Model(&model.ErrorDetection{}).
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Count(&stats.TotalErrors).Error; err != nil {
		return nil, err
	}

	var err error
	if stats.ErrorsBySeverity, err = r.countErrorsBy(ctx, tenantID, since, "severity"); err != nil {
		return nil, err
	}
	if stats.ErrorsByType, err = r.countErrorsBy(ctx, tenantID, since, "error_type"); err != nil {
		return nil, err
	}
	if stats.ErrorsByModule, err = r.countErrorsBy(ctx, tenantID, since, "module"); err != nil {
		return nil, err
	}
	if stats.ErrorsBySource, err = r.countErrorsBy(ctx, tenantID, since, "source"); err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).
		Model(&model.Correction{}).
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Count(&stats.TotalCorrections).Error; err != nil {
		return nil, err
	}
	if stats.CorrectionsApplied, err = r.countCorrections(ctx, tenantID, since, model.StatusApplied); err != nil {
		return nil, err
	}
	if stats.CorrectionsFailed, err = r.countCorrections(ctx, tenantID, since, model.StatusFailed); err != nil {
		return nil, err
	}
	if stats.CorrectionsRolledBack, err = r.countCorrections(ctx, tenantID, since, model.StatusRolledBack); err != nil {
		return nil, err
	}
	if stats.CorrectionsBlocked, err = r.countCorrections(ctx, tenantID, since, model.StatusBlocked); err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).
		Model(&model.GuardianAlert{}).
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Count(&stats.TotalAlerts).Error; err != nil {
		return nil, err
	}

	finished := stats.CorrectionsApplied + stats.CorrectionsFailed + stats.CorrectionsRolledBack
	if finished > 0 {
		stats.SuccessRate = decimal.NewFromInt(stats.CorrectionsApplied).
			Div(decimal.NewFromInt(finished)).
			Round(4)
	}

	// Average duration over corrections with complete timing, computed in
	// Go to stay portable across postgres and sqlite.
	var timed []model.Correction
	if err := r.db.WithContext(ctx).
		Select("execution_started_at", "execution_ended_at").
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Where("execution_started_at IS NOT NULL AND execution_ended_at IS NOT NULL").
		Find(&timed).Error; err != nil {
		return nil, err
	}
	if len(timed) > 0 {
		var total time.Duration
		for _, c := range timed {
			total += c.ExecutionEndedAt.Sub(*c.ExecutionStartedAt)
		}
		stats.AvgCorrectionDurationMs = total.Milliseconds() / int64(len(timed))
	}

	return stats, nil
}
