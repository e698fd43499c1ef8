package handler

import (
	"net/http"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"guardian/src/repository"
	"guardian/src/utils"
)

// StatsHandler aggregates governance activity over a rolling period of N
// days (default 7, capped at 90).
func StatsHandler(repo *repository.StatsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		days := 7
		if raw := r.URL.Query().Get("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 || parsed > 90 {
				http.Error(w, "invalid days", http.StatusBadRequest)
				return
			}
			days = parsed
		}

		now := time.Now()
		since := utils.WindowStart(now, time.Duration(days)*24*time.Hour)

		stats, err := repo.Aggregate(r.Context(), actor.TenantID, since, now)
		if err != nil {
			logger.WithError(err).Error("failed to aggregate guardian stats")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
