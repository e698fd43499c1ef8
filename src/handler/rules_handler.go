package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"guardian/src/model"
	"guardian/src/repository"
)

// ListRulesHandler returns the tenant's active rules in evaluation order.
func ListRulesHandler(repo *repository.RuleRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		rules, err := repo.ActiveRules(r.Context(), actor.TenantID)
		if err != nil {
			logger.WithError(err).Error("failed to list rules")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

// CreateRuleHandler creates a tenant rule. Tenants can never create system
// rules.
func CreateRuleHandler(repo *repository.RuleRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		var rule model.CorrectionRule
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&rule); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if rule.Name == "" || rule.Action == "" {
			http.Error(w, "name and correction_action are required", http.StatusBadRequest)
			return
		}
		if _, err := rule.Conditions(); err != nil {
			http.Error(w, "invalid trigger_conditions", http.StatusBadRequest)
			return
		}

		rule.ID = 0
		rule.TenantID = actor.TenantID
		rule.IsSystemRule = false
		rule.IsActive = true
		rule.Version = 1
		rule.ExecutionCount = 0
		rule.SuccessCount = 0
		rule.FailureCount = 0
		rule.LastExecutionAt = nil

		if err := repo.Create(r.Context(), &rule); err != nil {
			logger.WithError(err).Error("failed to create rule")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, rule)
	}
}

type ruleUpdatePayload struct {
	Name                    *string          `json:"name"`
	Description             *string          `json:"description"`
	TriggerErrorType        *model.ErrorType `json:"trigger_error_type"`
	TriggerErrorCode        *string          `json:"trigger_error_code"`
	TriggerModule           *string          `json:"trigger_module"`
	MinSeverity             *model.Severity  `json:"min_severity"`
	TriggerConditions       *string          `json:"trigger_conditions"`
	ActionConfig            *string          `json:"action_config"`
	AllowedEnvironments     *string          `json:"allowed_environments"`
	MaxPerHour              *int             `json:"max_corrections_per_hour"`
	CooldownSeconds         *int             `json:"cooldown_seconds"`
	RequiresHumanValidation *bool            `json:"requires_human_validation"`
	RiskLevel               *model.RiskLevel `json:"risk_level"`
	IsReversible            *bool            `json:"is_reversible"`
	RequiredTests           *string          `json:"required_tests"`
	IsActive                *bool            `json:"is_active"`
}

// UpdateRuleHandler edits a tenant rule. System rules are immutable.
func UpdateRuleHandler(repo *repository.RuleRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		rule, err := repo.FindByID(r.Context(), actor.TenantID, uint(id))
		if err != nil {
			logger.WithError(err).Error("failed to fetch rule")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if rule == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "rule not found"})
			return
		}

		var payload ruleUpdatePayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		applyRuleUpdate(rule, payload)

		if err := repo.Update(r.Context(), rule); err != nil {
			if errors.Is(err, repository.ErrSystemRuleImmutable) {
				writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
				return
			}
			logger.WithError(err).Error("failed to update rule")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func applyRuleUpdate(rule *model.CorrectionRule, payload ruleUpdatePayload) {
	if payload.Name != nil {
		rule.Name = *payload.Name
	}
	if payload.Description != nil {
		rule.Description = *payload.Description
	}
	if payload.TriggerErrorType != nil {
		rule.TriggerErrorType = *payload.TriggerErrorType
	}
	if payload.TriggerErrorCode != nil {
		rule.TriggerErrorCode = *payload.TriggerErrorCode
	}
	if payload.TriggerModule != nil {
		rule.TriggerModule = *payload.TriggerModule
	}
	if payload.MinSeverity != nil {
		rule.MinSeverity = *payload.MinSeverity
	}
	if payload.TriggerConditions != nil {
		rule.TriggerConditions = *payload.TriggerConditions
	}
	if payload.ActionConfig != nil {
		rule.ActionConfig = *payload.ActionConfig
	}
	if payload.AllowedEnvironments != nil {
		rule.AllowedEnvironments = *payload.AllowedEnvironments
	}
	if payload.MaxPerHour != nil {
		rule.MaxPerHour = *payload.MaxPerHour
	}
	if payload.CooldownSeconds != nil {
		rule.CooldownSeconds = *payload.CooldownSeconds
	}
	if payload.RequiresHumanValidation != nil {
		rule.RequiresHumanValidation = *payload.RequiresHumanValidation
	}
	if payload.RiskLevel != nil {
		rule.RiskLevel = *payload.RiskLevel
	}
	if payload.IsReversible != nil {
		rule.IsReversible = *payload.IsReversible
	}
	if payload.RequiredTests != nil {
		rule.RequiredTests = *payload.RequiredTests
	}
	if payload.IsActive != nil {
		rule.IsActive = *payload.IsActive
	}
}

// DeactivateRuleHandler soft-disables a tenant rule.
func DeactivateRuleHandler(repo *repository.RuleRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		if err := repo.Deactivate(r.Context(), actor.TenantID, uint(id)); err != nil {
			switch {
			case errors.Is(err, repository.ErrSystemRuleImmutable):
				writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
			case errors.Is(err, gorm.ErrRecordNotFound):
				writeJSON(w, http.StatusNotFound, errorResponse{Error: "rule not found"})
			default:
				logger.WithError(err).Error("failed to deactivate rule")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
