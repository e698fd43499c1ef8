package guardian

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	logger "github.com/sirupsen/logrus"

	"guardian/src/model"
)

// MatchRule evaluates the tenant's active rules against a new detection in
// the order given and returns the first match, or nil when no rule
// applies. The caller guarantees a deterministic rule order.
func MatchRule(rules []model.CorrectionRule, det *model.ErrorDetection) *model.CorrectionRule {
	for i := range rules {
		rule := &rules[i]
		ok, err := ruleMatches(rule, det)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"component": "RuleMatcher",
				"rule_id":   rule.ID,
				"tenant":    rule.TenantID,
			}).WithError(err).Warn("Skipping rule with invalid trigger conditions")
			continue
		}
		if ok {
			return rule
		}
	}
	return nil
}

func ruleMatches(rule *model.CorrectionRule, det *model.ErrorDetection) (bool, error) {
	if !rule.AllowsEnvironment(det.Environment) {
		return false, nil
	}
	if rule.TriggerErrorType != "" && rule.TriggerErrorType != det.ErrorType {
		return false, nil
	}
	if rule.TriggerErrorCode != "" && rule.TriggerErrorCode != det.ErrorCode {
		return false, nil
	}
	if rule.TriggerModule != "" && rule.TriggerModule != det.Module {
		return false, nil
	}
	if rule.MinSeverity != "" && !det.Severity.AtLeast(rule.MinSeverity) {
		return false, nil
	}

	conds, err := rule.Conditions()
	if err != nil {
		return false, err
	}
	for _, cond := range conds {
		value, found := fieldValue(det, cond.Field)
		if !found {
			return false, nil
		}
		if !evalCondition(cond, value) {
			return false, nil
		}
	}
	return true, nil
}

// fieldValue resolves a condition field against the detection's built-in
// fields first, then its context map.
func fieldValue(det *model.ErrorDetection, field string) (string, bool) {
	switch field {
	case "message":
		return det.Message, true
	case "module":
		return det.Module, true
	case "route":
		return det.Route, true
	case "component":
		return det.Component, true
	case "function":
		return det.Function, true
	case "error_code":
		return det.ErrorCode, true
	case "correlation_id":
		return det.CorrelationID, true
	case "severity":
		return string(det.Severity), true
	case "environment":
		return string(det.Environment), true
	case "source":
		return string(det.Source), true
	}

	if strings.TrimSpace(det.Context) == "" {
		return "", false
	}
	var contextMap map[string]interface{}
	if err := json.Unmarshal([]byte(det.Context), &contextMap); err != nil {
		return "", false
	}
	raw, ok := contextMap[field]
	if !ok {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

func evalCondition(cond model.TriggerCondition, value string) bool {
	switch cond.Op {
	case model.OpEquals:
		return value == cond.Value
	case model.OpContains:
		return strings.Contains(value, cond.Value)
	case model.OpGreaterThan:
		lhs, err1 := strconv.ParseFloat(value, 64)
		rhs, err2 := strconv.ParseFloat(cond.Value, 64)
		if err1 == nil && err2 == nil {
			return lhs > rhs
		}
		return value > cond.Value
	default:
		// unknown operators never match
		return false
	}
}
