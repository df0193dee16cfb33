package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"perfhud/internal/match"
)

type conditionOperator string

const (
	operatorEQ conditionOperator = "="
	operatorNE conditionOperator = "!="
	operatorGT conditionOperator = ">"
	operatorLT conditionOperator = "<"
)

// DropCondition is one compiled drop_window expression.
// Params: raw condition and parsed parts.
// Returns: evaluatable drop condition.
type DropCondition struct {
	Raw   string
	Field string
	Op    conditionOperator
	Value string

	valueNumber float64
	valueIsNum  bool

	wildcard    match.Pattern
	hasWildcard bool
}

// WindowEvalContext is the input for drop condition evaluation.
// Params: host label and aggregated window stats per metric.
// Returns: condition evaluation context.
type WindowEvalContext struct {
	Host string
	Data map[string]map[string]float64
}

// parseDropCondition parses one drop_window expression.
// Params: expression in format <field><op><value>.
// Returns: compiled drop condition or parse error.
func parseDropCondition(expression string) (DropCondition, error) {
	raw := strings.TrimSpace(expression)
	if raw == "" {
		return DropCondition{}, fmt.Errorf("empty expression")
	}

	field, op, value, ok := splitCondition(raw)
	if !ok {
		return DropCondition{}, fmt.Errorf("invalid expression %q", raw)
	}
	if field == "" {
		return DropCondition{}, fmt.Errorf("field is empty in expression %q", raw)
	}
	if value == "" {
		return DropCondition{}, fmt.Errorf("value is empty in expression %q", raw)
	}

	condition := DropCondition{
		Raw:   raw,
		Field: field,
		Op:    op,
		Value: value,
	}

	if parsed, err := strconv.ParseFloat(value, 64); err == nil {
		condition.valueNumber = parsed
		condition.valueIsNum = true
	}

	if strings.Contains(value, "*") {
		if compiled, ok := match.Compile(value); ok {
			condition.wildcard = compiled
			condition.hasWildcard = true
		}
	}

	return condition, nil
}

// compileDropConditions parses every expression.
// Params: expressions raw drop_window list.
// Returns: compiled conditions or the first parse error.
func compileDropConditions(expressions []string) ([]DropCondition, error) {
	out := make([]DropCondition, 0, len(expressions))
	for idx, expression := range expressions {
		condition, err := parseDropCondition(expression)
		if err != nil {
			return nil, fmt.Errorf("drop_window[%d]: %w", idx, err)
		}
		out = append(out, condition)
	}
	return out, nil
}

// shouldDropWindow evaluates OR logic over all configured drop conditions.
// Params: conditions and window context.
// Returns: true when any condition matches.
func shouldDropWindow(conditions []DropCondition, ctx WindowEvalContext) bool {
	for _, condition := range conditions {
		if evaluateDropCondition(condition, ctx) {
			return true
		}
	}
	return false
}

// evaluateDropCondition evaluates one drop condition.
// Params: condition and window context.
// Returns: true when condition matches.
func evaluateDropCondition(condition DropCondition, ctx WindowEvalContext) bool {
	switch condition.Field {
	case "host":
		return compareString(condition, ctx.Host)
	case "metric":
		return compareMetricNames(condition, ctx.Data)
	default:
		stats, ok := ctx.Data[condition.Field]
		if !ok {
			return false
		}
		last, ok := stats["last"]
		if !ok {
			return false
		}
		return compareNumber(condition, last)
	}
}

// compareMetricNames evaluates metric-name conditions against window metric names.
// Params: condition compiled drop condition; data window stats.
// Returns: true when condition matches.
func compareMetricNames(condition DropCondition, data map[string]map[string]float64) bool {
	hasMatch := false
	for name := range data {
		if matchConditionString(condition, name) {
			hasMatch = true
			break
		}
	}

	switch condition.Op {
	case operatorEQ:
		return hasMatch
	case operatorNE:
		return !hasMatch
	default:
		return false
	}
}

// compareNumber compares one aggregated value according to operator.
// Params: condition compiled drop condition; actual window value.
// Returns: true when comparison succeeds.
func compareNumber(condition DropCondition, actual float64) bool {
	if !condition.valueIsNum {
		return false
	}
	switch condition.Op {
	case operatorGT:
		return actual > condition.valueNumber
	case operatorLT:
		return actual < condition.valueNumber
	case operatorEQ:
		return actual == condition.valueNumber
	case operatorNE:
		return actual != condition.valueNumber
	default:
		return false
	}
}

// compareString compares strings with optional wildcard support.
// Params: condition compiled drop condition; actual string value.
// Returns: true when comparison succeeds.
func compareString(condition DropCondition, actual string) bool {
	matched := matchConditionString(condition, actual)

	switch condition.Op {
	case operatorEQ:
		return matched
	case operatorNE:
		return !matched
	default:
		return false
	}
}

// matchConditionString checks one string value against condition literal/wildcard.
// Params: condition compiled drop condition; actual value.
// Returns: true when value matches condition.
func matchConditionString(condition DropCondition, actual string) bool {
	if condition.hasWildcard {
		return condition.wildcard.Match(actual)
	}
	return actual == condition.Value
}

// splitCondition splits raw expression into field/operator/value.
// Params: raw expression text.
// Returns: field, operator, value, and parse-ok flag.
func splitCondition(raw string) (string, conditionOperator, string, bool) {
	operators := []conditionOperator{operatorNE, operatorGT, operatorLT, operatorEQ}
	for _, op := range operators {
		parts := strings.SplitN(raw, string(op), 2)
		if len(parts) != 2 {
			continue
		}
		return strings.TrimSpace(parts[0]), op, strings.TrimSpace(parts[1]), true
	}
	return "", "", "", false
}
