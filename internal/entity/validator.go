package entity

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/convergeai/core/internal/catalog"
	"github.com/convergeai/core/internal/config"
)

// ValidationResult is the outcome of validating a normalized entity value.
type ValidationResult struct {
	IsValid         bool
	NormalizedValue string
	ErrorMessage    string
	Suggestions     []string
}

// BookingLookup checks whether bookingID exists and belongs to userID. It is
// the one permitted side effect in an otherwise pure validation pass.
type BookingLookup func(ctx context.Context, bookingID, userID string) (bool, error)

// ruleExpressions maps a catalog validation_rule id to the CEL predicate
// text that decides it. Each expression evaluates against a small,
// rule-specific variable set built by Validate before compiling+running it.
var ruleExpressions = map[string]string{
	"date_within_90_days":     `days_from_today >= 0 && days_from_today <= 90`,
	"within_service_hours":    `minutes_of_day >= 480 && minutes_of_day <= 1200`,
	"known_service_area":      `is_known_area`,
	"booking_exists_for_user": `booking_exists`,
	"known_service_catalog":   `value in known_values`,
	"known_issue_type":        `value in known_values`,
	"known_payment_method":    `value in known_values`,
	"non_empty":               `value != ""`,
	"positive_integer":        `value_int > 0`,
}

// Validator applies business rules to normalized entity values using CEL
// predicates, one compiled program per rule, cached after first use.
type Validator struct {
	catalog       *catalog.Registry
	cfg           *config.Store
	bookingExists BookingLookup
	clock         func() time.Time

	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewValidator constructs a Validator. bookingExists may be nil if the
// booking_id entity type is never validated by the caller.
func NewValidator(reg *catalog.Registry, cfg *config.Store, bookingExists BookingLookup) *Validator {
	return &Validator{
		catalog:       reg,
		cfg:           cfg,
		bookingExists: bookingExists,
		clock:         time.Now,
		programs:      make(map[string]cel.Program),
	}
}

// Validate applies et's business rule to normalizedValue. userID is used
// only by the booking_exists_for_user rule.
func (v *Validator) Validate(ctx context.Context, entityType, normalizedValue, userID string) (*ValidationResult, error) {
	et, ok := v.catalog.EntityType(entityType)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}

	expr, ok := ruleExpressions[et.ValidationRule]
	if !ok {
		return nil, fmt.Errorf("no validation rule registered for %q", et.ValidationRule)
	}

	vars, err := v.buildVars(ctx, et, normalizedValue, userID)
	if err != nil {
		return nil, err
	}

	prg, err := v.program(expr, vars)
	if err != nil {
		return nil, fmt.Errorf("compile validation rule %q: %w", et.ValidationRule, err)
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("evaluate validation rule %q: %w", et.ValidationRule, err)
	}

	valid, ok := out.Value().(bool)
	if !ok {
		return nil, fmt.Errorf("validation rule %q did not return a boolean", et.ValidationRule)
	}

	if valid {
		return &ValidationResult{IsValid: true, NormalizedValue: normalizedValue}, nil
	}

	return &ValidationResult{
		IsValid:      false,
		ErrorMessage: emphaticError(et),
		Suggestions:  suggestions(et),
	}, nil
}

// buildVars computes the small variable set each rule's expression needs.
// Lookups against domain stores (service areas, booking ownership) happen
// here — the one permitted side effect in an otherwise pure validation.
func (v *Validator) buildVars(ctx context.Context, et *catalog.EntityType, value, userID string) (map[string]any, error) {
	vars := map[string]any{
		"value":           value,
		"known_values":    lowerAll(et.SampleValues),
		"value_int":       int64(0),
		"days_from_today": int64(0),
		"minutes_of_day":  int64(0),
		"is_known_area":   false,
		"booking_exists":  false,
	}

	switch et.ValidationRule {
	case "date_within_90_days":
		parsed, err := time.Parse("2006-01-02", value)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", value, err)
		}
		today := v.clock().Truncate(24 * time.Hour)
		vars["days_from_today"] = int64(parsed.Sub(today).Hours() / 24)

	case "within_service_hours":
		parts := strings.Split(value, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed time %q", value)
		}
		hh, err1 := strconv.Atoi(parts[0])
		mm, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("malformed time %q", value)
		}
		vars["minutes_of_day"] = int64(hh*60 + mm)

	case "known_service_area":
		known := false
		for _, area := range v.cfg.ServiceAreas() {
			if strings.EqualFold(area.Pincode, value) || strings.EqualFold(area.City, value) {
				known = true
				break
			}
		}
		vars["is_known_area"] = known

	case "booking_exists_for_user":
		if v.bookingExists == nil {
			return nil, fmt.Errorf("booking lookup not configured")
		}
		exists, err := v.bookingExists(ctx, value, userID)
		if err != nil {
			return nil, fmt.Errorf("booking lookup: %w", err)
		}
		vars["booking_exists"] = exists

	case "positive_integer":
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse integer %q: %w", value, err)
		}
		vars["value_int"] = n

	case "known_service_catalog", "known_issue_type", "known_payment_method":
		vars["value"] = strings.ToLower(value)
	}

	return vars, nil
}

// program returns a compiled CEL program for expr, declaring exactly the
// variables present in vars, compiling once per distinct expression.
func (v *Validator) program(expr string, vars map[string]any) (cel.Program, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if prg, ok := v.programs[expr]; ok {
		return prg, nil
	}

	opts := make([]cel.EnvOption, 0, len(vars))
	for name, val := range vars {
		opts = append(opts, cel.Variable(name, celTypeOf(val)))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create cel environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression %q: %w", expr, issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program for %q: %w", expr, err)
	}

	v.programs[expr] = prg
	return prg, nil
}

func celTypeOf(val any) *cel.Type {
	switch val.(type) {
	case string:
		return cel.StringType
	case bool:
		return cel.BoolType
	case int64:
		return cel.IntType
	case []string:
		return cel.ListType(cel.StringType)
	default:
		return cel.DynType
	}
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

// emphaticError phrases a validation failure empathetically per spec §4.4.
func emphaticError(et *catalog.EntityType) string {
	return fmt.Sprintf("That %s doesn't quite work — could you try one of the options below?", strings.ReplaceAll(et.Name, "_", " "))
}

// suggestions returns up to three suggested valid values.
func suggestions(et *catalog.EntityType) []string {
	if len(et.SampleValues) <= 3 {
		return et.SampleValues
	}
	return et.SampleValues[:3]
}
