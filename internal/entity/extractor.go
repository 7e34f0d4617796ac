// Package entity implements slot extraction and business-rule validation
// for the closed entity-type set: pattern-first extraction with an LLM
// fallback, followed by CEL-expression validation per entity type.
package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/convergeai/core/internal/catalog"
	"github.com/convergeai/core/internal/llm"
)

// Method reports which extraction path produced a value.
type Method string

const (
	MethodPattern Method = "pattern"
	MethodLLM     Method = "llm"
	MethodNone    Method = "none"
)

// patternConfidence is the fixed confidence assigned to a regex/token match,
// tuned for precision over recall per spec §4.3.
const patternConfidence = 0.85

// Extraction is the result of extracting one entity from a message.
type Extraction struct {
	Type            string
	RawValue        string
	NormalizedValue string
	Confidence      float32
	Method          Method
}

var isoDatePattern = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
var time24hPattern = regexp.MustCompile(`\b([01]?\d|2[0-3]):[0-5]\d\b`)
var time12hPattern = regexp.MustCompile(`(?i)\b(1[0-2]|0?[1-9])\s?(am|pm)\b`)
var vagueTimePattern = regexp.MustCompile(`(?i)\b(morning|afternoon|evening|night)\b`)

// Extractor implements pattern-first, LLM-fallback entity extraction.
type Extractor struct {
	catalog *catalog.Registry
	llmSvc  llm.Service
	clock   func() time.Time
}

// New constructs an Extractor. clock defaults to time.Now; override in
// tests for deterministic relative-date normalization.
func New(reg *catalog.Registry, llmSvc llm.Service) *Extractor {
	return &Extractor{catalog: reg, llmSvc: llmSvc, clock: time.Now}
}

// Extract returns the extracted value for targetType from message, or
// Method==MethodNone if neither the pattern nor the LLM step produced one.
// collected holds already-gathered entities for the session, so relative
// phrases like "for the same day" can resolve against them.
func (e *Extractor) Extract(ctx context.Context, message string, targetType string, collected map[string]string) (*Extraction, error) {
	et, ok := e.catalog.EntityType(targetType)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", targetType)
	}

	if ext, ok := e.matchPattern(message, et); ok {
		return ext, nil
	}

	return e.extractWithLLM(ctx, message, et, collected)
}

func (e *Extractor) matchPattern(message string, et *catalog.EntityType) (*Extraction, bool) {
	for _, re := range et.CompiledPatterns() {
		if loc := re.FindString(message); loc != "" {
			normalized, ok := e.normalize(et.Normalization, loc)
			if !ok {
				continue
			}
			return &Extraction{
				Type:            et.Name,
				RawValue:        loc,
				NormalizedValue: normalized,
				Confidence:      patternConfidence,
				Method:          MethodPattern,
			}, true
		}
	}
	return nil, false
}

// normalize applies a deterministic per-type rule. Returns ok=false when the
// raw value can't be normalized deterministically (e.g. a vague time of
// day) rather than guessing; a pattern hit that fails here moves on to the
// next pattern and then to the LLM, and an LLM value that fails here comes
// back without a normalized value.
func (e *Extractor) normalize(rule, raw string) (string, bool) {
	switch rule {
	case "lowercase_trim":
		return strings.ToLower(strings.TrimSpace(raw)), true
	case "uppercase_trim":
		return strings.ToUpper(strings.TrimSpace(raw)), true
	case "trim_whitespace":
		return strings.TrimSpace(raw), true
	case "relative_date_to_iso":
		return e.normalizeDate(raw)
	case "time_to_24h":
		return e.normalizeTime(raw)
	case "location_to_pincode_or_city":
		return strings.TrimSpace(raw), true
	case "parse_int":
		return strings.TrimSpace(raw), true
	default:
		return strings.TrimSpace(raw), true
	}
}

func (e *Extractor) normalizeDate(raw string) (string, bool) {
	if isoDatePattern.MatchString(raw) {
		return raw, true
	}
	now := e.clock()
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case lower == "today":
		return now.Format("2006-01-02"), true
	case lower == "tomorrow":
		return now.AddDate(0, 0, 1).Format("2006-01-02"), true
	case lower == "day after tomorrow":
		return now.AddDate(0, 0, 2).Format("2006-01-02"), true
	case strings.HasPrefix(lower, "next "):
		return nextWeekday(now, strings.TrimPrefix(lower, "next "))
	default:
		return "", false
	}
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

func nextWeekday(from time.Time, name string) (string, bool) {
	target, ok := weekdayNames[name]
	if !ok {
		return "", false
	}
	days := (int(target) - int(from.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return from.AddDate(0, 0, days).Format("2006-01-02"), true
}

// normalizeTime rejects vague times of day ("afternoon") per spec §4.3,
// which requires the caller to ask for a specific time instead of guessing.
func (e *Extractor) normalizeTime(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if vagueTimePattern.MatchString(trimmed) {
		return "", false
	}
	if time24hPattern.MatchString(trimmed) {
		return trimmed, true
	}
	if m := time12hPattern.FindStringSubmatch(trimmed); m != nil {
		hour := 0
		fmt.Sscanf(m[1], "%d", &hour)
		isPM := strings.EqualFold(m[2], "pm")
		if isPM && hour != 12 {
			hour += 12
		}
		if !isPM && hour == 12 {
			hour = 0
		}
		return fmt.Sprintf("%02d:00", hour), true
	}
	return "", false
}

type llmExtractionOutput struct {
	Value      string  `json:"value"`
	Confidence float32 `json:"confidence"`
	Found      bool    `json:"found"`
}

func (e *Extractor) extractWithLLM(ctx context.Context, message string, et *catalog.EntityType, collected map[string]string) (*Extraction, error) {
	collectedJSON, _ := json.Marshal(collected)

	system := fmt.Sprintf(
		"Extract the entity %q (%s) from the user's message. Already-collected entities for this session: %s. "+
			"Respond with strict JSON only: {\"value\":string,\"confidence\":number 0-1,\"found\":bool}. "+
			"Set found=false if the message does not contain this entity.",
		et.Name, et.Description, string(collectedJSON),
	)

	raw, _, err := e.llmSvc.Chat(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: message},
	}, llm.TemperatureExtraction)
	if err != nil {
		return nil, fmt.Errorf("llm entity extraction: %w", err)
	}

	var out llmExtractionOutput
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse llm extraction output: %w", err)
	}
	if !out.Found || out.Value == "" {
		return &Extraction{Type: et.Name, Method: MethodNone}, nil
	}

	normalized, ok := e.normalize(et.Normalization, out.Value)
	if !ok {
		return &Extraction{Type: et.Name, RawValue: out.Value, Method: MethodNone}, nil
	}

	return &Extraction{
		Type:            et.Name,
		RawValue:        out.Value,
		NormalizedValue: normalized,
		Confidence:      out.Confidence,
		Method:          MethodLLM,
	}, nil
}

func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
