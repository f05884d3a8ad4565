package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

func parseAssessment(raw string) (*Assessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse assessment response: %w", err)
	}

	return &Assessment{
		DomainFit:    coerceFloat(data["domain_fit"]),
		KeywordFit:   coerceFloat(data["keyword_fit"]),
		StrategicFit: coerceFloat(data["strategic_fit"]),
		Rationale:    coerceString(data["rationale"]),
	}, nil
}

// extractJSON strips code fences and any prose around the first JSON object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

// coerceFloat returns NaN for anything that is not a number or a numeric string.
func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
