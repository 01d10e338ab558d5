package analyze

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/funmusicgames1/stockcast-backend/models"
)

const requiredListLen = 10

var (
	// ErrParse marks output that is not a JSON record at all.
	ErrParse = errors.New("engine output is not valid JSON")
	// ErrSchema marks a JSON record that violates the prediction schema.
	ErrSchema = errors.New("engine output violates the prediction schema")
)

// stripFences removes an enclosing markdown code fence, with or without a
// language tag, if present. Engines are told not to emit one; they sometimes
// do anyway.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "json"))
	}
	return s
}

// ParsePredictions validates one engine's raw text output into a
// PredictionSet. It is binary accept/reject: malformed output is never
// repaired, because partially trusting it risks presenting fabricated
// rankings as valid. Parse errors and schema violations are distinguishable
// via errors.Is.
func ParsePredictions(raw string) (*models.PredictionSet, error) {
	cleaned := stripFences(raw)

	var set models.PredictionSet
	if err := json.Unmarshal([]byte(cleaned), &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if len(set.Winners) != requiredListLen {
		return nil, fmt.Errorf("%w: %d winners, want exactly %d", ErrSchema, len(set.Winners), requiredListLen)
	}
	if len(set.Losers) != requiredListLen {
		return nil, fmt.Errorf("%w: %d losers, want exactly %d", ErrSchema, len(set.Losers), requiredListLen)
	}

	for i, e := range set.Winners {
		if e.PredictedChangePct <= 0 {
			return nil, fmt.Errorf("%w: winner %d (%s) has non-positive predicted change %v",
				ErrSchema, i+1, e.Ticker, e.PredictedChangePct)
		}
	}
	for i, e := range set.Losers {
		if e.PredictedChangePct >= 0 {
			return nil, fmt.Errorf("%w: loser %d (%s) has non-negative predicted change %v",
				ErrSchema, i+1, e.Ticker, e.PredictedChangePct)
		}
	}

	return &set, nil
}
