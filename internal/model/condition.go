package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

type condKind int

const (
	condNever condKind = iota // malformed or empty text, never matches
	condRange
	condAbove
	condBelow
)

// Condition is a predicate over one scalar reading, parsed once from the
// textual rule source ("18-26", "> 55", "< 30"). Malformed text yields a
// condition that never matches; evaluation never fails.
type Condition struct {
	kind      condKind
	min, max  float64
	threshold float64
	raw       string
}

// ParseCondition parses a textual threshold expression. The range form is
// recognized first (a "-" anywhere in the text), then ">", then "<"; anything
// else degrades to a never-matching condition.
func ParseCondition(text string) Condition {
	c := Condition{raw: text}
	s := strings.TrimSpace(text)

	switch {
	case strings.Contains(s, "-"):
		parts := strings.SplitN(s, "-", 2)
		lo, errLo := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		hi, errHi := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLo != nil || errHi != nil {
			return c
		}
		c.kind = condRange
		c.min, c.max = lo, hi
	case strings.Contains(s, ">"):
		parts := strings.SplitN(s, ">", 2)
		th, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return c
		}
		c.kind = condAbove
		c.threshold = th
	case strings.Contains(s, "<"):
		parts := strings.SplitN(s, "<", 2)
		th, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return c
		}
		c.kind = condBelow
		c.threshold = th
	}
	return c
}

// Eval reports whether the condition holds for the given reading. An absent
// reading (sensor fault) never satisfies any condition.
func (c Condition) Eval(value *float64) bool {
	if value == nil {
		return false
	}
	v := *value
	switch c.kind {
	case condRange:
		return c.min <= v && v <= c.max
	case condAbove:
		return v > c.threshold
	case condBelow:
		return v < c.threshold
	default:
		return false
	}
}

// String returns the original rule text.
func (c Condition) String() string { return c.raw }

func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.raw)
}

func (c *Condition) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*c = ParseCondition(s)
	return nil
}
