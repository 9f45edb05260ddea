// Package severity turns boolean check outcomes into severity levels and rolls
// many levels up into one verdict.
package severity

import (
	"encoding/json"
	"fmt"
)

// Level is the outcome of a single check or an aggregate of checks.
type Level string

const (
	LevelNull    Level = "" // not evaluated
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// IsSuccess reports whether the level is LevelSuccess.
func (l Level) IsSuccess() bool {
	return l == LevelSuccess
}

// String returns the level name, "null" for LevelNull.
func (l Level) String() string {
	if l == LevelNull {
		return "null"
	}
	return string(l)
}

// MarshalJSON encodes LevelNull as JSON null.
func (l Level) MarshalJSON() ([]byte, error) {
	if l == LevelNull {
		return []byte("null"), nil
	}
	return json.Marshal(string(l))
}

// UnmarshalJSON accepts null and the three level names.
func (l *Level) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = LevelNull
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Parse converts a level name into a Level.
func Parse(s string) (Level, error) {
	switch s {
	case "", "null":
		return LevelNull, nil
	case string(LevelSuccess):
		return LevelSuccess, nil
	case string(LevelWarn):
		return LevelWarn, nil
	case string(LevelError):
		return LevelError, nil
	default:
		return LevelNull, fmt.Errorf("unknown validation level %q", s)
	}
}

// Rule is the configured behaviour of one named check.
type Rule struct {
	Enabled  bool
	Severity Level // LevelWarn or LevelError
}

// Rules resolves the rule for a check key.
type Rules interface {
	Rule(key string) (Rule, error)
}
