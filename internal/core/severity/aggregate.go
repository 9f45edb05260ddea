package severity

import "log/slog"

// Named pairs a check key with its level.
type Named struct {
	Key   string
	Level Level
}

// Calculate returns LevelSuccess when passed, otherwise the severity configured
// for key. An unresolvable key yields LevelNull.
func Calculate(passed bool, rules Rules, key string) Level {
	if passed {
		return LevelSuccess
	}
	rule, err := rules.Rule(key)
	if err != nil {
		return LevelNull
	}
	if rule.Severity == LevelWarn {
		return LevelWarn
	}
	return LevelError
}

// Combine rolls levels up: any error wins, then any warn, else success.
func Combine(levels ...Level) Level {
	result := LevelSuccess
	for _, l := range levels {
		switch l {
		case LevelError:
			return LevelError
		case LevelWarn:
			result = LevelWarn
		}
	}
	return result
}

// AllChecksOK aggregates named levels like Combine, ignoring disabled checks.
// An enabled check that was never evaluated counts as an error. Checks whose
// rule cannot be resolved are logged and left out of the aggregate.
func AllChecksOK(levels []Named, rules Rules, log *slog.Logger) Level {
	if log == nil {
		log = slog.Default()
	}

	result := LevelSuccess
	for _, n := range levels {
		rule, err := rules.Rule(n.Key)
		if err != nil {
			log.Error("Check excluded from aggregate", "check", n.Key, "error", err)
			continue
		}
		if !rule.Enabled {
			continue
		}
		switch n.Level {
		case LevelError, LevelNull:
			result = LevelError
		case LevelWarn:
			if result != LevelError {
				result = LevelWarn
			}
		}
	}
	return result
}
