package severity

import (
	"encoding/json"
	"fmt"
	"testing"
)

type stubRules map[string]Rule

func (s stubRules) Rule(key string) (Rule, error) {
	r, ok := s[key]
	if !ok {
		return Rule{}, fmt.Errorf("no rule for %s", key)
	}
	return r, nil
}

func TestCalculate(t *testing.T) {
	rules := stubRules{
		"warn_check":  {Enabled: true, Severity: LevelWarn},
		"error_check": {Enabled: true, Severity: LevelError},
	}

	tests := []struct {
		name   string
		passed bool
		key    string
		want   Level
	}{
		{"passed", true, "warn_check", LevelSuccess},
		{"failed warn", false, "warn_check", LevelWarn},
		{"failed error", false, "error_check", LevelError},
		{"passed unknown key", true, "missing", LevelSuccess},
		{"failed unknown key", false, "missing", LevelNull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Calculate(tt.passed, rules, tt.key); got != tt.want {
				t.Errorf("Calculate(%v, %q) = %v, want %v", tt.passed, tt.key, got, tt.want)
			}
		})
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		levels []Level
		want   Level
	}{
		{nil, LevelSuccess},
		{[]Level{LevelSuccess, LevelSuccess}, LevelSuccess},
		{[]Level{LevelSuccess, LevelWarn}, LevelWarn},
		{[]Level{LevelWarn, LevelError, LevelSuccess}, LevelError},
		{[]Level{LevelNull, LevelSuccess}, LevelSuccess},
	}

	for _, tt := range tests {
		if got := Combine(tt.levels...); got != tt.want {
			t.Errorf("Combine(%v) = %v, want %v", tt.levels, got, tt.want)
		}
	}
}

func TestAllChecksOK(t *testing.T) {
	rules := stubRules{
		"a":        {Enabled: true, Severity: LevelError},
		"b":        {Enabled: true, Severity: LevelWarn},
		"disabled": {Enabled: false, Severity: LevelError},
	}

	tests := []struct {
		name   string
		levels []Named
		want   Level
	}{
		{
			name:   "all success",
			levels: []Named{{"a", LevelSuccess}, {"b", LevelSuccess}},
			want:   LevelSuccess,
		},
		{
			name:   "warn dominates success",
			levels: []Named{{"a", LevelSuccess}, {"b", LevelWarn}},
			want:   LevelWarn,
		},
		{
			name:   "error dominates warn",
			levels: []Named{{"a", LevelError}, {"b", LevelWarn}},
			want:   LevelError,
		},
		{
			name:   "enabled null counts as error",
			levels: []Named{{"a", LevelNull}, {"b", LevelSuccess}},
			want:   LevelError,
		},
		{
			name:   "disabled error ignored",
			levels: []Named{{"a", LevelSuccess}, {"disabled", LevelError}},
			want:   LevelSuccess,
		},
		{
			name:   "disabled null ignored",
			levels: []Named{{"disabled", LevelNull}},
			want:   LevelSuccess,
		},
		{
			name:   "unknown key excluded",
			levels: []Named{{"a", LevelSuccess}, {"unknown", LevelError}},
			want:   LevelSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AllChecksOK(tt.levels, rules, nil); got != tt.want {
				t.Errorf("AllChecksOK() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Upgrading any enabled check from success to warn never drops the aggregate
// below warn, and an error or null anywhere forces error.
func TestAllChecksOK_Monotone(t *testing.T) {
	rules := stubRules{
		"a": {Enabled: true, Severity: LevelError},
		"b": {Enabled: true, Severity: LevelError},
		"c": {Enabled: true, Severity: LevelError},
	}
	all := []Level{LevelSuccess, LevelWarn, LevelError, LevelNull}
	rank := map[Level]int{LevelSuccess: 0, LevelWarn: 1, LevelError: 2}

	for _, a := range all {
		for _, b := range all {
			for _, c := range all {
				levels := []Named{{"a", a}, {"b", b}, {"c", c}}
				got := AllChecksOK(levels, rules, nil)

				for i := range levels {
					if levels[i].Level != LevelSuccess {
						continue
					}
					upgraded := append([]Named(nil), levels...)
					upgraded[i].Level = LevelWarn
					after := AllChecksOK(upgraded, rules, nil)
					if rank[after] < rank[LevelWarn] || rank[after] < rank[got] {
						t.Fatalf("upgrade of %v lowered aggregate: %v -> %v", levels, got, after)
					}
				}

				hasFailure := a == LevelError || a == LevelNull ||
					b == LevelError || b == LevelNull ||
					c == LevelError || c == LevelNull
				if hasFailure && got != LevelError {
					t.Fatalf("AllChecksOK(%v) = %v, want error", levels, got)
				}
			}
		}
	}
}

func TestLevelJSON(t *testing.T) {
	data, err := json.Marshal([]Level{LevelSuccess, LevelNull, LevelWarn})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `["success",null,"warn"]` {
		t.Errorf("unexpected encoding: %s", data)
	}

	var decoded []Level
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded[1] != LevelNull || decoded[2] != LevelWarn {
		t.Errorf("unexpected decode: %v", decoded)
	}

	var bad Level
	if err := json.Unmarshal([]byte(`"fatal"`), &bad); err == nil {
		t.Error("expected error for unknown level")
	}
}
