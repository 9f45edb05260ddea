package engine

import (
	"log/slog"

	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/core/severity"
	"github.com/vietddude/guildwatch/internal/monitoring/metrics"
)

// Recorder collects check results and keeps the failure count that drives
// performance mode.
type Recorder struct {
	chain  string
	checks *[]domain.CheckResult
	nv     *domain.NodeValidation // nil outside node validations
	rules  severity.Rules
	failed int
	log    *slog.Logger
}

// NewRecorder creates a Recorder that keeps its own results, for checks that
// do not belong to a node.
func NewRecorder(chain string, rules severity.Rules, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{chain: chain, checks: new([]domain.CheckResult), rules: rules, log: log}
}

func newRecorder(nv *domain.NodeValidation, rules severity.Rules, log *slog.Logger) *Recorder {
	return &Recorder{chain: nv.Chain, checks: &nv.Checks, nv: nv, rules: rules, log: log}
}

// Active reports whether key should be evaluated. Unresolvable keys are
// logged and treated as disabled.
func (r *Recorder) Active(key string) bool {
	rule, err := r.rules.Rule(key)
	if err != nil {
		r.log.Error("Check configuration missing", "check", key, "error", err)
		return false
	}
	return rule.Enabled
}

// Record stores the outcome of c and returns its level.
func (r *Recorder) Record(c Check, passed bool, detail string) severity.Level {
	return r.store(c, severity.Calculate(passed, r.rules, c.Key), passed, detail)
}

// RecordLevel stores c with a level computed by the caller.
func (r *Recorder) RecordLevel(c Check, level severity.Level, detail string) severity.Level {
	return r.store(c, level, level.IsSuccess(), detail)
}

// Skip records c as an error because the check it depends on failed.
func (r *Recorder) Skip(c Check, dependency string) severity.Level {
	return r.store(c, severity.LevelError, false, "skipped: "+dependency+" failed")
}

func (r *Recorder) store(c Check, level severity.Level, passed bool, detail string) severity.Level {
	if !level.IsSuccess() {
		r.failed++
	}
	*r.checks = append(*r.checks, domain.CheckResult{
		Key:       c.Key,
		Label:     c.Label,
		Level:     level,
		Passed:    passed,
		Detail:    detail,
		OkText:    c.OkText,
		NotOkText: c.NotOkText,
	})
	metrics.CheckResults.WithLabelValues(r.chain, c.Key, level.String()).Inc()
	return level
}

// Level returns the level recorded for key.
func (r *Recorder) Level(key string) (severity.Level, bool) {
	for _, c := range *r.checks {
		if c.Key == key {
			return c.Level, true
		}
	}
	return severity.LevelNull, false
}

// Blocked reports whether dependency was recorded with a non-success level.
// An empty or unrecorded dependency never blocks.
func (r *Recorder) Blocked(dependency string) bool {
	if dependency == "" {
		return false
	}
	level, ok := r.Level(dependency)
	return ok && !level.IsSuccess()
}

// Failed returns the number of non-successful checks so far.
func (r *Recorder) Failed() int {
	return r.failed
}

// Results returns the recorded checks in recording order.
func (r *Recorder) Results() []domain.CheckResult {
	return *r.checks
}

// SetP2P attaches a block transmission outcome.
func (r *Recorder) SetP2P(out *domain.P2POutcome) {
	if r.nv != nil {
		r.nv.P2P = out
	}
}

// Named returns the recorded levels keyed by check.
func (r *Recorder) Named() []severity.Named {
	out := make([]severity.Named, 0, len(*r.checks))
	for _, c := range *r.checks {
		out = append(out, severity.Named{Key: c.Key, Level: c.Level})
	}
	return out
}
