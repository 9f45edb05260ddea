// Package checklist holds the check tables of the HTTP endpoint kinds.
package checklist

import (
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/guildwatch/internal/infra/probe"
	"github.com/vietddude/guildwatch/internal/validation/engine"
)

// Kinds returns every HTTP endpoint kind.
func Kinds() []*engine.Kind {
	return []*engine.Kind{API(), Wallet(), History(), Hyperion(), Atomic()}
}

// Keys returns every check key the HTTP kinds and the engine can record.
func Keys() []string {
	keys := []string{engine.KeyNodeLocation, engine.KeyEndpointURL, engine.KeyTLS}
	for _, k := range Kinds() {
		for _, c := range k.Checks {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

func okJSON(env *engine.Env, res *probe.Result) (bool, string) {
	if !res.OK {
		return false, ""
	}
	if !res.HasJSON() {
		return false, "response is not JSON"
	}
	return true, ""
}

// notExposed passes when a feature that must stay private is not served.
func notExposed(env *engine.Env, res *probe.Result) (bool, string) {
	if res.OK {
		return false, "endpoint is publicly reachable"
	}
	return true, ""
}

func hasString(path string) engine.Predicate {
	return func(env *engine.Env, res *probe.Result) (bool, string) {
		if !res.OK {
			return false, ""
		}
		s, ok := res.String(path)
		if !ok || s == "" {
			return false, path + " missing"
		}
		return true, ""
	}
}

func hasArray(path string, nonEmpty bool) engine.Predicate {
	return func(env *engine.Env, res *probe.Result) (bool, string) {
		if !res.OK {
			return false, ""
		}
		arr, ok := res.Array(path)
		if !ok {
			return false, path + " missing"
		}
		if nonEmpty && len(arr) == 0 {
			return false, path + " is empty"
		}
		return true, ""
	}
}

func isTrue(path string) engine.Predicate {
	return func(env *engine.Env, res *probe.Result) (bool, string) {
		b, ok := res.Bool(path)
		return ok && b, ""
	}
}

// parseChainTime parses block timestamps, which nodes emit without a zone.
func parseChainTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func withinHeadDelta(env *engine.Env, head time.Time) (bool, string) {
	lag := env.Now.Sub(head)
	if lag < 0 {
		lag = -lag
	}
	detail := fmt.Sprintf("head block %s from now", lag.Round(time.Millisecond))
	return lag <= env.Chain.API.HeadBlockDelta, detail
}

func headTimeAt(path string) engine.Predicate {
	return func(env *engine.Env, res *probe.Result) (bool, string) {
		s, ok := res.String(path)
		if !ok {
			return false, path + " missing"
		}
		head, err := parseChainTime(s)
		if err != nil {
			return false, err.Error()
		}
		return withinHeadDelta(env, head)
	}
}

func joinMissing(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return "failing: " + strings.Join(names, ", ")
}
