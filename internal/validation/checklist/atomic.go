package checklist

import (
	"net/http"
	"time"

	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/infra/probe"
	"github.com/vietddude/guildwatch/internal/validation/engine"
)

// Atomic validates an atomic-assets-api endpoint.
func Atomic() *engine.Kind {
	return &engine.Kind{
		Name:             domain.NodeKindAtomic,
		RequiresLocation: true,
		ValidateURL:      true,
		Probes: []engine.Probe{
			{Name: "health", Method: http.MethodGet, Path: "/health"},
			{Name: "assets", Method: http.MethodGet, Path: "/atomicassets/v1/assets?limit=1"},
			{Name: "collections", Method: http.MethodGet, Path: "/atomicassets/v1/collections?collection_name={collection}&limit=1"},
		},
		Checks: []engine.Check{
			{Key: "atomic_health", Label: "Atomic services", OkText: "are healthy", NotOkText: "are unhealthy",
				Probe: "health", Pass: atomicHealth},
			{Key: "atomic_head_block_time", Label: "Atomic head block", OkText: "is current", NotOkText: "is behind",
				Probe: "health", DependsOn: "atomic_health", Pass: atomicHead},
			{Key: "atomic_assets", Label: "Atomic assets lookup", OkText: "works", NotOkText: "does not work",
				Probe: "assets", DependsOn: "atomic_health", Pass: atomicData},
			{Key: "atomic_collections", Label: "Atomic collections lookup", OkText: "works", NotOkText: "does not work",
				Probe: "collections", DependsOn: "atomic_health", Pass: atomicData},
		},
	}
}

func atomicHealth(env *engine.Env, res *probe.Result) (bool, string) {
	if ok, detail := okJSON(env, res); !ok {
		return false, detail
	}
	var failing []string
	for _, svc := range []string{"postgres", "redis", "chain"} {
		if status, _ := res.String("data." + svc + ".status"); status != "OK" {
			failing = append(failing, svc)
		}
	}
	return len(failing) == 0, joinMissing(failing)
}

func atomicHead(env *engine.Env, res *probe.Result) (bool, string) {
	ms, ok := res.Number("data.chain.head_time")
	if !ok {
		return false, "data.chain.head_time missing"
	}
	return withinHeadDelta(env, time.UnixMilli(int64(ms)))
}

func atomicData(env *engine.Env, res *probe.Result) (bool, string) {
	if !res.OK {
		return false, ""
	}
	if success, _ := res.Bool("success"); !success {
		return false, "success is false"
	}
	return hasArray("data", true)(env, res)
}
