package checklist

import (
	"fmt"
	"net/http"

	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/infra/probe"
	"github.com/vietddude/guildwatch/internal/validation/engine"
)

// History validates a history-v1 endpoint.
func History() *engine.Kind {
	return &engine.Kind{
		Name:             domain.NodeKindHistory,
		RequiresLocation: true,
		ValidateURL:      true,
		Probes: []engine.Probe{
			{Name: "transaction", Method: http.MethodPost, Path: "/v1/history/get_transaction",
				Body: func(c *config.ChainConfig) any { return map[string]any{"id": c.API.TestTransaction} }},
			{Name: "actions", Method: http.MethodPost, Path: "/v1/history/get_actions",
				Body: func(c *config.ChainConfig) any {
					return map[string]any{"account_name": c.API.TestAccount, "pos": -1, "offset": -1}
				}},
			{Name: "key_accounts", Method: http.MethodPost, Path: "/v1/history/get_key_accounts",
				Body: func(c *config.ChainConfig) any { return map[string]any{"public_key": c.API.PublicKey} }},
		},
		Checks: []engine.Check{
			{Key: "history_transaction", Label: "History transaction lookup", OkText: "works", NotOkText: "does not work",
				Probe: "transaction", Pass: hasString("id")},
			{Key: "history_actions", Label: "History actions lookup", OkText: "works", NotOkText: "does not work",
				Probe: "actions", Pass: hasArray("actions", true)},
			{Key: "history_key_accounts", Label: "History key accounts lookup", OkText: "works", NotOkText: "does not work",
				Probe: "key_accounts", Pass: hasArray("account_names", false)},
		},
	}
}

var hyperionFeatures = []string{
	"streaming.enable",
	"streaming.traces",
	"streaming.deltas",
	"tables.proposals",
	"tables.accounts",
	"tables.voters",
	"index_deltas",
	"index_transfer_memo",
	"index_all_deltas",
}

// Hyperion validates a hyperion-v2 endpoint.
func Hyperion() *engine.Kind {
	features := make([]engine.Sub, 0, len(hyperionFeatures))
	for _, f := range hyperionFeatures {
		features = append(features, engine.Sub{Name: f, Pass: isTrue("features." + f)})
	}

	return &engine.Kind{
		Name:             domain.NodeKindHyperion,
		RequiresLocation: true,
		ValidateURL:      true,
		Probes: []engine.Probe{
			{Name: "health", Method: http.MethodGet, Path: "/v2/health"},
			{Name: "transaction", Method: http.MethodGet, Path: "/v2/history/get_transaction?id={transaction}"},
			{Name: "actions", Method: http.MethodGet, Path: "/v2/history/get_actions?account={account}&limit=1"},
			{Name: "key_accounts", Method: http.MethodGet, Path: "/v2/state/get_key_accounts?public_key={public_key}"},
		},
		Checks: []engine.Check{
			{Key: "hyperion_health", Label: "Hyperion services", OkText: "are healthy", NotOkText: "are unhealthy",
				Probe: "health", Pass: hyperionHealth},
			{Key: "hyperion_features", Label: "Hyperion features", OkText: "are enabled", NotOkText: "are incomplete",
				Probe: "health", DependsOn: "hyperion_health", Group: features},
			{Key: "hyperion_missing_blocks", Label: "Hyperion index", OkText: "is complete", NotOkText: "is missing blocks",
				Probe: "health", DependsOn: "hyperion_health", Pass: missingBlocks},
			{Key: "hyperion_head_block_time", Label: "Hyperion head block", OkText: "is current", NotOkText: "is behind",
				Probe: "health", DependsOn: "hyperion_health", Pass: hyperionHead},
			{Key: "hyperion_transaction", Label: "Hyperion transaction lookup", OkText: "works", NotOkText: "does not work",
				Probe: "transaction", Pass: hyperionTransaction},
			{Key: "hyperion_actions", Label: "Hyperion actions lookup", OkText: "works", NotOkText: "does not work",
				Probe: "actions", Pass: hasArray("actions", true)},
			{Key: "hyperion_key_accounts", Label: "Hyperion key accounts lookup", OkText: "works", NotOkText: "does not work",
				Probe: "key_accounts", Pass: hasArray("account_names", false)},
		},
	}
}

// service returns the health entry of a Hyperion service.
func service(res *probe.Result, name string) (map[string]any, bool) {
	entries, _ := res.Array("health")
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if ok && m["service"] == name {
			return m, true
		}
	}
	return nil, false
}

func hyperionHealth(env *engine.Env, res *probe.Result) (bool, string) {
	if ok, detail := okJSON(env, res); !ok {
		return false, detail
	}
	entries, ok := res.Array("health")
	if !ok || len(entries) == 0 {
		return false, "health missing"
	}
	var failing []string
	for _, e := range entries {
		m, _ := e.(map[string]any)
		if m["status"] != "OK" {
			failing = append(failing, fmt.Sprint(m["service"]))
		}
	}
	return len(failing) == 0, joinMissing(failing)
}

func serviceNumber(data map[string]any, key string) (float64, bool) {
	n, ok := data[key].(float64)
	return n, ok
}

func missingBlocks(env *engine.Env, res *probe.Result) (bool, string) {
	es, ok := service(res, "Elasticsearch")
	if !ok {
		return false, "Elasticsearch service missing"
	}
	data, _ := es["service_data"].(map[string]any)
	last, ok1 := serviceNumber(data, "last_indexed_block")
	total, ok2 := serviceNumber(data, "total_indexed_blocks")
	if !ok1 || !ok2 {
		return false, "index counters missing"
	}
	missing := int(last - total)
	return missing <= env.Chain.Indexer.MissingBlocksTolerance, fmt.Sprintf("%d blocks missing", missing)
}

func hyperionHead(env *engine.Env, res *probe.Result) (bool, string) {
	rpc, ok := service(res, "NodeosRPC")
	if !ok {
		return false, "NodeosRPC service missing"
	}
	data, _ := rpc["service_data"].(map[string]any)
	s, _ := data["head_block_time"].(string)
	head, err := parseChainTime(s)
	if err != nil {
		return false, err.Error()
	}
	return withinHeadDelta(env, head)
}

func hyperionTransaction(env *engine.Env, res *probe.Result) (bool, string) {
	if !res.OK {
		return false, ""
	}
	if executed, ok := res.Bool("executed"); ok && executed {
		return true, ""
	}
	actions, _ := res.Array("actions")
	return len(actions) > 0, ""
}
