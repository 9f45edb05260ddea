package checklist

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/infra/probe"
	"github.com/vietddude/guildwatch/internal/validation/engine"
)

// API validates a chain-api endpoint.
func API() *engine.Kind {
	return &engine.Kind{
		Name:             domain.NodeKindAPI,
		RequiresLocation: true,
		ValidateURL:      true,
		Probes: []engine.Probe{
			{Name: "info", Method: http.MethodGet, Path: "/v1/chain/get_info"},
			{Name: "block_one", Method: http.MethodPost, Path: "/v1/chain/get_block",
				Body: func(*config.ChainConfig) any { return map[string]any{"block_num_or_id": 1} }},
			{Name: "bad_block", Method: http.MethodPost, Path: "/v1/chain/get_block", NoRetry: true,
				Body: func(*config.ChainConfig) any { return map[string]any{"block_num_or_id": "guildwatch"} }},
			{Name: "currency_stats", Method: http.MethodPost, Path: "/v1/chain/get_currency_stats",
				Body: func(c *config.ChainConfig) any {
					return map[string]any{"code": "eosio.token", "symbol": c.API.CoreSymbol}
				}},
			{Name: "producer_api", Method: http.MethodPost, Path: "/v1/producer/paused", NoRetry: true},
			{Name: "db_size_api", Method: http.MethodGet, Path: "/v1/db_size/get", NoRetry: true},
			{Name: "net_api", Method: http.MethodGet, Path: "/v1/net/connections", NoRetry: true},
		},
		Checks: []engine.Check{
			{Key: "api_endpoint", Label: "API endpoint", OkText: "is reachable", NotOkText: "is not reachable",
				Probe: "info", Pass: okJSON},
			{Key: "api_server_version", Label: "API server version", OkText: "is up to date", NotOkText: "is outdated",
				Probe: "info", DependsOn: "api_endpoint", Pass: serverVersion},
			{Key: "api_correct_chain", Label: "API chain id", OkText: "matches", NotOkText: "does not match",
				Probe: "info", DependsOn: "api_endpoint", Pass: correctChain},
			{Key: "api_head_block_time", Label: "API head block", OkText: "is current", NotOkText: "is behind",
				Probe: "info", DependsOn: "api_endpoint", Pass: headTimeAt("head_block_time")},
			{Key: "api_access_control_header", Label: "API CORS header", OkText: "is set", NotOkText: "is missing",
				Probe: "info", DependsOn: "api_endpoint", Pass: corsHeader},
			{Key: "api_http2", Label: "API HTTP/2", OkText: "is supported", NotOkText: "is not supported",
				Probe: "info", DependsOn: "api_endpoint", SecureOnly: true, Pass: http2},
			{Key: "api_block_one", Label: "API block one", OkText: "is available", NotOkText: "is not available",
				Probe: "block_one", Pass: blockOne},
			{Key: "api_verbose_error", Label: "API verbose errors", OkText: "are enabled", NotOkText: "are disabled",
				Probe: "bad_block", Pass: verboseError},
			{Key: "api_basic_symbol", Label: "API core symbol", OkText: "is available", NotOkText: "is not available",
				Probe: "currency_stats", Pass: coreSymbol},
			{Key: "api_producer_api", Label: "API producer plugin", OkText: "is private", NotOkText: "is exposed",
				Probe: "producer_api", DependsOn: "api_endpoint", Pass: notExposed},
			{Key: "api_db_size_api", Label: "API db_size plugin", OkText: "is private", NotOkText: "is exposed",
				Probe: "db_size_api", DependsOn: "api_endpoint", Pass: notExposed},
			{Key: "api_net_api", Label: "API net plugin", OkText: "is private", NotOkText: "is exposed",
				Probe: "net_api", DependsOn: "api_endpoint", Pass: notExposed},
		},
	}
}

// Wallet validates an account-query endpoint.
func Wallet() *engine.Kind {
	return &engine.Kind{
		Name:             domain.NodeKindWallet,
		RequiresLocation: true,
		ValidateURL:      true,
		Probes: []engine.Probe{
			{Name: "info", Method: http.MethodGet, Path: "/v1/chain/get_info"},
			{Name: "by_account", Method: http.MethodPost, Path: "/v1/chain/get_accounts_by_authorizers",
				Body: func(c *config.ChainConfig) any { return map[string]any{"accounts": []string{c.API.TestAccount}} }},
			{Name: "by_key", Method: http.MethodPost, Path: "/v1/chain/get_accounts_by_authorizers",
				Body: func(c *config.ChainConfig) any { return map[string]any{"keys": []string{c.API.PublicKey}} }},
		},
		Checks: []engine.Check{
			{Key: "wallet_endpoint", Label: "Wallet endpoint", OkText: "is reachable", NotOkText: "is not reachable",
				Probe: "info", Pass: okJSON},
			{Key: "wallet_accounts", Label: "Wallet account query", OkText: "works", NotOkText: "does not work",
				Probe: "by_account", DependsOn: "wallet_endpoint", Pass: hasArray("accounts", true)},
			{Key: "wallet_keys", Label: "Wallet key query", OkText: "works", NotOkText: "does not work",
				Probe: "by_key", DependsOn: "wallet_endpoint", Pass: hasArray("accounts", true)},
		},
	}
}

func serverVersion(env *engine.Env, res *probe.Result) (bool, string) {
	version, ok := res.String("server_version_string")
	if !ok || version == "" {
		return false, "server_version_string missing"
	}
	allowed := env.Chain.API.ServerVersions
	if len(allowed) == 0 || slices.Contains(allowed, version) {
		return true, version
	}
	return false, version
}

func correctChain(env *engine.Env, res *probe.Result) (bool, string) {
	id, _ := res.String("chain_id")
	if strings.EqualFold(id, env.Chain.ID) {
		return true, ""
	}
	return false, fmt.Sprintf("chain_id %q", id)
}

func corsHeader(env *engine.Env, res *probe.Result) (bool, string) {
	return res.HeaderEquals("Access-Control-Allow-Origin", "*"), ""
}

func http2(env *engine.Env, res *probe.Result) (bool, string) {
	return strings.HasPrefix(res.Proto, "HTTP/2"), res.Proto
}

func blockOne(env *engine.Env, res *probe.Result) (bool, string) {
	if !res.OK {
		return false, ""
	}
	n, ok := res.Number("block_num")
	return ok && n == 1, ""
}

func verboseError(env *engine.Env, res *probe.Result) (bool, string) {
	details, ok := res.Array("error.details")
	return ok && len(details) > 0, ""
}

func coreSymbol(env *engine.Env, res *probe.Result) (bool, string) {
	if !res.OK {
		return false, ""
	}
	if _, ok := res.Lookup(env.Chain.API.CoreSymbol); !ok {
		return false, env.Chain.API.CoreSymbol + " not found"
	}
	return true, ""
}
