package guild

import (
	"log/slog"

	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/core/severity"
	"github.com/vietddude/guildwatch/internal/validation/checklist"
	"github.com/vietddude/guildwatch/internal/validation/engine"
	"github.com/vietddude/guildwatch/internal/validation/seed"
)

var (
	chainsJSONCheck = engine.Check{Key: "chains_json", Label: "chains.json", OkText: "lists this chain", NotOkText: "is missing or does not list this chain"}
	chainsCORSCheck = engine.Check{Key: "chains_json_access_control_header", Label: "chains.json CORS header", OkText: "is set", NotOkText: "is missing"}
	bpJSONCheck     = engine.Check{Key: "bp_json", Label: "bp.json", OkText: "is valid", NotOkText: "is missing or invalid"}
	bpCORSCheck     = engine.Check{Key: "bp_json_access_control_header", Label: "bp.json CORS header", OkText: "is set", NotOkText: "is missing"}

	accountCheck     = engine.Check{Key: "producer_account_name", Label: "Producer account name", OkText: "matches", NotOkText: "does not match"}
	websiteCheck     = engine.Check{Key: "org_website", Label: "Website", OkText: "is reachable", NotOkText: "is not reachable"}
	emailCheck       = engine.Check{Key: "org_email", Label: "Email", OkText: "is valid", NotOkText: "is invalid"}
	conductCheck     = engine.Check{Key: "org_code_of_conduct", Label: "Code of conduct", OkText: "is published", NotOkText: "is missing"}
	ownershipCheck   = engine.Check{Key: "org_ownership_disclosure", Label: "Ownership disclosure", OkText: "is published", NotOkText: "is missing"}
	brandingCheck    = engine.Check{Key: "org_branding", Label: "Branding", OkText: "is complete", NotOkText: "is incomplete"}
	orgLocationCheck = engine.Check{Key: "org_location", Label: "Organisation location", OkText: "is valid", NotOkText: "is invalid"}
	socialCheck      = engine.Check{Key: "org_social", Label: "Social handles", OkText: "are valid", NotOkText: "are missing or invalid"}

	producerNodesCheck = engine.Check{Key: "nodes_producer", Label: "Producer node", OkText: "is declared", NotOkText: "is not declared"}
	seedNodesCheck     = engine.Check{Key: "nodes_seed", Label: "Seed node", OkText: "is declared", NotOkText: "is not declared"}
	apiNodesCheck      = engine.Check{Key: "nodes_api", Label: "API node", OkText: "is declared", NotOkText: "is not declared"}
	walletNodesCheck   = engine.Check{Key: "nodes_wallet", Label: "Wallet node", OkText: "is declared", NotOkText: "is not declared"}
)

var guildChecks = []engine.Check{
	chainsJSONCheck, chainsCORSCheck, bpJSONCheck, bpCORSCheck,
	accountCheck, websiteCheck, emailCheck, conductCheck, ownershipCheck, brandingCheck, orgLocationCheck, socialCheck,
	producerNodesCheck, seedNodesCheck, apiNodesCheck, walletNodesCheck,
}

// Keys returns the guild-level check keys.
func Keys() []string {
	keys := make([]string, 0, len(guildChecks))
	for _, c := range guildChecks {
		keys = append(keys, c.Key)
	}
	return keys
}

// CatalogKeys returns every check key a round can record.
func CatalogKeys() []string {
	keys := append(checklist.Keys(), seed.Keys()...)
	return append(keys, Keys()...)
}

// recorder collects guild-level results.
type recorder struct {
	*engine.Recorder
	chain *config.ChainConfig
}

func newRecorder(chain *config.ChainConfig, log *slog.Logger) *recorder {
	return &recorder{Recorder: engine.NewRecorder(chain.Name, chain, log), chain: chain}
}

// run evaluates c unless it is disabled, recording a skip when dep failed.
func (r *recorder) run(c engine.Check, dep string, eval func() (bool, string)) {
	if !r.Active(c.Key) {
		return
	}
	if r.Blocked(dep) {
		r.Skip(c, dep)
		return
	}
	passed, detail := eval()
	r.Record(c, passed, detail)
}

// runLevel is run for checks that compute their own level.
func (r *recorder) runLevel(c engine.Check, dep string, eval func() (severity.Level, string)) {
	if !r.Active(c.Key) {
		return
	}
	if r.Blocked(dep) {
		r.Skip(c, dep)
		return
	}
	level, detail := eval()
	r.RecordLevel(c, level, detail)
}
