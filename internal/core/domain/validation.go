package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/guildwatch/internal/core/severity"
	"github.com/vietddude/guildwatch/internal/core/transition"
)

// NodeKind identifies which checklist validated an endpoint.
type NodeKind string

const (
	NodeKindAPI      NodeKind = "api"
	NodeKindWallet   NodeKind = "wallet"
	NodeKindHistory  NodeKind = "history"
	NodeKindHyperion NodeKind = "hyperion"
	NodeKindAtomic   NodeKind = "atomic"
	NodeKindSeed     NodeKind = "seed"
)

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Key    string         `json:"key"`
	Label  string         `json:"label,omitempty"`
	Level  severity.Level `json:"level"`
	Passed bool           `json:"passed"`
	Detail string         `json:"detail,omitempty"`
	// Rendering texts for transition messages; not persisted.
	OkText    string `json:"-"`
	NotOkText string `json:"-"`
}

// NodeValidation is the verdict for one endpoint of one kind in one round.
type NodeValidation struct {
	ID                uuid.UUID      `json:"id"`
	GuildValidationID uuid.UUID      `json:"guild_validation_id"`
	Guild             string         `json:"guild"`
	Chain             string         `json:"chain"`
	Kind              NodeKind       `json:"kind"`
	URL               string         `json:"url"`
	Secure            bool           `json:"secure"`
	LocationOK        *bool          `json:"location_ok,omitempty"`
	Checks            []CheckResult  `json:"checks"`
	AllChecksOK       severity.Level `json:"all_checks_ok"`
	P2P               *P2POutcome    `json:"p2p,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Check returns the result recorded under key.
func (n *NodeValidation) Check(key string) (CheckResult, bool) {
	for _, c := range n.Checks {
		if c.Key == key {
			return c, true
		}
	}
	return CheckResult{}, false
}

// GuildValidation aggregates one guild's registration checks and node
// validations for a round.
type GuildValidation struct {
	ID          uuid.UUID            `json:"id"`
	RoundID     uuid.UUID            `json:"round_id"`
	Guild       string               `json:"guild"`
	Chain       string               `json:"chain"`
	URL         string               `json:"url"`
	Checks      []CheckResult        `json:"checks"`
	Nodes       []*NodeValidation    `json:"nodes"`
	AllChecksOK severity.Level       `json:"all_checks_ok"`
	Messages    []transition.Message `json:"messages"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Check returns the guild-level result recorded under key.
func (g *GuildValidation) Check(key string) (CheckResult, bool) {
	for _, c := range g.Checks {
		if c.Key == key {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Node returns the node validation with the given kind and URL.
func (g *GuildValidation) Node(kind NodeKind, url string) *NodeValidation {
	for _, n := range g.Nodes {
		if n.Kind == kind && n.URL == url {
			return n
		}
	}
	return nil
}
