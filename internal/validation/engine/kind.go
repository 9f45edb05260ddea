// Package engine runs declarative checklists against guild endpoints.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/infra/probe"
)

// Engine-level check keys.
const (
	KeyNodeLocation = "node_location"
	KeyEndpointURL  = "endpoint_url"
	KeyTLS          = "tls"
)

// Predicate judges a probe result. The string is a short detail shown in reports.
type Predicate func(env *Env, res *probe.Result) (bool, string)

// Probe is a named request template. Each probe runs at most once per
// validation, however many checks read it.
type Probe struct {
	Name   string
	Method string
	// Path may reference {account}, {public_key}, {transaction}, {symbol}
	// and {collection}.
	Path    string
	Body    func(c *config.ChainConfig) any
	NoRetry bool
}

// Sub is one member of a check group.
type Sub struct {
	Name string
	Pass Predicate
}

// Check is one named entry of a checklist.
type Check struct {
	Key       string
	Label     string
	OkText    string
	NotOkText string

	Probe      string // probe name
	DependsOn  string // check key that must have succeeded
	SecureOnly bool

	Pass  Predicate
	Group []Sub // rolled up with severity.Combine when set
}

// Kind describes how one endpoint kind is validated.
type Kind struct {
	Name             domain.NodeKind
	RequiresLocation bool
	ValidateURL      bool
	Probes           []Probe
	Checks           []Check

	// Run replaces the probe checklist when set.
	Run func(ctx context.Context, env *Env, rec *Recorder)
}

func (k *Kind) probe(name string) (Probe, bool) {
	for _, p := range k.Probes {
		if p.Name == name {
			return p, true
		}
	}
	return Probe{}, false
}

// Target is one endpoint to validate.
type Target struct {
	Guild             string
	GuildValidationID uuid.UUID
	URL               string
	Location          *domain.Location
}

// Env is what predicates and run hooks see of the current validation.
type Env struct {
	Now    time.Time
	Chain  *config.ChainConfig
	Target Target
	Secure bool
	Log    *slog.Logger
}

// Expand substitutes chain values into a probe path.
func Expand(path string, c *config.ChainConfig) string {
	return strings.NewReplacer(
		"{account}", c.API.TestAccount,
		"{public_key}", c.API.PublicKey,
		"{transaction}", c.API.TestTransaction,
		"{symbol}", c.API.CoreSymbol,
		"{collection}", c.Indexer.AtomicCollection,
	).Replace(path)
}
