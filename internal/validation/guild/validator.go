// Package guild validates one guild per round: its registration documents,
// its organisation data and every node its topology declares.
package guild

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/core/round"
	"github.com/vietddude/guildwatch/internal/core/severity"
	"github.com/vietddude/guildwatch/internal/core/transition"
	"github.com/vietddude/guildwatch/internal/infra/alert"
	"github.com/vietddude/guildwatch/internal/infra/probe"
	"github.com/vietddude/guildwatch/internal/infra/report"
	"github.com/vietddude/guildwatch/internal/infra/storage"
	"github.com/vietddude/guildwatch/internal/monitoring/metrics"
	"github.com/vietddude/guildwatch/internal/validation/checklist"
	"github.com/vietddude/guildwatch/internal/validation/engine"
)

// featureKinds maps bp.json query features to node kinds.
var featureKinds = map[string]domain.NodeKind{
	"chain-api":         domain.NodeKindAPI,
	"account-query":     domain.NodeKindWallet,
	"history-v1":        domain.NodeKindHistory,
	"hyperion-v2":       domain.NodeKindHyperion,
	"atomic-assets-api": domain.NodeKindAtomic,
}

// Config holds the collaborators of a Validator.
type Config struct {
	Engine             *engine.Engine
	Prober             engine.Prober
	Seed               *engine.Kind // nil disables seed validation
	Store              storage.ValidationRepository
	Sink               report.Sink
	Notifier           alert.Notifier
	MaxConcurrentNodes int
	NotifyTimeout      time.Duration
}

const defaultNotifyTimeout = 30 * time.Second

// Validator validates the guilds of one chain.
type Validator struct {
	cfg     Config
	kinds   map[domain.NodeKind]*engine.Kind
	now     func() time.Time
	pending sync.WaitGroup
}

// NewValidator creates a new Validator.
func NewValidator(cfg Config) *Validator {
	kinds := make(map[domain.NodeKind]*engine.Kind)
	for _, k := range checklist.Kinds() {
		kinds[k.Name] = k
	}
	if cfg.Seed != nil {
		kinds[domain.NodeKindSeed] = cfg.Seed
	}
	if cfg.MaxConcurrentNodes <= 0 {
		cfg.MaxConcurrentNodes = 1
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	return &Validator{cfg: cfg, kinds: kinds, now: time.Now}
}

type nodeTarget struct {
	kind   *engine.Kind
	target engine.Target
}

// Validate runs every check of g for the round, persists the verdict, writes
// the report and notifies about transitions in the background. The returned
// error is set only when the verdict could not be persisted.
func (v *Validator) Validate(ctx context.Context, rd *round.Round, g *domain.Guild) (*domain.GuildValidation, error) {
	chain := rd.Chain
	log := rd.ForGuild(g.Name)

	gv := &domain.GuildValidation{
		ID:        uuid.New(),
		RoundID:   rd.ID,
		Guild:     g.Name,
		Chain:     chain.Name,
		URL:       g.URL,
		CreatedAt: v.now(),
	}

	prev, err := v.cfg.Store.FindLastGuildValidation(ctx, g.Name, chain.Name)
	if err != nil {
		log.Warn("Failed to load previous validation", "error", err)
		prev = nil
	}

	rec := newRecorder(chain, log)
	doc := v.discover(ctx, g, rec)
	v.checkOrg(ctx, g, doc, rec)
	targets := v.checkTopology(g, gv.ID, doc, rec)

	gv.Checks = rec.Results()
	gv.Nodes = v.validateNodes(ctx, rd, targets)

	levels := []severity.Level{severity.AllChecksOK(rec.Named(), chain, log)}
	for _, n := range gv.Nodes {
		levels = append(levels, n.AllChecksOK)
	}
	gv.AllChecksOK = severity.Combine(levels...)
	gv.Messages = Transitions(prev, gv)

	var saveErr error
	if err := v.cfg.Store.SaveGuildValidation(ctx, gv); err != nil {
		metrics.PersistenceErrors.WithLabelValues("guild_validation").Inc()
		saveErr = fmt.Errorf("failed to save guild validation: %w", err)
	}

	if err := v.cfg.Sink.Write(ctx, report.FromValidation(gv, chain.DisplayName())); err != nil {
		log.Error("Failed to write report", "error", err)
	}

	alerts := transition.Alertable(gv.Messages)
	if len(alerts) > 0 {
		header := fmt.Sprintf("%s on %s", g.Name, chain.DisplayName())
		v.notify(ctx, g.Name, chain.DisplayName(), header, alerts)
	}

	log.Info("Guild validated", "level", gv.AllChecksOK, "nodes", len(gv.Nodes), "alerts", len(alerts))
	return gv, saveErr
}

func (v *Validator) notify(ctx context.Context, guild, chainLabel, header string, alerts []transition.Message) {
	v.pending.Add(1)
	go func() {
		defer v.pending.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.cfg.NotifyTimeout)
		defer cancel()
		v.cfg.Notifier.Notify(nctx, guild, chainLabel, header, alerts)
	}()
}

// Wait blocks until every pending notification has been delivered or timed out.
func (v *Validator) Wait() {
	v.pending.Wait()
}

func (v *Validator) probe(ctx context.Context, base, path string, rec *recorder) *probe.Result {
	retries := v.cfg.Prober.EvaluatePerformanceMode(rec.Failed())
	return v.cfg.Prober.Probe(ctx, base, path, retries, http.MethodGet, nil)
}

// discover fetches chains.json and the topology document it points to.
func (v *Validator) discover(ctx context.Context, g *domain.Guild, rec *recorder) *bpJSON {
	chain := rec.chain

	chains := v.probe(ctx, g.URL, "/chains.json", rec)
	entry, listed := chains.String("chains." + chain.ID)
	rec.run(chainsJSONCheck, "", func() (bool, string) {
		if !chains.OK {
			return false, failure(chains)
		}
		if !listed || entry == "" {
			return false, "chain not listed"
		}
		return true, entry
	})
	rec.run(chainsCORSCheck, chainsJSONCheck.Key, func() (bool, string) {
		return chains.HeaderEquals("Access-Control-Allow-Origin", "*"), ""
	})

	path := chain.Directory.BPJSONPath
	if listed && entry != "" {
		path = entry
	}

	res := v.probe(ctx, g.URL, path, rec)
	var doc *bpJSON
	var decodeErr error
	if res.OK {
		var d bpJSON
		if decodeErr = json.Unmarshal(res.Body, &d); decodeErr == nil {
			doc = &d
		}
	}
	rec.run(bpJSONCheck, "", func() (bool, string) {
		switch {
		case !res.OK:
			return false, failure(res)
		case decodeErr != nil:
			return false, decodeErr.Error()
		}
		return true, ""
	})
	rec.run(bpCORSCheck, bpJSONCheck.Key, func() (bool, string) {
		return res.HeaderEquals("Access-Control-Allow-Origin", "*"), ""
	})
	return doc
}

func (v *Validator) checkOrg(ctx context.Context, g *domain.Guild, doc *bpJSON, rec *recorder) {
	dep := bpJSONCheck.Key
	unavailable := func() (bool, string) { return false, "bp.json unavailable" }
	if doc == nil {
		for _, c := range []engine.Check{accountCheck, websiteCheck, emailCheck, conductCheck, ownershipCheck, orgLocationCheck, socialCheck} {
			rec.run(c, dep, unavailable)
		}
		rec.runLevel(brandingCheck, dep, func() (severity.Level, string) {
			return severity.Calculate(false, rec.chain, brandingCheck.Key), "bp.json unavailable"
		})
		return
	}
	o := doc.Org

	rec.run(accountCheck, dep, func() (bool, string) {
		return doc.ProducerAccountName == g.Name, doc.ProducerAccountName
	})
	rec.run(websiteCheck, dep, func() (bool, string) {
		if ok, detail := engine.ValidateURL(o.Website); !ok {
			return false, detail
		}
		res := v.probe(ctx, o.Website, "", rec)
		return res.OK, failure(res)
	})
	rec.run(emailCheck, dep, func() (bool, string) {
		if _, err := mail.ParseAddress(o.Email); err != nil {
			return false, err.Error()
		}
		return true, ""
	})
	rec.run(conductCheck, dep, func() (bool, string) { return engine.ValidateURL(o.CodeOfConduct) })
	rec.run(ownershipCheck, dep, func() (bool, string) { return engine.ValidateURL(o.OwnershipDisclosure) })
	rec.runLevel(brandingCheck, dep, func() (severity.Level, string) {
		logos := []struct{ name, url string }{
			{"logo_256", o.Branding.Logo256},
			{"logo_1024", o.Branding.Logo1024},
			{"logo_svg", o.Branding.LogoSVG},
		}
		var levels []severity.Level
		var missing []string
		for _, logo := range logos {
			ok, _ := engine.ValidateURL(logo.url)
			levels = append(levels, severity.Calculate(ok, rec.chain, brandingCheck.Key))
			if !ok {
				missing = append(missing, logo.name)
			}
		}
		if len(missing) == 0 {
			return severity.Combine(levels...), ""
		}
		return severity.Combine(levels...), "missing: " + strings.Join(missing, ", ")
	})
	rec.run(orgLocationCheck, dep, func() (bool, string) { return engine.ValidateLocation(o.Location.toDomain()) })
	rec.run(socialCheck, dep, func() (bool, string) { return validSocial(o.Social) })
}

// checkTopology evaluates the declared node types and returns the endpoints to validate.
func (v *Validator) checkTopology(g *domain.Guild, gvID uuid.UUID, doc *bpJSON, rec *recorder) []nodeTarget {
	dep := bpJSONCheck.Key
	var nodes []node
	if doc != nil {
		nodes = doc.Nodes
	}

	var targets []nodeTarget
	seen := make(map[string]bool)
	add := func(kind domain.NodeKind, url string, loc *location) {
		k, ok := v.kinds[kind]
		key := string(kind) + "|" + url
		if !ok || url == "" || seen[key] {
			return
		}
		seen[key] = true
		targets = append(targets, nodeTarget{kind: k, target: engine.Target{
			Guild:             g.Name,
			GuildValidationID: gvID,
			URL:               url,
			Location:          loc.toDomain(),
		}})
	}

	var hasProducer, hasSeed, hasAPI, hasWallet bool
	for i := range nodes {
		n := &nodes[i]
		if n.is("producer") {
			hasProducer = true
		}
		if n.is("seed") && strings.TrimSpace(n.P2PEndpoint) != "" {
			hasSeed = true
			add(domain.NodeKindSeed, strings.TrimSpace(n.P2PEndpoint), n.Location)
		}
		if n.is("full") {
			for _, ep := range n.endpoints() {
				hasAPI = true
				add(domain.NodeKindAPI, ep, n.Location)
			}
		}
		if n.is("query") {
			for _, f := range n.Features {
				kind, ok := featureKinds[strings.ToLower(strings.TrimSpace(f))]
				if !ok {
					continue
				}
				for _, ep := range n.endpoints() {
					hasAPI = hasAPI || kind == domain.NodeKindAPI
					hasWallet = hasWallet || kind == domain.NodeKindWallet
					add(kind, ep, n.Location)
				}
			}
		}
	}

	declared := func(ok bool) func() (bool, string) {
		return func() (bool, string) { return ok, "" }
	}
	rec.run(producerNodesCheck, dep, declared(hasProducer))
	rec.run(seedNodesCheck, dep, declared(hasSeed))
	rec.run(apiNodesCheck, dep, declared(hasAPI))
	rec.run(walletNodesCheck, dep, declared(hasWallet))
	return targets
}

func (v *Validator) validateNodes(ctx context.Context, rd *round.Round, targets []nodeTarget) []*domain.NodeValidation {
	results := make([]*domain.NodeValidation, len(targets))

	var eg errgroup.Group
	eg.SetLimit(v.cfg.MaxConcurrentNodes)
	for i, t := range targets {
		eg.Go(func() error {
			results[i] = v.cfg.Engine.Validate(ctx, rd, t.kind, t.target)
			return nil
		})
	}
	_ = eg.Wait()

	nodes := make([]*domain.NodeValidation, 0, len(results))
	for _, nv := range results {
		if nv != nil {
			nodes = append(nodes, nv)
		}
	}
	return nodes
}

// Transitions compares gv against the previous validation of the same guild.
// Guild checks are matched by key, node checks by kind, URL and key.
func Transitions(prev, gv *domain.GuildValidation) []transition.Message {
	var msgs []transition.Message

	for _, c := range gv.Checks {
		var was *bool
		if prev != nil {
			if p, ok := prev.Check(c.Key); ok {
				was = &p.Passed
			}
		}
		m := transition.Evaluate(was, c.Passed, c.Label, c.OkText, c.NotOkText)
		m.Key = c.Key
		msgs = append(msgs, m)
	}

	for _, n := range gv.Nodes {
		var prevNode *domain.NodeValidation
		if prev != nil {
			prevNode = prev.Node(n.Kind, n.URL)
		}
		for _, c := range n.Checks {
			var was *bool
			if prevNode != nil {
				if p, ok := prevNode.Check(c.Key); ok {
					was = &p.Passed
				}
			}
			label := fmt.Sprintf("%s (%s)", c.Label, n.URL)
			m := transition.Evaluate(was, c.Passed, label, c.OkText, c.NotOkText)
			m.Key = fmt.Sprintf("%s|%s|%s", n.Kind, n.URL, c.Key)
			msgs = append(msgs, m)
		}
	}
	return msgs
}

func failure(res *probe.Result) string {
	if res.OK || res.Error == "" {
		return ""
	}
	return string(res.ErrorKind) + ": " + res.Error
}

func validSocial(social map[string]any) (bool, string) {
	if len(social) == 0 {
		return false, "no social handles"
	}
	var bad []string
	for network, raw := range social {
		handle, _ := raw.(string)
		handle = strings.TrimSpace(handle)
		if handle == "" || strings.Contains(handle, "/") || strings.HasPrefix(handle, "@") {
			bad = append(bad, network)
		}
	}
	if len(bad) > 0 {
		slices.Sort(bad)
		return false, "invalid handles: " + strings.Join(bad, ", ")
	}
	return true, ""
}
