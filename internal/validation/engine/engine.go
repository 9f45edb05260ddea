package engine

import (
	"context"
	"crypto/x509"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/core/round"
	"github.com/vietddude/guildwatch/internal/core/severity"
	"github.com/vietddude/guildwatch/internal/infra/probe"
	"github.com/vietddude/guildwatch/internal/infra/storage"
	"github.com/vietddude/guildwatch/internal/monitoring/metrics"
)

var (
	locationCheck = Check{Key: KeyNodeLocation, Label: "Node location", OkText: "is valid", NotOkText: "is invalid"}
	urlCheck      = Check{Key: KeyEndpointURL, Label: "Endpoint URL", OkText: "is well formed", NotOkText: "is malformed"}
	tlsCheck      = Check{Key: KeyTLS, Label: "TLS certificate", OkText: "is valid", NotOkText: "is invalid or expiring"}
)

// Prober executes HTTP probes.
type Prober interface {
	Probe(ctx context.Context, baseURL, path string, retries int, method string, body any) *probe.Result
	EvaluatePerformanceMode(failed int) int
}

// Engine validates endpoints of any kind.
type Engine struct {
	prober  Prober
	store   storage.ValidationRepository
	rootCAs *x509.CertPool
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRootCAs sets the pool used by the tls check. nil uses the system pool.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(e *Engine) { e.rootCAs = pool }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a new Engine.
func New(prober Prober, store storage.ValidationRepository, opts ...Option) *Engine {
	e := &Engine{prober: prober, store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate runs kind against target and persists the result. It returns nil
// when the target has no URL.
func (e *Engine) Validate(ctx context.Context, rd *round.Round, kind *Kind, target Target) *domain.NodeValidation {
	if strings.TrimSpace(target.URL) == "" {
		return nil
	}

	chain := rd.Chain
	log := rd.ForGuild(target.Guild).With("kind", kind.Name, "url", target.URL)
	now := e.now()
	nv := &domain.NodeValidation{
		ID:                uuid.New(),
		GuildValidationID: target.GuildValidationID,
		Guild:             target.Guild,
		Chain:             chain.Name,
		Kind:              kind.Name,
		URL:               target.URL,
		Secure:            isSecure(target.URL),
		CreatedAt:         now,
	}
	env := &Env{Now: now, Chain: chain, Target: target, Secure: nv.Secure, Log: log}
	rec := newRecorder(nv, chain, log)

	if kind.RequiresLocation {
		ok, detail := ValidateLocation(target.Location)
		nv.LocationOK = &ok
		if rec.Active(KeyNodeLocation) {
			rec.Record(locationCheck, ok, detail)
		}
	}

	if kind.ValidateURL && rec.Active(KeyEndpointURL) {
		ok, detail := ValidateURL(target.URL)
		rec.Record(urlCheck, ok, detail)
	}

	if kind.Run != nil {
		kind.Run(ctx, env, rec)
	} else {
		e.runChecks(ctx, env, kind, rec)
	}

	if nv.Secure && rec.Active(KeyTLS) {
		ok, detail := e.checkTLS(ctx, env)
		rec.Record(tlsCheck, ok, detail)
	}

	nv.AllChecksOK = severity.AllChecksOK(rec.Named(), chain, log)
	metrics.NodeValidations.WithLabelValues(chain.Name, string(kind.Name), nv.AllChecksOK.String()).Inc()

	if err := e.store.SaveNodeValidation(ctx, nv); err != nil {
		metrics.PersistenceErrors.WithLabelValues("node_validation").Inc()
		log.Error("Failed to save node validation", "error", err)
	}

	log.Debug("Node validated", "level", nv.AllChecksOK, "failed", rec.Failed())
	return nv
}

func (e *Engine) runChecks(ctx context.Context, env *Env, kind *Kind, rec *Recorder) {
	results := make(map[string]*probe.Result)

	for _, c := range kind.Checks {
		if !rec.Active(c.Key) {
			continue
		}
		if c.SecureOnly && !env.Secure {
			continue
		}
		if rec.Blocked(c.DependsOn) {
			rec.Skip(c, c.DependsOn)
			continue
		}

		res := &probe.Result{}
		if c.Probe != "" {
			p, ok := kind.probe(c.Probe)
			if !ok {
				env.Log.Error("Check references unknown probe", "check", c.Key, "probe", c.Probe)
				rec.store(c, severity.LevelError, false, "unknown probe "+c.Probe)
				continue
			}
			if cached, ok := results[p.Name]; ok {
				res = cached
			} else {
				res = e.run(ctx, env, p, rec.Failed())
				results[p.Name] = res
			}
		}

		if len(c.Group) > 0 {
			level, detail := evaluateGroup(env, c, res)
			rec.RecordLevel(c, level, detail)
			continue
		}

		passed, detail := evaluate(env, c, res)
		rec.Record(c, passed, detail)
	}
}

func (e *Engine) run(ctx context.Context, env *Env, p Probe, failed int) *probe.Result {
	retries := e.prober.EvaluatePerformanceMode(failed)
	if p.NoRetry {
		retries = 0
	}
	var body any
	if p.Body != nil {
		body = p.Body(env.Chain)
	}
	return e.prober.Probe(ctx, env.Target.URL, Expand(p.Path, env.Chain), retries, p.Method, body)
}

func evaluate(env *Env, c Check, res *probe.Result) (bool, string) {
	var passed bool
	var detail string
	if c.Pass != nil {
		passed, detail = c.Pass(env, res)
	} else {
		passed = res.OK
	}
	if !passed && detail == "" && res.Error != "" {
		detail = string(res.ErrorKind) + ": " + res.Error
	}
	return passed, detail
}

func evaluateGroup(env *Env, c Check, res *probe.Result) (severity.Level, string) {
	levels := make([]severity.Level, 0, len(c.Group))
	var missing []string
	for _, s := range c.Group {
		ok, _ := s.Pass(env, res)
		levels = append(levels, severity.Calculate(ok, env.Chain, c.Key))
		if !ok {
			missing = append(missing, s.Name)
		}
	}
	level := severity.Combine(levels...)
	if len(missing) == 0 {
		return level, ""
	}
	return level, "missing: " + strings.Join(missing, ", ")
}

func isSecure(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "https://")
}
