// Package seed validates p2p seed endpoints with the block transmission probe.
package seed

import (
	"context"
	"fmt"

	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/infra/p2p"
	"github.com/vietddude/guildwatch/internal/monitoring/metrics"
	"github.com/vietddude/guildwatch/internal/validation/engine"
)

var (
	endpointCheck = engine.Check{
		Key:       "p2p_endpoint",
		Label:     "P2P endpoint",
		OkText:    "is reachable",
		NotOkText: "is not reachable",
	}
	transmissionCheck = engine.Check{
		Key:       "p2p_block_transmission",
		Label:     "P2P block transmission",
		OkText:    "is fast enough",
		NotOkText: "is too slow",
	}
)

// Runner runs one block transmission session.
type Runner interface {
	Run(ctx context.Context, endpoint string, handler p2p.Handler) *domain.P2POutcome
}

// Keys returns the check keys of the seed kind.
func Keys() []string {
	return []string{endpointCheck.Key, transmissionCheck.Key}
}

// Kind builds the seed kind around runner.
func Kind(runner Runner) *engine.Kind {
	return &engine.Kind{
		Name:             domain.NodeKindSeed,
		RequiresLocation: true,
		Run: func(ctx context.Context, env *engine.Env, rec *engine.Recorder) {
			run(ctx, env, rec, runner)
		},
	}
}

func run(ctx context.Context, env *engine.Env, rec *engine.Recorder, runner Runner) {
	checkEndpoint := rec.Active(endpointCheck.Key)
	checkTransmission := rec.Active(transmissionCheck.Key)
	if !checkEndpoint && !checkTransmission {
		return
	}

	handler := p2p.NewBlockTransmission(int(env.Chain.P2P.BlockSampleSize), env.Log)
	out := runner.Run(ctx, env.Target.URL, handler)
	rec.SetP2P(out)

	metrics.P2POutcomes.WithLabelValues(env.Chain.Name, string(out.Reason)).Inc()
	if out.Speed != nil {
		metrics.P2PSpeed.WithLabelValues(env.Chain.Name).Observe(*out.Speed)
	}

	// A peer that answered at all is reachable, even when it went away or
	// stalled before the sample completed.
	reachable := out.Reason != domain.P2PReasonNetError || out.BlockCount > 0
	if checkEndpoint {
		detail := ""
		if !reachable {
			detail = out.Error
		}
		rec.Record(endpointCheck, reachable, detail)
		if !reachable && checkTransmission {
			rec.Skip(transmissionCheck, endpointCheck.Key)
			return
		}
	}

	if checkTransmission {
		rec.Record(transmissionCheck, out.OK(env.Chain.P2P.MinSpeed), transmissionDetail(out))
	}
}

func transmissionDetail(out *domain.P2POutcome) string {
	speed := "no samples"
	if out.Speed != nil {
		speed = fmt.Sprintf("%.2f blocks/s", *out.Speed)
	}
	detail := fmt.Sprintf("%d blocks, %s", out.BlockCount, speed)
	if out.Status != domain.P2PStatusSuccess {
		detail += ", " + string(out.Reason)
		if out.Error != "" {
			detail += ": " + out.Error
		}
	}
	return detail
}
