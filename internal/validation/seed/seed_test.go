package seed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/core/round"
	"github.com/vietddude/guildwatch/internal/core/severity"
	"github.com/vietddude/guildwatch/internal/infra/antelope"
	"github.com/vietddude/guildwatch/internal/infra/p2p"
	"github.com/vietddude/guildwatch/internal/infra/storage/memory"
	"github.com/vietddude/guildwatch/internal/validation/engine"
)

type fakeRunner struct {
	out      *domain.P2POutcome
	endpoint string
	calls    int
}

func (f *fakeRunner) Run(ctx context.Context, endpoint string, handler p2p.Handler) *domain.P2POutcome {
	f.calls++
	f.endpoint = endpoint
	return f.out
}

type failingChain struct{}

func (failingChain) GetInfo(ctx context.Context) (*antelope.Info, error) {
	return nil, errors.New("get_info unavailable")
}

func (failingChain) GetBlockID(ctx context.Context, num uint32) (string, error) {
	return "", errors.New("get_block unavailable")
}

func speed(v float64) *float64 { return &v }

func seedChain(checks ...string) *config.ChainConfig {
	cc := map[string]config.CheckConfig{}
	for _, k := range checks {
		cc[k] = config.CheckConfig{Enabled: true, Severity: "error"}
	}
	return &config.ChainConfig{
		Name:   "eos",
		Checks: cc,
		P2P:    config.P2PConfig{BlockSampleSize: 20, MinSpeed: 2},
	}
}

func TestSeedKind(t *testing.T) {
	tests := []struct {
		name             string
		out              *domain.P2POutcome
		wantEndpoint     severity.Level
		wantTransmission severity.Level
		wantDetail       string
	}{
		{
			name:             "fast peer",
			out:              &domain.P2POutcome{Status: domain.P2PStatusSuccess, Reason: domain.P2PReasonNone, BlockCount: 20, Speed: speed(8)},
			wantEndpoint:     severity.LevelSuccess,
			wantTransmission: severity.LevelSuccess,
		},
		{
			name:             "connected but slow",
			out:              &domain.P2POutcome{Status: domain.P2PStatusSuccess, Reason: domain.P2PReasonNone, BlockCount: 20, Speed: speed(1.5)},
			wantEndpoint:     severity.LevelSuccess,
			wantTransmission: severity.LevelError,
			wantDetail:       "1.50 blocks/s",
		},
		{
			name:             "go away",
			out:              &domain.P2POutcome{Status: domain.P2PStatusError, Reason: domain.P2PReasonGoAway, Error: "wrong chain"},
			wantEndpoint:     severity.LevelSuccess,
			wantTransmission: severity.LevelError,
			wantDetail:       "go_away: wrong chain",
		},
		{
			name:             "unreachable",
			out:              &domain.P2POutcome{Status: domain.P2PStatusError, Reason: domain.P2PReasonNetError, Error: "connection refused"},
			wantEndpoint:     severity.LevelError,
			wantTransmission: severity.LevelError,
			wantDetail:       "skipped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := seedChain(Keys()...)
			runner := &fakeRunner{out: tt.out}
			eng := engine.New(nil, memory.NewValidationRepo(memory.NewStorage()))

			nv := eng.Validate(context.Background(), round.New(chain, nil), Kind(runner), engine.Target{
				Guild: "alpha",
				URL:   "p2p.alpha.io:9876",
			})
			require.NotNil(t, nv)
			assert.Equal(t, "p2p.alpha.io:9876", runner.endpoint)
			assert.Same(t, tt.out, nv.P2P)

			ep, ok := nv.Check("p2p_endpoint")
			require.True(t, ok)
			assert.Equal(t, tt.wantEndpoint, ep.Level)

			tx, ok := nv.Check("p2p_block_transmission")
			require.True(t, ok)
			assert.Equal(t, tt.wantTransmission, tx.Level)
			assert.True(t, strings.Contains(tx.Detail, tt.wantDetail), tx.Detail)
		})
	}
}

func TestSeedKind_DisabledChecksSkipProbe(t *testing.T) {
	runner := &fakeRunner{out: &domain.P2POutcome{}}
	eng := engine.New(nil, memory.NewValidationRepo(memory.NewStorage()))

	nv := eng.Validate(context.Background(), round.New(seedChain(), nil), Kind(runner), engine.Target{
		Guild: "alpha",
		URL:   "p2p.alpha.io:9876",
	})
	require.NotNil(t, nv)
	assert.Zero(t, runner.calls)
	assert.Empty(t, nv.Checks)
	assert.Equal(t, severity.LevelSuccess, nv.AllChecksOK)
}

func TestSeedKind_WithRealClientSetupFailure(t *testing.T) {
	chain := seedChain(Keys()...)
	chain.P2P.BlockTimeout = time.Second
	chain.P2P.DialTimeout = time.Second
	client := p2p.NewClient(chain.P2P, chain.ID, failingChain{}, nil)
	eng := engine.New(nil, memory.NewValidationRepo(memory.NewStorage()))

	nv := eng.Validate(context.Background(), round.New(chain, nil), Kind(client), engine.Target{
		Guild: "alpha",
		URL:   "127.0.0.1:1",
	})
	require.NotNil(t, nv)
	require.NotNil(t, nv.P2P)
	assert.Equal(t, domain.P2PReasonNetError, nv.P2P.Reason)
	assert.Equal(t, severity.LevelError, nv.AllChecksOK)
}
