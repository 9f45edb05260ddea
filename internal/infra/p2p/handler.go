package p2p

import (
	"log/slog"
	"time"

	"github.com/vietddude/guildwatch/internal/core/domain"
)

// Handler reacts to events of one p2p session.
type Handler interface {
	// OnHandshake is called once the handshake and sync request are sent.
	OnHandshake(at time.Time)
	// OnBlock is called per signed block; returning true completes the session.
	OnBlock(num uint32, at time.Time) bool
	OnGoAway(reason GoAway)
	OnNetError(err error)
}

// Reporter is implemented by handlers that contribute to the outcome.
type Reporter interface {
	Report(out *domain.P2POutcome)
}

// BlockTransmission measures the delay between consecutive blocks until
// target blocks have arrived. The first sample is measured from the handshake.
type BlockTransmission struct {
	target    int
	last      time.Time
	latencies []int64
	count     int
	lastNum   uint32
	log       *slog.Logger
}

// NewBlockTransmission creates a handler that completes after target blocks.
func NewBlockTransmission(target int, log *slog.Logger) *BlockTransmission {
	if log == nil {
		log = slog.Default()
	}
	return &BlockTransmission{target: target, log: log}
}

func (b *BlockTransmission) OnHandshake(at time.Time) {
	b.last = at
}

func (b *BlockTransmission) OnBlock(num uint32, at time.Time) bool {
	if !b.last.IsZero() {
		b.latencies = append(b.latencies, at.Sub(b.last).Nanoseconds())
	}
	b.last = at
	b.lastNum = num
	b.count++
	return b.count >= b.target
}

func (b *BlockTransmission) OnGoAway(reason GoAway) {
	b.log.Debug("Peer sent go away", "reason", reason.ReasonText(), "blocks", b.count)
}

func (b *BlockTransmission) OnNetError(err error) {
	b.log.Debug("Peer connection failed", "error", err, "blocks", b.count)
}

func (b *BlockTransmission) Report(out *domain.P2POutcome) {
	out.BlockCount = b.count
	out.Latencies = append([]int64(nil), b.latencies...)
	out.ComputeSpeed()
}
