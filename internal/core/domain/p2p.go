package domain

type P2PStatus string

const (
	P2PStatusSuccess P2PStatus = "success"
	P2PStatusError   P2PStatus = "error"
)

type P2PReason string

const (
	P2PReasonNone     P2PReason = "none"
	P2PReasonTimeout  P2PReason = "timeout"
	P2PReasonGoAway   P2PReason = "go_away"
	P2PReasonNetError P2PReason = "net_error"
)

// P2POutcome is the result of one block transmission probe.
type P2POutcome struct {
	Host       string    `json:"host"`
	Port       string    `json:"port"`
	Status     P2PStatus `json:"status"`
	BlockCount int       `json:"block_count"`
	Latencies  []int64   `json:"latencies"` // ns between consecutive blocks
	Speed      *float64  `json:"speed,omitempty"`
	Reason     P2PReason `json:"reason"`
	GoAwayCode *uint32   `json:"go_away_code,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// OK reports whether the peer relayed blocks faster than minSpeed.
func (o *P2POutcome) OK(minSpeed float64) bool {
	return o != nil && o.Status == P2PStatusSuccess && o.Speed != nil && *o.Speed > minSpeed
}

// ComputeSpeed derives blocks per second from the latency samples.
func (o *P2POutcome) ComputeSpeed() {
	if len(o.Latencies) == 0 {
		o.Speed = nil
		return
	}
	var total int64
	for _, l := range o.Latencies {
		total += l
	}
	if total <= 0 {
		o.Speed = nil
		return
	}
	speed := float64(len(o.Latencies)) / (float64(total) / 1e9)
	o.Speed = &speed
}
