// Package p2p implements a minimal Antelope net protocol client that samples
// block relay from a peer.
package p2p

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/infra/antelope"
)

// ChainReader supplies the chain state a handshake is built from.
type ChainReader interface {
	GetInfo(ctx context.Context) (*antelope.Info, error)
	GetBlockID(ctx context.Context, num uint32) (string, error)
}

// State is the session state.
type State string

const (
	StateIdle          State = "idle"
	StateConnecting    State = "connecting"
	StateHandshakeSent State = "handshake_sent"
	StateStreaming     State = "streaming"
	StateCompleted     State = "completed"
	StateKilled        State = "killed"
)

// Client runs block transmission sessions against peers of one chain.
type Client struct {
	cfg     config.P2PConfig
	chainID string
	chain   ChainReader
	dialer  *net.Dialer
	log     *slog.Logger
}

// NewClient creates a new p2p client.
func NewClient(cfg config.P2PConfig, chainID string, chain ChainReader, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		chainID: chainID,
		chain:   chain,
		dialer:  &net.Dialer{Timeout: cfg.DialTimeout},
		log:     log.With("component", "p2p"),
	}
}

// ParseEndpoint splits a "host:port" endpoint. URL schemes are rejected.
func ParseEndpoint(endpoint string) (host, port string, err error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", "", errors.New("empty p2p endpoint")
	}
	if strings.Contains(endpoint, "://") {
		return "", "", fmt.Errorf("p2p endpoint %q must not have a scheme", endpoint)
	}
	host, port, err = net.SplitHostPort(endpoint)
	if err != nil {
		return "", "", fmt.Errorf("p2p endpoint %q is not host:port: %w", endpoint, err)
	}
	if host == "" {
		return "", "", fmt.Errorf("p2p endpoint %q has no host", endpoint)
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return "", "", fmt.Errorf("p2p endpoint %q has invalid port", endpoint)
	}
	return host, port, nil
}

type session struct {
	sync  SyncRequest
	hello *Handshake
}

// prepare builds the handshake from a state BlockSampleSize blocks behind.
func (c *Client) prepare(ctx context.Context) (*session, error) {
	info, err := c.chain.GetInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain info: %w", err)
	}
	n := c.cfg.BlockSampleSize
	if info.HeadBlockNum <= n || info.LastIrreversibleBlockNum <= n {
		return nil, fmt.Errorf("chain too short for a %d block sample", n)
	}

	headNum := info.HeadBlockNum - n
	libNum := info.LastIrreversibleBlockNum - n

	headID, err := c.blockID(ctx, headNum)
	if err != nil {
		return nil, err
	}
	libID, err := c.blockID(ctx, libNum)
	if err != nil {
		return nil, err
	}
	chainID, err := ParseChecksum256(c.chainID)
	if err != nil {
		return nil, fmt.Errorf("invalid chain id: %w", err)
	}

	return &session{
		sync: SyncRequest{Start: libNum, End: info.LastIrreversibleBlockNum},
		hello: &Handshake{
			NetworkVersion:           c.cfg.NetworkVersion,
			ChainID:                  chainID,
			NodeID:                   sha256.Sum256([]byte(c.cfg.Agent + "@" + c.cfg.Address)),
			P2PAddress:               c.cfg.Address,
			LastIrreversibleBlockNum: libNum,
			LastIrreversibleBlockID:  libID,
			HeadNum:                  headNum,
			HeadID:                   headID,
			OS:                       runtime.GOOS,
			Agent:                    c.cfg.Agent,
			Generation:               1,
		},
	}, nil
}

func (c *Client) blockID(ctx context.Context, num uint32) (Checksum256, error) {
	id, err := c.chain.GetBlockID(ctx, num)
	if err != nil {
		return Checksum256{}, fmt.Errorf("failed to get block %d: %w", num, err)
	}
	return ParseChecksum256(id)
}

// Run connects to endpoint and streams blocks into handler until the sample
// completes, the peer goes away, the connection fails or the watchdog fires.
// The connection is closed on every terminal transition.
func (c *Client) Run(ctx context.Context, endpoint string, handler Handler) *domain.P2POutcome {
	out := &domain.P2POutcome{Status: domain.P2PStatusError, Reason: domain.P2PReasonNetError}

	host, port, err := ParseEndpoint(endpoint)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Host, out.Port = host, port
	log := c.log.With("endpoint", endpoint)

	sess, err := c.prepare(ctx)
	if err != nil {
		out.Error = err.Error()
		log.Debug("P2P setup failed", "error", err)
		return out
	}

	state := StateConnecting
	conn, err := c.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		out.Error = err.Error()
		handler.OnNetError(err)
		return out
	}

	frames := make(chan *Frame)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(done)
		conn.Close()
		wg.Wait()
		log.Debug("P2P session finished", "state", state, "reason", out.Reason, "blocks", out.BlockCount)
	}()

	sess.hello.Time = time.Now().UnixNano()
	if err := WriteFrame(conn, MsgHandshake, sess.hello.Encode()); err != nil {
		return c.kill(out, handler, &state, err)
	}
	state = StateHandshakeSent
	if err := WriteFrame(conn, MsgSyncRequest, sess.sync.Encode()); err != nil {
		return c.kill(out, handler, &state, err)
	}
	handler.OnHandshake(time.Now())

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			f, err := ReadFrame(conn)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- f:
			case <-done:
				return
			}
		}
	}()

	watchdog := time.NewTimer(c.cfg.BlockTimeout)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.kill(out, handler, &state, ctx.Err())

		case <-watchdog.C:
			state = StateKilled
			out.Reason = domain.P2PReasonTimeout
			out.Error = fmt.Sprintf("no block within %s", c.cfg.BlockTimeout)
			return c.finish(out, handler)

		case err := <-readErr:
			return c.kill(out, handler, &state, err)

		case f := <-frames:
			switch f.Type {
			case MsgSignedBlock:
				num, err := BlockNum(f.Payload)
				if err != nil {
					return c.kill(out, handler, &state, err)
				}
				state = StateStreaming
				if handler.OnBlock(num, time.Now()) {
					state = StateCompleted
					out.Status = domain.P2PStatusSuccess
					out.Reason = domain.P2PReasonNone
					return c.finish(out, handler)
				}
				watchdog.Reset(c.cfg.BlockTimeout)

			case MsgGoAway:
				ga, err := DecodeGoAway(f.Payload)
				if err != nil {
					return c.kill(out, handler, &state, err)
				}
				handler.OnGoAway(ga)
				state = StateKilled
				out.Reason = domain.P2PReasonGoAway
				code := ga.Reason
				out.GoAwayCode = &code
				out.Error = ga.ReasonText()
				return c.finish(out, handler)
			}
		}
	}
}

func (c *Client) kill(out *domain.P2POutcome, handler Handler, state *State, err error) *domain.P2POutcome {
	*state = StateKilled
	handler.OnNetError(err)
	out.Reason = domain.P2PReasonNetError
	out.Error = err.Error()
	return c.finish(out, handler)
}

func (c *Client) finish(out *domain.P2POutcome, handler Handler) *domain.P2POutcome {
	if r, ok := handler.(Reporter); ok {
		r.Report(out)
	}
	return out
}
