package p2p

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/infra/antelope"
)

const testChainID = "aca376f206b8fc25a6ed44dbdc66547c36c6c33e3a119ffbeaef943642f0e906"

type fakeChain struct {
	infoErr error
	calls   atomic.Int32
}

func (f *fakeChain) GetInfo(ctx context.Context) (*antelope.Info, error) {
	f.calls.Add(1)
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &antelope.Info{
		ChainID:                  testChainID,
		HeadBlockNum:             1000,
		LastIrreversibleBlockNum: 670,
	}, nil
}

func (f *fakeChain) GetBlockID(ctx context.Context, num uint32) (string, error) {
	f.calls.Add(1)
	return strings.Repeat("0f", 32), nil
}

// peerScript drives the synthetic peer after it has read the handshake and
// sync request.
type peerScript func(conn net.Conn, req SyncRequest)

type fakePeer struct {
	ln       net.Listener
	done     chan struct{}
	accepted atomic.Int32
	hello    atomic.Pointer[Handshake]
}

func startPeer(t *testing.T, script peerScript) *fakePeer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	p := &fakePeer{ln: ln, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		p.accepted.Add(1)
		defer conn.Close()

		f, err := ReadFrame(conn)
		if err != nil || f.Type != MsgHandshake {
			return
		}
		h, err := DecodeHandshake(f.Payload)
		if err != nil {
			return
		}
		p.hello.Store(h)

		f, err = ReadFrame(conn)
		if err != nil || f.Type != MsgSyncRequest {
			return
		}
		req, err := DecodeSyncRequest(f.Payload)
		if err != nil {
			return
		}
		script(conn, req)
	}()
	return p
}

func (p *fakePeer) addr() string { return p.ln.Addr().String() }

func (p *fakePeer) stop() {
	p.ln.Close()
	<-p.done
}

func sendBlocks(conn net.Conn, from uint32, count int, gap time.Duration) error {
	for i := 0; i < count; i++ {
		if i > 0 {
			time.Sleep(gap)
		}
		if err := WriteFrame(conn, MsgSignedBlock, signedBlockPayload(from+uint32(i))); err != nil {
			return err
		}
	}
	return nil
}

func waitClosed(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 64)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

func testP2PConfig(samples uint32, blockTimeout time.Duration) config.P2PConfig {
	return config.P2PConfig{
		NetworkVersion:  1206,
		BlockSampleSize: samples,
		BlockTimeout:    blockTimeout,
		DialTimeout:     time.Second,
		Address:         "guildwatch:9876",
		Agent:           "guildwatch-test",
	}
}

func TestRun_Success(t *testing.T) {
	defer goleak.VerifyNone(t)

	const n = 5
	peer := startPeer(t, func(conn net.Conn, req SyncRequest) {
		sendBlocks(conn, req.Start, n, 5*time.Millisecond)
		waitClosed(conn)
	})
	defer peer.stop()

	c := NewClient(testP2PConfig(n, time.Second), testChainID, &fakeChain{}, nil)
	out := c.Run(context.Background(), peer.addr(), NewBlockTransmission(n, nil))

	if out.Status != domain.P2PStatusSuccess || out.Reason != domain.P2PReasonNone {
		t.Fatalf("status = %s reason = %s (%s)", out.Status, out.Reason, out.Error)
	}
	if out.BlockCount != n {
		t.Errorf("BlockCount = %d, want %d", out.BlockCount, n)
	}
	if len(out.Latencies) != n {
		t.Errorf("latency samples = %d, want %d", len(out.Latencies), n)
	}
	if out.Speed == nil || *out.Speed <= 0 {
		t.Errorf("Speed = %v, want positive", out.Speed)
	}

	h := peer.hello.Load()
	if h == nil {
		t.Fatal("peer never received a handshake")
	}
	if h.NetworkVersion != 1206 || h.Generation != 1 || h.Agent != "guildwatch-test" {
		t.Errorf("unexpected handshake: %+v", h)
	}
	if h.ChainID.String() != testChainID {
		t.Errorf("chain id = %s", h.ChainID)
	}
	if h.HeadNum != 1000-n || h.LastIrreversibleBlockNum != 670-n {
		t.Errorf("head/lib = %d/%d, want %d/%d", h.HeadNum, h.LastIrreversibleBlockNum, 1000-n, 670-n)
	}
}

func TestRun_WatchdogTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	const n = 5
	peer := startPeer(t, func(conn net.Conn, req SyncRequest) {
		if err := sendBlocks(conn, req.Start, 2, 5*time.Millisecond); err != nil {
			return
		}
		time.Sleep(300 * time.Millisecond)
		sendBlocks(conn, req.Start+2, 3, 5*time.Millisecond)
		waitClosed(conn)
	})
	defer peer.stop()

	c := NewClient(testP2PConfig(n, 100*time.Millisecond), testChainID, &fakeChain{}, nil)
	out := c.Run(context.Background(), peer.addr(), NewBlockTransmission(n, nil))

	if out.Status != domain.P2PStatusError || out.Reason != domain.P2PReasonTimeout {
		t.Fatalf("status = %s reason = %s, want error/timeout", out.Status, out.Reason)
	}
	if out.BlockCount >= n {
		t.Errorf("BlockCount = %d, want < %d", out.BlockCount, n)
	}
}

func TestRun_GoAwayTerminatesImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)

	const n = 10
	peer := startPeer(t, func(conn net.Conn, req SyncRequest) {
		if err := sendBlocks(conn, req.Start, 2, 5*time.Millisecond); err != nil {
			return
		}
		WriteFrame(conn, MsgGoAway, GoAway{Reason: 3}.Encode())
		waitClosed(conn)
	})
	defer peer.stop()

	c := NewClient(testP2PConfig(n, 5*time.Second), testChainID, &fakeChain{}, nil)
	start := time.Now()
	out := c.Run(context.Background(), peer.addr(), NewBlockTransmission(n, nil))

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("go away took %s, expected immediate termination", elapsed)
	}
	if out.Status != domain.P2PStatusError || out.Reason != domain.P2PReasonGoAway {
		t.Fatalf("status = %s reason = %s, want error/go_away", out.Status, out.Reason)
	}
	if out.GoAwayCode == nil || *out.GoAwayCode != 3 {
		t.Errorf("GoAwayCode = %v, want 3", out.GoAwayCode)
	}
	if out.BlockCount != 2 {
		t.Errorf("BlockCount = %d, want 2", out.BlockCount)
	}
}

func TestRun_PeerDisconnectIsNetError(t *testing.T) {
	defer goleak.VerifyNone(t)

	peer := startPeer(t, func(conn net.Conn, req SyncRequest) {
		sendBlocks(conn, req.Start, 1, 0)
	})
	defer peer.stop()

	c := NewClient(testP2PConfig(5, 5*time.Second), testChainID, &fakeChain{}, nil)
	out := c.Run(context.Background(), peer.addr(), NewBlockTransmission(5, nil))

	if out.Status != domain.P2PStatusError || out.Reason != domain.P2PReasonNetError {
		t.Fatalf("status = %s reason = %s, want error/net_error", out.Status, out.Reason)
	}
}

func TestRun_SetupFailureNeverDials(t *testing.T) {
	defer goleak.VerifyNone(t)

	peer := startPeer(t, func(conn net.Conn, req SyncRequest) {})

	chain := &fakeChain{infoErr: errors.New("connection refused")}
	c := NewClient(testP2PConfig(5, time.Second), testChainID, chain, nil)
	out := c.Run(context.Background(), peer.addr(), NewBlockTransmission(5, nil))

	peer.stop()
	if out.Status != domain.P2PStatusError || out.Reason != domain.P2PReasonNetError {
		t.Fatalf("status = %s reason = %s, want error/net_error", out.Status, out.Reason)
	}
	if peer.accepted.Load() != 0 {
		t.Error("client dialed the peer despite setup failure")
	}
}

func TestRun_MalformedEndpoint(t *testing.T) {
	chain := &fakeChain{}
	c := NewClient(testP2PConfig(5, time.Second), testChainID, chain, nil)

	for _, ep := range []string{"", "tcp://peer.example.com:9876", "peer.example.com", "peer.example.com:http", ":9876"} {
		out := c.Run(context.Background(), ep, NewBlockTransmission(5, nil))
		if out.Status != domain.P2PStatusError || out.Error == "" {
			t.Errorf("endpoint %q: got %+v", ep, out)
		}
	}
	if chain.calls.Load() != 0 {
		t.Error("malformed endpoints must not trigger chain lookups")
	}
}

func TestParseEndpoint(t *testing.T) {
	host, port, err := ParseEndpoint(" peer.example.com:9876 ")
	if err != nil || host != "peer.example.com" || port != "9876" {
		t.Errorf("ParseEndpoint = %q, %q, %v", host, port, err)
	}
	if _, _, err := ParseEndpoint("[::1]:9876"); err != nil {
		t.Errorf("ipv6 endpoint rejected: %v", err)
	}
}

func TestOutcomeOK(t *testing.T) {
	out := &domain.P2POutcome{Status: domain.P2PStatusSuccess, Latencies: []int64{int64(100 * time.Millisecond), int64(100 * time.Millisecond)}}
	out.ComputeSpeed()
	if out.Speed == nil || *out.Speed < 9.99 || *out.Speed > 10.01 {
		t.Fatalf("Speed = %v, want 10", out.Speed)
	}
	if !out.OK(5) {
		t.Error("fast transmission judged not OK")
	}
	if out.OK(20) {
		t.Error("connected but slow judged OK")
	}

	empty := &domain.P2POutcome{Status: domain.P2PStatusSuccess}
	empty.ComputeSpeed()
	if empty.Speed != nil || empty.OK(0) {
		t.Error("no samples must leave speed undefined")
	}
}
