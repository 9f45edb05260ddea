package p2p

import (
	"encoding/binary"
	"fmt"
)

const (
	publicKeySize = 33
	signatureSize = 65

	// timestamp(4) + producer(8) + confirmed(2)
	previousOffset = 14
)

// Handshake announces this prober as a non-relaying peer. Key, token and
// signature are always null.
type Handshake struct {
	NetworkVersion           uint16
	ChainID                  Checksum256
	NodeID                   Checksum256
	Time                     int64 // ns since epoch
	P2PAddress               string
	LastIrreversibleBlockNum uint32
	LastIrreversibleBlockID  Checksum256
	HeadNum                  uint32
	HeadID                   Checksum256
	OS                       string
	Agent                    string
	Generation               int16
}

// Encode serializes the handshake payload.
func (h *Handshake) Encode() []byte {
	var e Encoder
	e.PutUint16(h.NetworkVersion)
	e.PutChecksum256(h.ChainID)
	e.PutChecksum256(h.NodeID)
	e.PutUint8(0) // K1 public key
	e.PutZeros(publicKeySize)
	e.PutInt64(h.Time)
	e.PutZeros(32) // token
	e.PutUint8(0)  // K1 signature
	e.PutZeros(signatureSize)
	e.PutString(h.P2PAddress)
	e.PutUint32(h.LastIrreversibleBlockNum)
	e.PutChecksum256(h.LastIrreversibleBlockID)
	e.PutUint32(h.HeadNum)
	e.PutChecksum256(h.HeadID)
	e.PutString(h.OS)
	e.PutString(h.Agent)
	e.PutInt16(h.Generation)
	return e.Bytes()
}

// DecodeHandshake parses a handshake payload.
func DecodeHandshake(payload []byte) (*Handshake, error) {
	d := NewDecoder(payload)
	h := &Handshake{}
	var err error

	if h.NetworkVersion, err = d.Uint16(); err != nil {
		return nil, err
	}
	if h.ChainID, err = d.Checksum256(); err != nil {
		return nil, err
	}
	if h.NodeID, err = d.Checksum256(); err != nil {
		return nil, err
	}
	if err = d.Skip(1 + publicKeySize); err != nil {
		return nil, err
	}
	if h.Time, err = d.Int64(); err != nil {
		return nil, err
	}
	if err = d.Skip(32 + 1 + signatureSize); err != nil {
		return nil, err
	}
	if h.P2PAddress, err = d.ReadString(); err != nil {
		return nil, err
	}
	if h.LastIrreversibleBlockNum, err = d.Uint32(); err != nil {
		return nil, err
	}
	if h.LastIrreversibleBlockID, err = d.Checksum256(); err != nil {
		return nil, err
	}
	if h.HeadNum, err = d.Uint32(); err != nil {
		return nil, err
	}
	if h.HeadID, err = d.Checksum256(); err != nil {
		return nil, err
	}
	if h.OS, err = d.ReadString(); err != nil {
		return nil, err
	}
	if h.Agent, err = d.ReadString(); err != nil {
		return nil, err
	}
	if h.Generation, err = d.Int16(); err != nil {
		return nil, err
	}
	return h, nil
}

// SyncRequest asks the peer for blocks [Start, End].
type SyncRequest struct {
	Start uint32
	End   uint32
}

func (s SyncRequest) Encode() []byte {
	var e Encoder
	e.PutUint32(s.Start)
	e.PutUint32(s.End)
	return e.Bytes()
}

func DecodeSyncRequest(payload []byte) (SyncRequest, error) {
	d := NewDecoder(payload)
	start, err := d.Uint32()
	if err != nil {
		return SyncRequest{}, err
	}
	end, err := d.Uint32()
	if err != nil {
		return SyncRequest{}, err
	}
	return SyncRequest{Start: start, End: end}, nil
}

// GoAway is the peer's reason for closing the session.
type GoAway struct {
	Reason uint32
	NodeID Checksum256
}

var goAwayReasons = map[uint32]string{
	0:  "no reason",
	1:  "self connect",
	2:  "duplicate",
	3:  "wrong chain",
	4:  "wrong version",
	5:  "forked",
	6:  "unlinkable block",
	7:  "bad transaction",
	8:  "invalid block",
	9:  "benign other",
	10: "fatal other",
	11: "authentication",
}

// ReasonText returns a readable go away reason.
func (g GoAway) ReasonText() string {
	if s, ok := goAwayReasons[g.Reason]; ok {
		return s
	}
	return fmt.Sprintf("reason %d", g.Reason)
}

// Encode writes the reason as a 64-bit enum followed by the node id.
func (g GoAway) Encode() []byte {
	var e Encoder
	e.PutUint64(uint64(g.Reason))
	e.PutChecksum256(g.NodeID)
	return e.Bytes()
}

// DecodeGoAway reads the reason code from the low 32 bits of the enum.
func DecodeGoAway(payload []byte) (GoAway, error) {
	d := NewDecoder(payload)
	reason, err := d.Uint32()
	if err != nil {
		return GoAway{}, err
	}
	return GoAway{Reason: reason}, nil
}

// BlockNum extracts the block number of a signed block from its header's
// previous id: big-endian first four bytes plus one.
func BlockNum(payload []byte) (uint32, error) {
	if len(payload) < previousOffset+32 {
		return 0, fmt.Errorf("%w: signed block too short (%d bytes)", ErrProtocolDecode, len(payload))
	}
	prev := payload[previousOffset : previousOffset+4]
	return binary.BigEndian.Uint32(prev) + 1, nil
}
