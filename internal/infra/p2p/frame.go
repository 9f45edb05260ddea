package p2p

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MessageType is the leading tag of a net message.
type MessageType uint8

const (
	MsgHandshake   MessageType = 0
	MsgChainSize   MessageType = 1
	MsgGoAway      MessageType = 2
	MsgTime        MessageType = 3
	MsgNotice      MessageType = 4
	MsgRequest     MessageType = 5
	MsgSyncRequest MessageType = 6
	MsgSignedBlock MessageType = 7
)

const maxFrameSize = 16 << 20

// Frame is one length-delimited net message.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// WriteFrame writes uint32 LE length, type byte and payload.
func WriteFrame(w io.Writer, t MessageType, payload []byte) error {
	buf := make([]byte, 0, 5+len(payload))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)+1))
	buf = append(buf, byte(t))
	buf = append(buf, payload...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame. Transport errors are returned as-is; a zero or
// oversize length is ErrProtocolDecode.
func ReadFrame(r io.Reader) (*Frame, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length == 0 || length > maxFrameSize {
		return nil, fmt.Errorf("%w: frame length %d", ErrProtocolDecode, length)
	}

	// ReadFull guarantees the whole frame or an error
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return &Frame{Type: MessageType(data[0]), Payload: data[1:]}, nil
}
