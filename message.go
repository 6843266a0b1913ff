package qkernel

import "fmt"

// MessageType names the kind of classical message a protocol sends.
type MessageType string

const (
	// PurificationResult announces that a BBPSSW instance has decided.
	PurificationResult MessageType = "PURIFICATION_RES"
)

/*
Message is a classical message between protocol instances on different
nodes. Receiver is the name of the protocol instance that consumes it; Src
and Dst are node names filled in by the sending node.
*/
type Message struct {
	Type     MessageType `cbor:"1,keyasint"`
	Receiver string      `cbor:"2,keyasint"`
	Src      string      `cbor:"3,keyasint"`
	Dst      string      `cbor:"4,keyasint"`
	Payload  []byte      `cbor:"5,keyasint,omitempty"`
}

// NewPurificationMessage builds a BBPSSW message. Only PURIFICATION_RES exists.
func NewPurificationMessage(msgType MessageType, receiver string) (*Message, error) {
	if msgType != PurificationResult {
		return nil, fmt.Errorf("%w: BBPSSW cannot send %q", ErrUnknownMessageType, msgType)
	}

	return &Message{
		Type:     msgType,
		Receiver: receiver,
	}, nil
}

func (m *Message) String() string {
	return fmt.Sprintf("%s(%s -> %s:%s)", m.Type, m.Src, m.Dst, m.Receiver)
}
