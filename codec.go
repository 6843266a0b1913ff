package qkernel

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding, so the same message always
// produces the same frame.
var encMode cbor.EncMode

// decMode rejects unknown fields; both ends of a channel run the same code.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("qkernel: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("qkernel: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeMessage turns a message into a channel frame.
func EncodeMessage(msg *Message) ([]byte, error) {
	frame, err := encMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return frame, nil
}

// DecodeMessage parses a channel frame.
func DecodeMessage(frame []byte) (*Message, error) {
	var msg Message
	if err := decMode.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &msg, nil
}
