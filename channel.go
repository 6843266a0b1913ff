package qkernel

import "fmt"

/*
ClassicalChannel is a one-way link with a fixed delay. A transmitted message
is encoded to a frame immediately and decoded and handed to the receiver
exactly Delay later. Because the delay is fixed and the timeline keeps
scheduling order for equal timestamps, delivery is FIFO.
*/
type ClassicalChannel struct {
	Sender   *Node
	Receiver *Node
	Delay    SimTime
	sent     uint64
}

// Connect creates channels in both directions between a and b.
func Connect(a, b *Node, delay SimTime) {
	a.AddChannel(&ClassicalChannel{Sender: a, Receiver: b, Delay: delay})
	b.AddChannel(&ClassicalChannel{Sender: b, Receiver: a, Delay: delay})
}

// Transmit schedules delivery of msg on the receiving node.
func (ch *ClassicalChannel) Transmit(msg *Message) error {
	frame, err := EncodeMessage(msg)
	if err != nil {
		return err
	}

	ch.sent++
	sender := ch.Sender.Name()
	receiver := ch.Receiver

	return ch.Sender.timeline.After(ch.Delay, Process{
		Owner:      receiver.Name(),
		Activation: "receive",
		Fn: func() error {
			delivered, err := DecodeMessage(frame)
			if err != nil {
				return fmt.Errorf("channel %s -> %s: %w", sender, receiver.Name(), err)
			}
			return receiver.ReceiveMessage(sender, delivered)
		},
	})
}

// Sent returns the number of frames transmitted.
func (ch *ClassicalChannel) Sent() uint64 {
	return ch.sent
}
