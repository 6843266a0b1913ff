package qkernel

import (
	"fmt"

	"github.com/theapemachine/errnie"
)

/*
Node is one network site: it owns classical channels to its neighbours, the
protocol instances running on it, and the resource manager for its memories.
*/
type Node struct {
	name      string
	timeline  *Timeline
	channels  map[string]*ClassicalChannel
	protocols map[string]Protocol
	resources *MemoryManager
	routes    *ForwardingTable
}

func NewNode(name string, timeline *Timeline) *Node {
	return &Node{
		name:      name,
		timeline:  timeline,
		channels:  make(map[string]*ClassicalChannel),
		protocols: make(map[string]Protocol),
		resources: NewMemoryManager(timeline),
		routes:    NewForwardingTable(nil),
	}
}

func (n *Node) Name() string { return n.name }

func (n *Node) Timeline() *Timeline { return n.timeline }

func (n *Node) ResourceManager() *MemoryManager { return n.resources }

func (n *Node) Routes() *ForwardingTable { return n.routes }

// AddChannel registers an outbound channel keyed by its receiver.
func (n *Node) AddChannel(ch *ClassicalChannel) {
	n.channels[ch.Receiver.Name()] = ch
}

// Delay returns the one-way delay of the direct channel to dst.
func (n *Node) Delay(dst string) (SimTime, error) {
	ch, ok := n.channels[dst]
	if !ok {
		return 0, fmt.Errorf("%w: %s -> %s", ErrNoChannel, n.name, dst)
	}
	return ch.Delay, nil
}

// Register makes a protocol reachable by messages addressed to its name.
func (n *Node) Register(p Protocol) {
	n.protocols[p.Name()] = p
}

// Unregister removes a protocol and calls its Release hook.
func (n *Node) Unregister(name string) {
	if p, ok := n.protocols[name]; ok {
		delete(n.protocols, name)
		p.Release()
	}
}

// Protocol looks up a registered protocol by name.
func (n *Node) Protocol(name string) (Protocol, bool) {
	p, ok := n.protocols[name]
	return p, ok
}

/*
SendMessage hands msg to the channel toward dst: the direct channel when one
exists, otherwise the channel to the forwarding table's next hop.
*/
func (n *Node) SendMessage(dst string, msg *Message) error {
	if msg.Src == "" {
		msg.Src = n.name
	}
	msg.Dst = dst

	hop := dst
	if _, ok := n.channels[hop]; !ok {
		next, routed := n.routes.NextHop(dst)
		if !routed {
			return fmt.Errorf("%w: %s -> %s", ErrNoRoute, n.name, dst)
		}
		hop = next
	}

	ch, ok := n.channels[hop]
	if !ok {
		return fmt.Errorf("%w: %s -> %s (next hop for %s)", ErrNoChannel, n.name, hop, dst)
	}

	return ch.Transmit(msg)
}

/*
ReceiveMessage is the node's inbound entry point. Messages for other nodes are
forwarded; the rest go to the protocol named by msg.Receiver, with the
originating node as the sender.
*/
func (n *Node) ReceiveMessage(src string, msg *Message) error {
	if msg.Dst != "" && msg.Dst != n.name {
		errnie.Info("Node %s - forwarding %s from %s", n.name, msg, src)
		return n.SendMessage(msg.Dst, msg)
	}

	p, ok := n.protocols[msg.Receiver]
	if !ok {
		return fmt.Errorf("%w: %s on node %s", ErrUnknownProtocol, msg.Receiver, n.name)
	}

	sender := msg.Src
	if sender == "" {
		sender = src
	}
	return p.ReceivedMessage(sender, msg)
}
