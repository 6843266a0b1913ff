package qkernel

import "fmt"

// EntangledMemory points at the remote half of an entangled pair.
type EntangledMemory struct {
	NodeID string
	MemoID string
}

/*
Memory is a quantum memory slot on a node. The kernel reads and writes its
fidelity; occupancy changes go through the ResourceManager.
*/
type Memory struct {
	Name      string
	Fidelity  float64
	Entangled *EntangledMemory
}

func NewMemory(name string) *Memory {
	return &Memory{Name: name}
}

// EntangleWith records the remote half and the pair's fidelity.
func (m *Memory) EntangleWith(nodeID, memoID string, fidelity float64) error {
	if fidelity < 0 || fidelity > 1 {
		return fmt.Errorf("%w: fidelity %v outside [0, 1]", ErrInvalidMemoryState, fidelity)
	}

	m.Entangled = &EntangledMemory{NodeID: nodeID, MemoID: memoID}
	m.Fidelity = fidelity
	return nil
}

// Reset returns the memory to its raw, unentangled condition.
func (m *Memory) Reset() {
	m.Fidelity = 0
	m.Entangled = nil
}

// RemoteNode returns the node holding the other half, or "".
func (m *Memory) RemoteNode() string {
	if m.Entangled == nil {
		return ""
	}
	return m.Entangled.NodeID
}

func (m *Memory) String() string {
	return fmt.Sprintf("Memory{%s, fidelity: %.4f, remote: %q}", m.Name, m.Fidelity, m.RemoteNode())
}
