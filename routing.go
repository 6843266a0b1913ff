package qkernel

import (
	"fmt"
	"sync"
)

/*
ForwardingTable maps a destination node to the next hop toward it. Nodes use
it for messages to destinations they have no direct channel to.
*/
type ForwardingTable struct {
	mu    sync.RWMutex
	rules map[string]string
}

// NewForwardingTable copies the initial rules, destination → next node.
func NewForwardingTable(rules map[string]string) *ForwardingTable {
	table := &ForwardingTable{rules: make(map[string]string, len(rules))}
	for dst, next := range rules {
		table.rules[dst] = next
	}
	return table
}

// AddRule adds a route. Existing destinations cannot be rerouted.
func (ft *ForwardingTable) AddRule(dst, next string) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	if current, ok := ft.rules[dst]; ok {
		return fmt.Errorf("%w: %s already routed via %s", ErrDuplicateRoute, dst, current)
	}
	ft.rules[dst] = next
	return nil
}

func (ft *ForwardingTable) NextHop(dst string) (string, bool) {
	ft.mu.RLock()
	defer ft.mu.RUnlock()

	next, ok := ft.rules[dst]
	return next, ok
}
