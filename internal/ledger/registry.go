package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// Registry is the arena owning every contract in a simulation. Agents and
// books hold contract IDs, not the contracts themselves, which breaks the
// otherwise cyclic ownership between a contract and its two counterparties
// while keeping O(1) lookup in both directions.
type Registry struct {
	contracts map[uuid.UUID]Contract
}

func NewRegistry() *Registry {
	return &Registry{
		contracts: make(map[uuid.UUID]Contract),
	}
}

// Add records a contract in the arena. Re-adding the same ID is an error:
// it would mean two live contracts share an identifier.
func (r *Registry) Add(c Contract) error {
	if _, ok := r.contracts[c.ID()]; ok {
		return fmt.Errorf("contract %s already registered", c.ID())
	}
	r.contracts[c.ID()] = c
	return nil
}

func (r *Registry) Get(id uuid.UUID) (Contract, bool) {
	c, ok := r.contracts[id]
	return c, ok
}

// Remove drops a contract from the arena, typically after full repayment,
// liquidation or redemption has driven its value to zero.
func (r *Registry) Remove(id uuid.UUID) {
	delete(r.contracts, id)
}

func (r *Registry) Len() int {
	return len(r.contracts)
}
