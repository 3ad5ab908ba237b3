package collab

import (
	"context"
	"sync"

	"sealed-batch-dex/internal/storage"
)

// MemLedger is an in-memory AssetLedger tracking trader balances and
// engine escrow. Used by tests and the simulation driver.
type MemLedger struct {
	mu       sync.Mutex
	balances map[string]map[string]uint64 // trader -> asset -> amount
	escrow   map[string]uint64            // asset -> amount held by the engine
}

// NewMemLedger creates an empty in-memory ledger.
func NewMemLedger() *MemLedger {
	return &MemLedger{
		balances: make(map[string]map[string]uint64),
		escrow:   make(map[string]uint64),
	}
}

// Compile-time interface check.
var _ AssetLedger = (*MemLedger)(nil)

// Fund credits a trader balance outside any transfer flow.
func (l *MemLedger) Fund(trader, asset string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(trader, asset, amount)
}

// Balance returns a trader's balance of an asset.
func (l *MemLedger) Balance(trader, asset string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[trader][asset]
}

// Escrow returns the engine's escrowed amount of an asset.
func (l *MemLedger) Escrow(asset string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.escrow[asset]
}

// TransferIn moves amount of asset from the trader into engine escrow.
func (l *MemLedger) TransferIn(_ context.Context, trader, asset string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	have := l.balances[trader][asset]
	if have < amount {
		return ErrInsufficientFunds
	}
	l.balances[trader][asset] = have - amount
	l.escrow[asset] += amount
	return nil
}

// TransferOut moves amount of asset from engine escrow to the trader.
func (l *MemLedger) TransferOut(_ context.Context, trader, asset string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.escrow[asset] < amount {
		return ErrInsufficientFunds
	}
	l.escrow[asset] -= amount
	l.credit(trader, asset, amount)
	return nil
}

func (l *MemLedger) credit(trader, asset string, amount uint64) {
	if l.balances[trader] == nil {
		l.balances[trader] = make(map[string]uint64)
	}
	l.balances[trader][asset] += amount
}

// MemTreasury is an in-memory Treasury recording received amounts.
type MemTreasury struct {
	mu       sync.Mutex
	received map[string]uint64 // asset -> total
	byMemo   map[string]uint64 // memo -> total
}

// NewMemTreasury creates an empty in-memory treasury.
func NewMemTreasury() *MemTreasury {
	return &MemTreasury{
		received: make(map[string]uint64),
		byMemo:   make(map[string]uint64),
	}
}

// Compile-time interface check.
var _ Treasury = (*MemTreasury)(nil)

// Deposit credits amount of asset to the treasury.
func (t *MemTreasury) Deposit(_ context.Context, asset string, amount uint64, memo string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.received[asset] += amount
	t.byMemo[memo] += amount
	return nil
}

// Received returns the total received of an asset.
func (t *MemTreasury) Received(asset string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.received[asset]
}

// ReceivedByMemo returns the total received under a memo.
func (t *MemTreasury) ReceivedByMemo(memo string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byMemo[memo]
}

// FixedOracle is an Oracle serving static per-pool reference prices.
type FixedOracle struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewFixedOracle creates an oracle with the given pool prices.
func NewFixedOracle(prices map[string]float64) *FixedOracle {
	if prices == nil {
		prices = make(map[string]float64)
	}
	return &FixedOracle{prices: prices}
}

// Compile-time interface check.
var _ Oracle = (*FixedOracle)(nil)

// SetPrice updates a pool's reference price.
func (o *FixedOracle) SetPrice(poolID string, price float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[poolID] = price
}

// TWAP returns the pool's reference price, 0 when unknown.
func (o *FixedOracle) TWAP(_ context.Context, poolID string) (float64, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.prices[poolID], nil
}

// StoreAuthorizer answers depositor checks from the commitment store.
type StoreAuthorizer struct {
	commitments storage.CommitmentStore
}

// NewStoreAuthorizer creates an Authorizer backed by commitment records.
func NewStoreAuthorizer(commitments storage.CommitmentStore) *StoreAuthorizer {
	return &StoreAuthorizer{commitments: commitments}
}

// Compile-time interface check.
var _ Authorizer = (*StoreAuthorizer)(nil)

// IsDepositor reports whether caller is the recorded depositor of the
// commitment.
func (a *StoreAuthorizer) IsDepositor(ctx context.Context, commitID, caller string) (bool, error) {
	c, err := a.commitments.GetByID(ctx, commitID)
	if err != nil {
		return false, err
	}
	return c.Depositor == caller, nil
}
