package sim

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Faucet funds every account the first time custody pulls from it, and
// approves custody for the funded amount. Callers of a paper deployment have
// no wallet to approve from.
type Faucet struct {
	*Chain

	mu      sync.Mutex
	amounts map[common.Address]*big.Int
	seen    map[common.Address]struct{}
}

func NewFaucet(chain *Chain, amounts map[common.Address]*big.Int) *Faucet {
	return &Faucet{
		Chain:   chain,
		amounts: amounts,
		seen:    make(map[common.Address]struct{}),
	}
}

func (f *Faucet) TransferFrom(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	f.drip(from)
	return f.Chain.TransferFrom(ctx, token, from, to, amount)
}

func (f *Faucet) drip(account common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[account]; ok {
		return
	}
	f.seen[account] = struct{}{}
	for token, amount := range f.amounts {
		f.Chain.Mint(token, account, amount)
		f.Chain.ApproveFrom(token, account, f.Chain.Custody(), new(big.Int).Set(amount))
	}
}
