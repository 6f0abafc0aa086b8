package sim

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool holds deposited assets and tracks receipts per beneficiary.
type Pool struct {
	chain    *Chain
	address  common.Address
	receipts map[common.Address]map[common.Address]*big.Int // asset -> beneficiary -> amount
}

func NewPool(chain *Chain, address common.Address) *Pool {
	return &Pool{
		chain:    chain,
		address:  address,
		receipts: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Deposited returns the receipt balance of beneficiary for asset.
func (p *Pool) Deposited(asset, beneficiary common.Address) *big.Int {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()
	return new(big.Int).Set(p.receipt(asset, beneficiary))
}

func (p *Pool) receipt(asset, beneficiary common.Address) *big.Int {
	if r, ok := p.receipts[asset][beneficiary]; ok {
		return r
	}
	return new(big.Int)
}

func (p *Pool) setReceipt(asset, beneficiary common.Address, amount *big.Int) {
	byOwner, ok := p.receipts[asset]
	if !ok {
		byOwner = make(map[common.Address]*big.Int)
		p.receipts[asset] = byOwner
	}
	byOwner[beneficiary] = amount
}

func (p *Pool) Deposit(_ context.Context, asset common.Address, amount *big.Int, onBehalfOf common.Address) error {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()
	if err := p.chain.enter(OpDeposit); err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return errors.New("INVALID_AMOUNT")
	}
	if err := p.chain.spend(asset, p.chain.custody, p.address, p.address, amount); err != nil {
		return err
	}
	p.setReceipt(asset, onBehalfOf, new(big.Int).Add(p.receipt(asset, onBehalfOf), amount))
	return nil
}

// Withdraw burns the custody account's receipts and sends the asset to to.
func (p *Pool) Withdraw(_ context.Context, asset common.Address, amount *big.Int, to common.Address) error {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()
	if err := p.chain.enter(OpWithdraw); err != nil {
		return err
	}
	held := p.receipt(asset, p.chain.custody)
	if held.Cmp(amount) < 0 {
		return errors.New("NOT_ENOUGH_AVAILABLE_USER_BALANCE")
	}
	if err := p.chain.move(asset, p.address, to, amount); err != nil {
		return err
	}
	p.setReceipt(asset, p.chain.custody, new(big.Int).Sub(held, amount))
	return nil
}
