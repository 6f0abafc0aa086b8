// Package sim is an in-memory stand-in for the token, router and lending-pool
// contracts. It backs the paper mode of the server and the tests.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type Op string

const (
	OpBalanceOf    Op = "balanceOf"
	OpTransfer     Op = "transfer"
	OpTransferFrom Op = "transferFrom"
	OpApprove      Op = "approve"
	OpQuote        Op = "getAmountsOut"
	OpSwap         Op = "swapExactTokensForTokens"
	OpDeposit      Op = "deposit"
	OpWithdraw     Op = "withdraw"
)

var (
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Chain is a ledger of ERC-20 balances and allowances. Its TokenService methods
// act as the custody account.
type Chain struct {
	mu         sync.Mutex
	custody    common.Address
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[common.Address]map[allowanceKey]*big.Int
	failures   map[Op][]error
	calls      []Op
}

func NewChain(custody common.Address) *Chain {
	return &Chain{
		custody:    custody,
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[allowanceKey]*big.Int),
		failures:   make(map[Op][]error),
	}
}

func (c *Chain) Custody() common.Address { return c.custody }

// FailNext queues err to be returned by the next call of op.
func (c *Chain) FailNext(op Op, err error) {
	c.mu.Lock()
	c.failures[op] = append(c.failures[op], err)
	c.mu.Unlock()
}

// Calls returns the operations invoked so far, in order.
func (c *Chain) Calls() []Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Op, len(c.calls))
	copy(out, c.calls)
	return out
}

// enter records op and pops an injected failure. Caller must hold c.mu.
func (c *Chain) enter(op Op) error {
	c.calls = append(c.calls, op)
	queue := c.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	c.failures[op] = queue[1:]
	return err
}

// Mint credits amount of token to account.
func (c *Chain) Mint(token, account common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credit(token, account, amount)
}

// Balance reads a balance without recording a call.
func (c *Chain) Balance(token, account common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance(token, account))
}

// Allowance reads an allowance without recording a call.
func (c *Chain) Allowance(token, owner, spender common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.allowance(token, owner, spender))
}

// ApproveFrom sets an allowance granted by owner, as if owner had sent approve itself.
func (c *Chain) ApproveFrom(token, owner, spender common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAllowance(token, owner, spender, amount)
}

func (c *Chain) BalanceOf(_ context.Context, token, account common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpBalanceOf); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.balance(token, account)), nil
}

func (c *Chain) Transfer(_ context.Context, token, to common.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpTransfer); err != nil {
		return err
	}
	return c.move(token, c.custody, to, amount)
}

func (c *Chain) TransferFrom(_ context.Context, token, from, to common.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpTransferFrom); err != nil {
		return err
	}
	return c.spend(token, from, c.custody, to, amount)
}

func (c *Chain) Approve(_ context.Context, token, spender common.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpApprove); err != nil {
		return err
	}
	c.setAllowance(token, c.custody, spender, amount)
	return nil
}

func (c *Chain) balance(token, account common.Address) *big.Int {
	if b, ok := c.balances[token][account]; ok {
		return b
	}
	return new(big.Int)
}

func (c *Chain) setBalance(token, account common.Address, amount *big.Int) {
	accounts, ok := c.balances[token]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		c.balances[token] = accounts
	}
	accounts[account] = amount
}

func (c *Chain) credit(token, account common.Address, amount *big.Int) {
	c.setBalance(token, account, new(big.Int).Add(c.balance(token, account), amount))
}

func (c *Chain) move(token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative amount %s", amount)
	}
	if c.balance(token, from).Cmp(amount) < 0 {
		return fmt.Errorf("%s from %s: %w", token.Hex(), from.Hex(), ErrInsufficientBalance)
	}
	c.setBalance(token, from, new(big.Int).Sub(c.balance(token, from), amount))
	c.credit(token, to, amount)
	return nil
}

// spend moves amount from owner to to against the allowance owner granted spender.
func (c *Chain) spend(token, owner, spender, to common.Address, amount *big.Int) error {
	allowed := c.allowance(token, owner, spender)
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%s by %s: %w", token.Hex(), spender.Hex(), ErrInsufficientAllowance)
	}
	if err := c.move(token, owner, to, amount); err != nil {
		return err
	}
	c.setAllowance(token, owner, spender, new(big.Int).Sub(allowed, amount))
	return nil
}

func (c *Chain) allowance(token, owner, spender common.Address) *big.Int {
	if a, ok := c.allowances[token][allowanceKey{owner, spender}]; ok {
		return a
	}
	return new(big.Int)
}

func (c *Chain) setAllowance(token, owner, spender common.Address, amount *big.Int) {
	byKey, ok := c.allowances[token]
	if !ok {
		byKey = make(map[allowanceKey]*big.Int)
		c.allowances[token] = byKey
	}
	byKey[allowanceKey{owner, spender}] = new(big.Int).Set(amount)
}
