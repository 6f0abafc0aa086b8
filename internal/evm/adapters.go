package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vultisig/fluidpay/plugin/fluidpay"
)

// Tokens is a fluidpay.TokenService over ERC-20 contracts.
type Tokens struct {
	client *Client
}

var _ fluidpay.TokenService = (*Tokens)(nil)

func NewTokens(client *Client) *Tokens {
	return &Tokens{client: client}
}

func (t *Tokens) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	out, err := t.client.call(ctx, token, erc20, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return firstBigInt(out, "balanceOf")
}

func (t *Tokens) Transfer(ctx context.Context, token, to common.Address, amount *big.Int) error {
	_, err := t.client.transact(ctx, token, erc20, "transfer", to, amount)
	return err
}

func (t *Tokens) TransferFrom(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	_, err := t.client.transact(ctx, token, erc20, "transferFrom", from, to, amount)
	return err
}

func (t *Tokens) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) error {
	_, err := t.client.transact(ctx, token, erc20, "approve", spender, amount)
	return err
}

// Router is a fluidpay.SwapRouter over a Uniswap V2 compatible router.
type Router struct {
	client  *Client
	address common.Address
	tokens  *Tokens
}

var _ fluidpay.SwapRouter = (*Router)(nil)

func NewRouter(client *Client, address common.Address) *Router {
	return &Router{client: client, address: address, tokens: NewTokens(client)}
}

func (r *Router) GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	out, err := r.client.call(ctx, r.address, router, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errNoAmounts
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("getAmountsOut: unexpected result type %T", out[0])
	}
	return amounts, nil
}

// SwapExactTokensForTokens returns the output as the recipient's balance change,
// which is exact while the caller holds the custody lock.
func (r *Router) SwapExactTokensForTokens(ctx context.Context, amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline time.Time) (*big.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("swap path needs at least two tokens")
	}
	tokenOut := path[len(path)-1]
	before, err := r.tokens.BalanceOf(ctx, tokenOut, to)
	if err != nil {
		return nil, err
	}
	_, err = r.client.transact(ctx, r.address, router, "swapExactTokensForTokens",
		amountIn, amountOutMin, path, to, big.NewInt(deadline.Unix()))
	if err != nil {
		return nil, err
	}
	after, err := r.tokens.BalanceOf(ctx, tokenOut, to)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(after, before), nil
}

// Pool is a fluidpay.LendingPool over an Aave V3 pool.
type Pool struct {
	client  *Client
	address common.Address
}

var _ fluidpay.LendingPool = (*Pool)(nil)

func NewPool(client *Client, address common.Address) *Pool {
	return &Pool{client: client, address: address}
}

func (p *Pool) Deposit(ctx context.Context, asset common.Address, amount *big.Int, onBehalfOf common.Address) error {
	_, err := p.client.transact(ctx, p.address, pool, "supply", asset, amount, onBehalfOf, uint16(0))
	return err
}

func (p *Pool) Withdraw(ctx context.Context, asset common.Address, amount *big.Int, to common.Address) error {
	_, err := p.client.transact(ctx, p.address, pool, "withdraw", asset, amount, to)
	return err
}
