package fluidpay

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenService moves fungible tokens. Transfer and Approve act on behalf of the
// custody account; TransferFrom spends an allowance granted to the custody account.
type TokenService interface {
	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)
	Transfer(ctx context.Context, token, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, token, from, to common.Address, amount *big.Int) error
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) error
}

// SwapRouter is a Uniswap V2 style router. SwapExactTokensForTokens must fail
// with an error wrapping ErrSlippageExceeded when amountOutMin cannot be met.
type SwapRouter interface {
	GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error)
	SwapExactTokensForTokens(ctx context.Context, amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline time.Time) (*big.Int, error)
}

// LendingPool is an Aave style pool crediting interest-bearing receipts to onBehalfOf.
type LendingPool interface {
	Deposit(ctx context.Context, asset common.Address, amount *big.Int, onBehalfOf common.Address) error
	Withdraw(ctx context.Context, asset common.Address, amount *big.Int, to common.Address) error
}
