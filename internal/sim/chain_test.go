package sim

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/fluidpay/plugin/fluidpay"
)

var (
	custody = common.HexToAddress("0xc1")
	alice   = common.HexToAddress("0xa1")
	tokenA  = common.HexToAddress("0x0a")
	usdc    = common.HexToAddress("0x0b")
	router  = common.HexToAddress("0x0d")
	pool    = common.HexToAddress("0x0c")
)

func TestTransferFromNeedsAllowance(t *testing.T) {
	ctx := context.Background()
	c := NewChain(custody)
	c.Mint(tokenA, alice, big.NewInt(10))

	err := c.TransferFrom(ctx, tokenA, alice, custody, big.NewInt(5))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	c.ApproveFrom(tokenA, alice, custody, big.NewInt(5))
	require.NoError(t, c.TransferFrom(ctx, tokenA, alice, custody, big.NewInt(5)))
	assert.Equal(t, int64(5), c.Balance(tokenA, alice).Int64())
	assert.Equal(t, int64(5), c.Balance(tokenA, custody).Int64())
	assert.Equal(t, int64(0), c.Allowance(tokenA, alice, custody).Int64())
}

func TestTransferNeedsBalance(t *testing.T) {
	c := NewChain(custody)
	err := c.Transfer(context.Background(), tokenA, alice, big.NewInt(1))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestFailNextIsOneShot(t *testing.T) {
	ctx := context.Background()
	c := NewChain(custody)
	boom := errors.New("boom")
	c.FailNext(OpApprove, boom)

	assert.ErrorIs(t, c.Approve(ctx, tokenA, router, big.NewInt(1)), boom)
	assert.NoError(t, c.Approve(ctx, tokenA, router, big.NewInt(1)))
	assert.Equal(t, []Op{OpApprove, OpApprove}, c.Calls())
}

func TestRouterSwap(t *testing.T) {
	ctx := context.Background()
	env := NewEnv(custody, router, pool)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env.Router.SetClock(func() time.Time { return now })
	env.Router.SetRate(tokenA, 3, 2)
	env.Chain.Mint(tokenA, custody, big.NewInt(10))
	path := []common.Address{tokenA, usdc}

	amounts, err := env.Router.GetAmountsOut(ctx, big.NewInt(10), path)
	require.NoError(t, err)
	assert.Equal(t, int64(15), amounts[1].Int64())

	_, err = env.Router.SwapExactTokensForTokens(ctx, big.NewInt(10), big.NewInt(0), path, custody, now.Add(time.Minute))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, env.Chain.Approve(ctx, tokenA, router, big.NewInt(10)))
	_, err = env.Router.SwapExactTokensForTokens(ctx, big.NewInt(10), big.NewInt(16), path, custody, now.Add(time.Minute))
	assert.ErrorIs(t, err, fluidpay.ErrSlippageExceeded)

	_, err = env.Router.SwapExactTokensForTokens(ctx, big.NewInt(10), big.NewInt(0), path, custody, now.Add(-time.Second))
	assert.EqualError(t, err, "EXPIRED")

	out, err := env.Router.SwapExactTokensForTokens(ctx, big.NewInt(10), big.NewInt(15), path, custody, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(15), out.Int64())
	assert.Equal(t, int64(0), env.Chain.Balance(tokenA, custody).Int64())
	assert.Equal(t, int64(15), env.Chain.Balance(usdc, custody).Int64())

	_, err = env.Router.GetAmountsOut(ctx, big.NewInt(1), []common.Address{usdc, tokenA})
	assert.Error(t, err)
}

func TestPoolDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	env := NewEnv(custody, router, pool)
	env.Chain.Mint(usdc, custody, big.NewInt(100))

	assert.ErrorIs(t, env.Pool.Deposit(ctx, usdc, big.NewInt(60), custody), ErrInsufficientAllowance)

	require.NoError(t, env.Chain.Approve(ctx, usdc, pool, big.NewInt(60)))
	require.NoError(t, env.Pool.Deposit(ctx, usdc, big.NewInt(60), custody))
	assert.Equal(t, int64(60), env.Pool.Deposited(usdc, custody).Int64())
	assert.Equal(t, int64(40), env.Chain.Balance(usdc, custody).Int64())

	assert.Error(t, env.Pool.Withdraw(ctx, usdc, big.NewInt(61), custody))
	require.NoError(t, env.Pool.Withdraw(ctx, usdc, big.NewInt(60), alice))
	assert.Equal(t, int64(0), env.Pool.Deposited(usdc, custody).Int64())
	assert.Equal(t, int64(60), env.Chain.Balance(usdc, alice).Int64())
}
