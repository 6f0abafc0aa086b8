package fluidpay_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/fluidpay/internal/sim"
	"github.com/vultisig/fluidpay/plugin/fluidpay"
)

func settleReq(token common.Address, amount, minOut int64) fluidpay.SettlementRequest {
	return fluidpay.SettlementRequest{Token: token, Amount: big.NewInt(amount), MinOut: big.NewInt(minOut)}
}

func TestSettleSwapsAndDeposits(t *testing.T) {
	h := newHarness(t, validParams())
	h.fund(wethAddr, callerAddr, 1)

	receipt, err := h.module.Settle(context.Background(), callerAddr, settleReq(wethAddr, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, int64(2_500_000), receipt.AmountOut.Int64())
	assert.Equal(t, int64(25_000), receipt.Fee.Int64())
	assert.Equal(t, int64(2_475_000), receipt.Deposited.Int64())
	assert.Equal(t, ownerAddr, receipt.FeeTo)
	assert.Equal(t, custodyAddr, receipt.Beneficiary)
	assert.Equal(t, fixedNow, receipt.Timestamp)

	assert.Equal(t, int64(2_475_000), h.env.Pool.Deposited(usdcAddr, custodyAddr).Int64())
	assert.Equal(t, int64(25_000), h.balance(usdcAddr, ownerAddr))
	assert.Equal(t, int64(0), h.balance(wethAddr, callerAddr))
	assert.Equal(t, int64(0), h.balance(wethAddr, custodyAddr))
	assert.Equal(t, int64(0), h.balance(usdcAddr, custodyAddr))
	assert.Equal(t, int64(0), h.env.Chain.Allowance(wethAddr, custodyAddr, routerAddr).Int64())
	assert.Equal(t, int64(0), h.env.Chain.Allowance(usdcAddr, custodyAddr, poolAddr).Int64())

	events := h.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, fluidpay.EventSettled, events[0].Type)
	assert.Equal(t, receipt, events[0].Receipt)
}

func TestSettleSlippageRollsBack(t *testing.T) {
	h := newHarness(t, validParams())
	h.env.Router.SetRate(wethAddr, 2_400_000, 1)
	h.fund(wethAddr, callerAddr, 1)

	_, err := h.module.Settle(context.Background(), callerAddr, settleReq(wethAddr, 1, 2_500_000))
	require.Error(t, err)
	assert.ErrorIs(t, err, fluidpay.ErrSlippageExceeded)
	assert.NotErrorIs(t, err, fluidpay.ErrExternalCall)
	assert.Equal(t, fluidpay.CodeSlippageExceeded, fluidpay.ErrorCode(err))

	assert.Equal(t, int64(1), h.balance(wethAddr, callerAddr))
	assert.Equal(t, int64(0), h.balance(wethAddr, custodyAddr))
	assert.Equal(t, int64(0), h.env.Chain.Allowance(wethAddr, custodyAddr, routerAddr).Int64())
	assert.Equal(t, int64(0), h.env.Pool.Deposited(usdcAddr, custodyAddr).Int64())
	assert.Empty(t, h.events.Events())
}

func TestSettleSlippageToleranceFloor(t *testing.T) {
	h := newHarness(t, validParams())
	h.fund(wethAddr, callerAddr, 2)

	// Quote 2,500,000 less 1% tolerance gives a floor of 2,475,000.
	h.env.Router.SetSkew(wethAddr, big.NewInt(-20_000))
	receipt, err := h.module.Settle(context.Background(), callerAddr, settleReq(wethAddr, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2_475_000), receipt.Floor.Int64())
	assert.Equal(t, int64(2_480_000), receipt.AmountOut.Int64())

	h.env.Router.SetSkew(wethAddr, big.NewInt(-30_000))
	_, err = h.module.Settle(context.Background(), callerAddr, settleReq(wethAddr, 1, 0))
	assert.ErrorIs(t, err, fluidpay.ErrSlippageExceeded)
	assert.Equal(t, int64(1), h.balance(wethAddr, callerAddr))
}

func TestSettleDustOutputRollsBack(t *testing.T) {
	h := newHarness(t, validParams())
	h.env.Router.SetRate(wethAddr, 1, 1000)
	h.fund(wethAddr, callerAddr, 1)

	_, err := h.module.Settle(context.Background(), callerAddr, settleReq(wethAddr, 1, 0))
	assert.ErrorIs(t, err, fluidpay.ErrSlippageExceeded)

	assert.Equal(t, int64(1), h.balance(wethAddr, callerAddr))
	assert.Equal(t, int64(0), h.balance(wethAddr, custodyAddr))
	assert.Equal(t, int64(0), h.balance(usdcAddr, ownerAddr))
	assert.Equal(t, int64(0), h.env.Pool.Deposited(usdcAddr, custodyAddr).Int64())
	assert.Equal(t, int64(0), h.env.Chain.Allowance(wethAddr, custodyAddr, routerAddr).Int64())
	assert.Empty(t, h.events.Events())
}

func TestSettleUnderDeliveringRouterRefundsOutput(t *testing.T) {
	h := newHarnessWithRouter(t, validParams(), func(r *sim.Router) fluidpay.SwapRouter { return r.Lenient() })
	h.env.Router.SetSkew(wethAddr, big.NewInt(-200_000))
	h.fund(wethAddr, callerAddr, 1)

	_, err := h.module.Settle(context.Background(), callerAddr, settleReq(wethAddr, 1, 2_500_000))
	assert.ErrorIs(t, err, fluidpay.ErrSlippageExceeded)

	assert.Equal(t, int64(0), h.balance(wethAddr, custodyAddr))
	assert.Equal(t, int64(0), h.balance(usdcAddr, custodyAddr))
	assert.Equal(t, int64(2_300_000), h.balance(usdcAddr, callerAddr))
}

func TestSettleRejectsUnacceptedToken(t *testing.T) {
	h := newHarness(t, validParams())
	h.fund(cbbtcAddr, callerAddr, 5)

	for _, token := range []common.Address{cbbtcAddr, usdcAddr, {}} {
		_, err := h.module.Settle(context.Background(), callerAddr, settleReq(token, 5, 0))
		assert.ErrorIs(t, err, fluidpay.ErrUnacceptedToken)
	}
	assert.Equal(t, int64(5), h.balance(cbbtcAddr, callerAddr))
	assert.Empty(t, h.env.Chain.Calls())
}

func TestSettleRejectsNonPositiveAmount(t *testing.T) {
	h := newHarness(t, validParams())
	h.fund(wethAddr, callerAddr, 1)

	reqs := []fluidpay.SettlementRequest{
		{Token: wethAddr, Amount: big.NewInt(0)},
		{Token: wethAddr, Amount: big.NewInt(-1)},
		{Token: wethAddr},
		{Token: wethAddr, Amount: big.NewInt(1), MinOut: big.NewInt(-1)},
	}
	for _, req := range reqs {
		_, err := h.module.Settle(context.Background(), callerAddr, req)
		assert.ErrorIs(t, err, fluidpay.ErrInsufficientAmount)
	}
	assert.Empty(t, h.env.Chain.Calls(), "no external call before validation")
}

func TestSettleRejectsZeroCaller(t *testing.T) {
	h := newHarness(t, validParams())
	_, err := h.module.Settle(context.Background(), common.Address{}, settleReq(wethAddr, 1, 0))
	assert.ErrorIs(t, err, fluidpay.ErrAuthorization)
}

func TestSettleExternalFailures(t *testing.T) {
	boom := errors.New("execution reverted")

	tests := []struct {
		name       string
		op         sim.Op
		callerWETH int64
		callerUSDC int64
	}{
		{name: "quote", op: sim.OpQuote, callerWETH: 1},
		{name: "pull", op: sim.OpTransferFrom, callerWETH: 1},
		{name: "approve", op: sim.OpApprove, callerWETH: 1},
		{name: "swap", op: sim.OpSwap, callerWETH: 1},
		{name: "deposit", op: sim.OpDeposit, callerUSDC: 2_500_000},
		{name: "fee", op: sim.OpTransfer, callerUSDC: 2_500_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, validParams())
			h.fund(wethAddr, callerAddr, 1)
			h.env.Chain.FailNext(tt.op, boom)

			_, err := h.module.Settle(context.Background(), callerAddr, settleReq(wethAddr, 1, 0))
			require.Error(t, err)
			assert.ErrorIs(t, err, fluidpay.ErrExternalCall)
			assert.ErrorIs(t, err, boom, "root cause is preserved")
			assert.NotErrorIs(t, err, fluidpay.ErrRollbackFailed)

			assert.Equal(t, tt.callerWETH, h.balance(wethAddr, callerAddr))
			assert.Equal(t, tt.callerUSDC, h.balance(usdcAddr, callerAddr))
			assert.Equal(t, int64(0), h.balance(wethAddr, custodyAddr))
			assert.Equal(t, int64(0), h.balance(usdcAddr, custodyAddr))
			assert.Equal(t, int64(0), h.balance(usdcAddr, ownerAddr))
			assert.Equal(t, int64(0), h.env.Pool.Deposited(usdcAddr, custodyAddr).Int64())
			assert.Equal(t, int64(0), h.env.Chain.Allowance(wethAddr, custodyAddr, routerAddr).Int64())
			assert.Equal(t, int64(0), h.env.Chain.Allowance(usdcAddr, custodyAddr, poolAddr).Int64())
			assert.Empty(t, h.events.Events())
		})
	}
}

func TestSettleReportsFailedRollback(t *testing.T) {
	h := newHarness(t, validParams())
	h.fund(wethAddr, callerAddr, 1)
	h.env.Chain.FailNext(sim.OpSwap, errors.New("execution reverted"))
	h.env.Chain.FailNext(sim.OpTransfer, errors.New("nonce too low"))

	_, err := h.module.Settle(context.Background(), callerAddr, settleReq(wethAddr, 1, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, fluidpay.ErrExternalCall)
	assert.ErrorIs(t, err, fluidpay.ErrRollbackFailed)
	assert.Equal(t, fluidpay.CodeRollbackFailed, fluidpay.ErrorCode(err))
	assert.Equal(t, int64(1), h.balance(wethAddr, custodyAddr), "stranded input stays visible for reconciliation")
}

func TestSettleFullFee(t *testing.T) {
	p := validParams()
	p.FeeBps = fluidpay.MaxBps
	h := newHarness(t, p)
	h.fund(wethAddr, callerAddr, 1)

	receipt, err := h.module.Settle(context.Background(), callerAddr, settleReq(wethAddr, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(0), receipt.Deposited.Int64())
	assert.Equal(t, int64(2_500_000), h.balance(usdcAddr, ownerAddr))
	assert.NotContains(t, h.env.Chain.Calls(), sim.OpDeposit)
}

func TestSettleSerializesWithConfigChanges(t *testing.T) {
	h := newHarness(t, validParams())
	const callers = 8
	addrs := make([]common.Address, callers)
	for i := range addrs {
		addrs[i] = common.BigToAddress(big.NewInt(int64(0x1000 + i)))
		h.fund(wethAddr, addrs[i], 1)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	settled := 0
	for _, addr := range addrs {
		wg.Add(1)
		go func(addr common.Address) {
			defer wg.Done()
			_, err := h.module.Settle(context.Background(), addr, settleReq(wethAddr, 1, 0))
			if err == nil {
				mu.Lock()
				settled++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, fluidpay.ErrUnacceptedToken)
		}(addr)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, h.module.AddAcceptedToken(context.Background(), ownerAddr, cbbtcAddr))
		assert.NoError(t, h.module.RemoveAcceptedToken(context.Background(), ownerAddr, wethAddr))
	}()
	wg.Wait()

	assert.Equal(t, int64(settled)*2_475_000, h.env.Pool.Deposited(usdcAddr, custodyAddr).Int64())
	assert.Equal(t, int64(settled)*25_000, h.balance(usdcAddr, ownerAddr))
	assert.Equal(t, int64(0), h.balance(wethAddr, custodyAddr))
}
