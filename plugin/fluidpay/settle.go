package fluidpay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// SettlementRequest is one swap-then-deposit call. A nil MinOut means no floor
// beyond the configured slippage tolerance.
type SettlementRequest struct {
	Token  common.Address
	Amount *big.Int
	MinOut *big.Int
}

// Receipt describes a completed settlement.
type Receipt struct {
	Caller      common.Address `json:"caller"`
	Token       common.Address `json:"token"`
	AmountIn    *big.Int       `json:"amount_in"`
	MinOut      *big.Int       `json:"min_out"`
	Floor       *big.Int       `json:"floor"`
	AmountOut   *big.Int       `json:"amount_out"`
	Fee         *big.Int       `json:"fee"`
	Deposited   *big.Int       `json:"deposited"`
	FeeTo       common.Address `json:"fee_to"`
	Beneficiary common.Address `json:"beneficiary"`
	Timestamp   time.Time      `json:"timestamp"`
}

func externalErr(op string, err error) error {
	if errors.Is(err, ErrSlippageExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrExternalCall, op, err)
}

// swapFloor quotes the router and returns max(minOut, quote less slippage
// tolerance, 1). A swap never settles for zero output.
func (m *Module) swapFloor(ctx context.Context, amount, minOut *big.Int, path []common.Address) (*big.Int, error) {
	amounts, err := m.router.GetAmountsOut(ctx, amount, path)
	if err != nil {
		return nil, externalErr("quote", err)
	}
	if len(amounts) != len(path) {
		return nil, fmt.Errorf("%w: quote: expected %d amounts, got %d", ErrExternalCall, len(path), len(amounts))
	}
	quote := amounts[len(amounts)-1]
	floor := bpsOf(quote, MaxBps-m.params.SlippageBps)
	if minOut.Cmp(floor) > 0 {
		floor = new(big.Int).Set(minOut)
	}
	if floor.Sign() <= 0 {
		floor = big.NewInt(1)
	}
	return floor, nil
}

// Settle pulls req.Amount of req.Token from caller, swaps it into the stablecoin,
// credits the fee to the owner and deposits the rest into the lending pool.
// Either every step completes or custody is returned to where it was.
func (m *Module) Settle(ctx context.Context, caller common.Address, req SettlementRequest) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero caller", ErrAuthorization)
	}
	if _, ok := m.accepted[req.Token]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnacceptedToken, req.Token.Hex())
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInsufficientAmount)
	}
	minOut := new(big.Int)
	if req.MinOut != nil {
		if req.MinOut.Sign() < 0 {
			return nil, fmt.Errorf("%w: min out must not be negative", ErrInsufficientAmount)
		}
		minOut.Set(req.MinOut)
	}

	p := m.params
	amount := new(big.Int).Set(req.Amount)
	path := []common.Address{req.Token, p.Stablecoin}
	logger := m.logger.WithFields(logrus.Fields{
		"caller": caller.Hex(),
		"token":  req.Token.Hex(),
		"amount": amount.String(),
	})

	floor, err := m.swapFloor(ctx, amount, minOut, path)
	if err != nil {
		return nil, err
	}

	var rb rollback

	if err := m.tokens.TransferFrom(ctx, req.Token, caller, m.custody, amount); err != nil {
		return nil, externalErr("pull input", err)
	}
	rb.push("return input", func(ctx context.Context) error {
		return m.tokens.Transfer(ctx, req.Token, caller, amount)
	})

	if err := m.tokens.Approve(ctx, req.Token, p.SwapRouter, amount); err != nil {
		return nil, rb.run(ctx, externalErr("approve router", err))
	}
	rb.push("revoke router allowance", func(ctx context.Context) error {
		return m.tokens.Approve(ctx, req.Token, p.SwapRouter, new(big.Int))
	})

	deadline := m.now().Add(m.deadline)
	out, err := m.router.SwapExactTokensForTokens(ctx, amount, floor, path, m.custody, deadline)
	if err != nil {
		return nil, rb.run(ctx, externalErr("swap", err))
	}
	// The input is gone once the swap lands, so the only way back is refunding the output.
	rb.replace("refund swap output", func(ctx context.Context) error {
		return m.tokens.Transfer(ctx, p.Stablecoin, caller, out)
	})
	if out.Cmp(floor) < 0 {
		return nil, rb.run(ctx, fmt.Errorf("%w: router returned %s, floor %s", ErrSlippageExceeded, out, floor))
	}

	fee := bpsOf(out, p.FeeBps)
	net := new(big.Int).Sub(out, fee)

	if net.Sign() > 0 {
		if err := m.tokens.Approve(ctx, p.Stablecoin, p.LendingPool, net); err != nil {
			return nil, rb.run(ctx, externalErr("approve pool", err))
		}
		rb.push("revoke pool allowance", func(ctx context.Context) error {
			return m.tokens.Approve(ctx, p.Stablecoin, p.LendingPool, new(big.Int))
		})
		if err := m.pool.Deposit(ctx, p.Stablecoin, net, m.custody); err != nil {
			return nil, rb.run(ctx, externalErr("deposit", err))
		}
		rb.push("withdraw deposit", func(ctx context.Context) error {
			return m.pool.Withdraw(ctx, p.Stablecoin, net, m.custody)
		})
	}

	if fee.Sign() > 0 {
		if err := m.tokens.Transfer(ctx, p.Stablecoin, p.Owner, fee); err != nil {
			return nil, rb.run(ctx, externalErr("credit fee", err))
		}
	}

	receipt := &Receipt{
		Caller:      caller,
		Token:       req.Token,
		AmountIn:    amount,
		MinOut:      minOut,
		Floor:       floor,
		AmountOut:   new(big.Int).Set(out),
		Fee:         fee,
		Deposited:   net,
		FeeTo:       p.Owner,
		Beneficiary: m.custody,
		Timestamp:   m.now(),
	}

	logger.WithFields(logrus.Fields{
		"amount_out": out.String(),
		"fee":        fee.String(),
		"deposited":  net.String(),
	}).Info("settlement completed")

	m.events.Publish(ctx, Event{
		Type:      EventSettled,
		Actor:     caller,
		Receipt:   receipt,
		Timestamp: receipt.Timestamp,
	})
	return receipt, nil
}
