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

type SweepSwap struct {
	Token     common.Address `json:"token"`
	AmountIn  *big.Int       `json:"amount_in"`
	AmountOut *big.Int       `json:"amount_out"`
}

type SweepFailure struct {
	Token common.Address `json:"token"`
	Error string         `json:"error"`
}

// SweepResult reports what an upkeep sweep moved.
type SweepResult struct {
	Swaps     []SweepSwap    `json:"swaps"`
	Failures  []SweepFailure `json:"failures,omitempty"`
	Deposited *big.Int       `json:"deposited"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sweep converts idle accepted-token balances held in custody into the stablecoin
// and deposits the idle stablecoin balance into the lending pool. Balances below
// the sweep threshold are left alone. A failing token does not stop the others.
func (m *Module) Sweep(ctx context.Context, caller common.Address) (*SweepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.authorize(caller, RoleUpkeep, RoleOwner); err != nil {
		return nil, err
	}

	p := m.params
	result := &SweepResult{Deposited: new(big.Int)}
	var errs []error

	for _, token := range p.AcceptedTokens {
		out, in, err := m.sweepToken(ctx, p, token)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", token.Hex(), err))
			result.Failures = append(result.Failures, SweepFailure{Token: token, Error: err.Error()})
			continue
		}
		if out != nil {
			result.Swaps = append(result.Swaps, SweepSwap{Token: token, AmountIn: in, AmountOut: out})
		}
	}

	deposited, err := m.sweepStablecoin(ctx, p)
	if err != nil {
		errs = append(errs, fmt.Errorf("sweep stablecoin: %w", err))
		result.Failures = append(result.Failures, SweepFailure{Token: p.Stablecoin, Error: err.Error()})
	} else {
		result.Deposited = deposited
	}
	result.Timestamp = m.now()

	m.logger.WithFields(logrus.Fields{
		"caller":    caller.Hex(),
		"swaps":     len(result.Swaps),
		"failures":  len(result.Failures),
		"deposited": result.Deposited.String(),
	}).Info("upkeep sweep finished")

	m.events.Publish(ctx, Event{
		Type:      EventSwept,
		Actor:     caller,
		Sweep:     result,
		Timestamp: result.Timestamp,
	})
	return result, errors.Join(errs...)
}

func (m *Module) aboveThreshold(balance *big.Int, p Params) bool {
	return balance.Sign() > 0 && balance.Cmp(p.SweepThreshold) >= 0
}

// sweepToken swaps the idle custody balance of token. A nil output means nothing was due.
func (m *Module) sweepToken(ctx context.Context, p Params, token common.Address) (out, in *big.Int, err error) {
	balance, err := m.tokens.BalanceOf(ctx, token, m.custody)
	if err != nil {
		return nil, nil, externalErr("balance", err)
	}
	if !m.aboveThreshold(balance, p) {
		return nil, nil, nil
	}

	path := []common.Address{token, p.Stablecoin}
	floor, err := m.swapFloor(ctx, balance, new(big.Int), path)
	if err != nil {
		return nil, nil, err
	}

	var rb rollback
	if err := m.tokens.Approve(ctx, token, p.SwapRouter, balance); err != nil {
		return nil, nil, externalErr("approve router", err)
	}
	rb.push("revoke router allowance", func(ctx context.Context) error {
		return m.tokens.Approve(ctx, token, p.SwapRouter, new(big.Int))
	})
	out, err = m.router.SwapExactTokensForTokens(ctx, balance, floor, path, m.custody, m.now().Add(m.deadline))
	if err != nil {
		return nil, nil, rb.run(ctx, externalErr("swap", err))
	}
	return out, balance, nil
}

func (m *Module) sweepStablecoin(ctx context.Context, p Params) (*big.Int, error) {
	balance, err := m.tokens.BalanceOf(ctx, p.Stablecoin, m.custody)
	if err != nil {
		return nil, externalErr("balance", err)
	}
	if !m.aboveThreshold(balance, p) {
		return new(big.Int), nil
	}

	var rb rollback
	if err := m.tokens.Approve(ctx, p.Stablecoin, p.LendingPool, balance); err != nil {
		return nil, externalErr("approve pool", err)
	}
	rb.push("revoke pool allowance", func(ctx context.Context) error {
		return m.tokens.Approve(ctx, p.Stablecoin, p.LendingPool, new(big.Int))
	})
	if err := m.pool.Deposit(ctx, p.Stablecoin, balance, m.custody); err != nil {
		return nil, rb.run(ctx, externalErr("deposit", err))
	}
	return balance, nil
}
