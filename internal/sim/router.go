package sim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vultisig/fluidpay/plugin/fluidpay"
)

// Rate prices one smallest unit of an input token in smallest units of the output.
type Rate struct {
	Num *big.Int
	Den *big.Int
}

func (r Rate) apply(amount *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, r.Num)
	return out.Quo(out, r.Den)
}

// Router converts tokens at fixed rates, minting the output to the recipient.
type Router struct {
	chain   *Chain
	address common.Address
	now     func() time.Time

	mu    sync.Mutex
	rates map[common.Address]Rate
	// skew is added to the executed output but not to quotes, to model price movement.
	skew map[common.Address]*big.Int
}

func NewRouter(chain *Chain, address common.Address) *Router {
	return &Router{
		chain:   chain,
		address: address,
		now:     time.Now,
		rates:   make(map[common.Address]Rate),
		skew:    make(map[common.Address]*big.Int),
	}
}

// SetClock replaces the clock used to check swap deadlines.
func (r *Router) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// SetRate prices tokenIn at num/den units of output per unit of input.
func (r *Router) SetRate(tokenIn common.Address, num, den int64) {
	r.mu.Lock()
	r.rates[tokenIn] = Rate{Num: big.NewInt(num), Den: big.NewInt(den)}
	r.mu.Unlock()
}

// SetSkew shifts the executed output of tokenIn swaps by delta relative to the quote.
func (r *Router) SetSkew(tokenIn common.Address, delta *big.Int) {
	r.mu.Lock()
	r.skew[tokenIn] = new(big.Int).Set(delta)
	r.mu.Unlock()
}

func (r *Router) quote(amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	if len(path) != 2 {
		return nil, fmt.Errorf("unsupported path length %d", len(path))
	}
	rate, ok := r.rates[path[0]]
	if !ok {
		return nil, errors.New("INSUFFICIENT_LIQUIDITY")
	}
	return []*big.Int{new(big.Int).Set(amountIn), rate.apply(amountIn)}, nil
}

func (r *Router) GetAmountsOut(_ context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	r.chain.mu.Lock()
	err := r.chain.enter(OpQuote)
	r.chain.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quote(amountIn, path)
}

func (r *Router) SwapExactTokensForTokens(_ context.Context, amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline time.Time) (*big.Int, error) {
	r.mu.Lock()
	amounts, err := r.quote(amountIn, path)
	var skew *big.Int
	if err == nil {
		skew = r.skew[path[0]]
	}
	now := r.now()
	r.mu.Unlock()

	r.chain.mu.Lock()
	defer r.chain.mu.Unlock()
	if injected := r.chain.enter(OpSwap); injected != nil {
		return nil, injected
	}
	if err != nil {
		return nil, err
	}
	if now.After(deadline) {
		return nil, errors.New("EXPIRED")
	}
	out := amounts[1]
	if skew != nil {
		out = new(big.Int).Add(out, skew)
		if out.Sign() < 0 {
			out = new(big.Int)
		}
	}
	if out.Cmp(amountOutMin) < 0 {
		return nil, fmt.Errorf("INSUFFICIENT_OUTPUT_AMOUNT: %w", fluidpay.ErrSlippageExceeded)
	}
	if err := r.chain.spend(path[0], r.chain.custody, r.address, r.address, amountIn); err != nil {
		return nil, err
	}
	r.chain.credit(path[1], to, out)
	return out, nil
}

// Lenient returns a router that skips the amountOutMin check, modelling a
// router that under-delivers instead of reverting.
func (r *Router) Lenient() fluidpay.SwapRouter {
	return lenientRouter{r}
}

type lenientRouter struct{ *Router }

func (l lenientRouter) SwapExactTokensForTokens(ctx context.Context, amountIn, _ *big.Int, path []common.Address, to common.Address, deadline time.Time) (*big.Int, error) {
	return l.Router.SwapExactTokensForTokens(ctx, amountIn, new(big.Int), path, to, deadline)
}
