package fluidpay

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// MaxBps is 100% expressed in basis points.
const MaxBps = 10_000

// Params is the full module configuration. The module only ever holds a validated copy.
type Params struct {
	Owner          common.Address   `json:"owner"`
	Upkeep         common.Address   `json:"upkeep"`
	Stablecoin     common.Address   `json:"usdc_address"`
	LendingPool    common.Address   `json:"usdc_aave_pool"`
	SwapRouter     common.Address   `json:"pancake_swap_router"`
	AcceptedTokens []common.Address `json:"accepted_tokens"`
	FeeBps         uint64           `json:"fee_bps"`
	SlippageBps    uint64           `json:"slippage_bps"`
	SweepThreshold *big.Int         `json:"sweep_threshold"`
}

// Validate checks every configuration invariant.
func (p Params) Validate() error {
	if p.Owner == (common.Address{}) {
		return fmt.Errorf("%w: owner must not be the zero address", ErrConfiguration)
	}
	if p.Upkeep == (common.Address{}) {
		return fmt.Errorf("%w: upkeep must not be the zero address", ErrConfiguration)
	}
	if p.Stablecoin == (common.Address{}) {
		return fmt.Errorf("%w: stablecoin must not be the zero address", ErrConfiguration)
	}
	if p.LendingPool == (common.Address{}) {
		return fmt.Errorf("%w: lending pool must not be the zero address", ErrConfiguration)
	}
	if p.SwapRouter == (common.Address{}) {
		return fmt.Errorf("%w: swap router must not be the zero address", ErrConfiguration)
	}
	if len(p.AcceptedTokens) == 0 {
		return fmt.Errorf("%w: accepted tokens must not be empty", ErrConfiguration)
	}
	seen := make(map[common.Address]struct{}, len(p.AcceptedTokens))
	for _, token := range p.AcceptedTokens {
		if token == (common.Address{}) {
			return fmt.Errorf("%w: accepted token must not be the zero address", ErrConfiguration)
		}
		if token == p.Stablecoin {
			return fmt.Errorf("%w: stablecoin %s cannot be an accepted input", ErrConfiguration, token.Hex())
		}
		if _, ok := seen[token]; ok {
			return fmt.Errorf("%w: duplicate accepted token %s", ErrConfiguration, token.Hex())
		}
		seen[token] = struct{}{}
	}
	if p.FeeBps > MaxBps {
		return fmt.Errorf("%w: fee %d bps exceeds %d", ErrConfiguration, p.FeeBps, MaxBps)
	}
	if p.SlippageBps > MaxBps {
		return fmt.Errorf("%w: slippage %d bps exceeds %d", ErrConfiguration, p.SlippageBps, MaxBps)
	}
	if p.SweepThreshold != nil && p.SweepThreshold.Sign() < 0 {
		return fmt.Errorf("%w: sweep threshold must not be negative", ErrConfiguration)
	}
	return nil
}

// Clone returns a deep copy with accepted tokens sorted by address.
func (p Params) Clone() Params {
	out := p
	out.AcceptedTokens = make([]common.Address, len(p.AcceptedTokens))
	copy(out.AcceptedTokens, p.AcceptedTokens)
	sortAddresses(out.AcceptedTokens)
	if p.SweepThreshold != nil {
		out.SweepThreshold = new(big.Int).Set(p.SweepThreshold)
	} else {
		out.SweepThreshold = new(big.Int)
	}
	return out
}

func sortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
}

// bpsOf returns amount * bps / 10000, rounded down.
func bpsOf(amount *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, big.NewInt(MaxBps))
}
