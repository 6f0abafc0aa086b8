package fluidpay_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/fluidpay/internal/sim"
	"github.com/vultisig/fluidpay/plugin/fluidpay"
)

var (
	ownerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	upkeepAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	callerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	custodyAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	usdcAddr    = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	wethAddr    = common.HexToAddress("0x4200000000000000000000000000000000000006")
	cbbtcAddr   = common.HexToAddress("0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf")
	poolAddr    = common.HexToAddress("0xA238Dd80C259a72e81d7e4664a9801593F98d1c5")
	routerAddr  = common.HexToAddress("0x1b81D678ffb9C0263b24A97847620C99d213eB14")
	otherAddr   = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func validParams() fluidpay.Params {
	return fluidpay.Params{
		Owner:          ownerAddr,
		Upkeep:         upkeepAddr,
		Stablecoin:     usdcAddr,
		LendingPool:    poolAddr,
		SwapRouter:     routerAddr,
		AcceptedTokens: []common.Address{wethAddr},
		FeeBps:         100,
		SlippageBps:    100,
	}
}

type harness struct {
	env    *sim.Env
	module *fluidpay.Module
	events *fluidpay.Recorder
}

func newHarness(t *testing.T, params fluidpay.Params) *harness {
	t.Helper()
	return newHarnessWithRouter(t, params, nil)
}

// newHarnessWithRouter lets a test replace the router the module drives; nil keeps the strict one.
func newHarnessWithRouter(t *testing.T, params fluidpay.Params, wrap func(*sim.Router) fluidpay.SwapRouter) *harness {
	t.Helper()
	env := sim.NewEnv(custodyAddr, routerAddr, poolAddr)
	env.Router.SetRate(wethAddr, 2_500_000, 1)
	env.Router.SetRate(cbbtcAddr, 90_000_000_000, 1)
	env.Router.SetClock(func() time.Time { return fixedNow })

	var router fluidpay.SwapRouter = env.Router
	if wrap != nil {
		router = wrap(env.Router)
	}
	events := fluidpay.NewRecorder()
	module, err := fluidpay.New(params, fluidpay.Deps{
		Tokens:  env.Chain,
		Router:  router,
		Pool:    env.Pool,
		Custody: custodyAddr,
		Events:  events,
		Now:     func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return &harness{env: env, module: module, events: events}
}

// fund gives account amount of token and approves the custody account to pull it.
func (h *harness) fund(token, account common.Address, amount int64) {
	h.env.Chain.Mint(token, account, big.NewInt(amount))
	h.env.Chain.ApproveFrom(token, account, custodyAddr, big.NewInt(amount))
}

func (h *harness) balance(token, account common.Address) int64 {
	return h.env.Chain.Balance(token, account).Int64()
}
