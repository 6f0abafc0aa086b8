package main

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/fluidpay/config"
	"github.com/vultisig/fluidpay/internal/evm"
	"github.com/vultisig/fluidpay/internal/sim"
	"github.com/vultisig/fluidpay/plugin/fluidpay"
)

// simCustody holds paper funds when no custody key is configured.
var simCustody = common.HexToAddress("0x000000000000000000000000000000000000f1d0")

// chainDeps builds the token, router and pool collaborators for the configured mode.
func chainDeps(ctx context.Context, cfg *config.Config, params fluidpay.Params, logger *logrus.Logger) (fluidpay.Deps, error) {
	deadline := time.Duration(cfg.Eth.Deadline) * time.Second
	switch cfg.Server.Mode {
	case config.ModeSim:
		return simDeps(cfg, params, deadline, logger)
	default:
		client, err := evm.Dial(ctx, cfg.Eth.Rpc, cfg.Eth.PrivateKey, cfg.Eth.ChainID, logger)
		if err != nil {
			return fluidpay.Deps{}, fmt.Errorf("fail to dial rpc: %w", err)
		}
		return fluidpay.Deps{
			Tokens:       evm.NewTokens(client),
			Router:       evm.NewRouter(client, params.SwapRouter),
			Pool:         evm.NewPool(client, params.LendingPool),
			Custody:      client.Custody(),
			Logger:       logger,
			SwapDeadline: deadline,
		}, nil
	}
}

func simDeps(cfg *config.Config, params fluidpay.Params, deadline time.Duration, logger *logrus.Logger) (fluidpay.Deps, error) {
	custody := simCustody
	if cfg.Eth.PrivateKey != "" {
		key, err := crypto.HexToECDSA(trimHexPrefix(cfg.Eth.PrivateKey))
		if err != nil {
			return fluidpay.Deps{}, fmt.Errorf("invalid custody key: %w", err)
		}
		custody = crypto.PubkeyToAddress(key.PublicKey)
	}

	env := sim.NewEnv(custody, params.SwapRouter, params.LendingPool)
	for raw, rate := range cfg.Sim.Rates {
		if !common.IsHexAddress(raw) {
			return fluidpay.Deps{}, fmt.Errorf("invalid sim rate token %q", raw)
		}
		env.Router.SetRate(common.HexToAddress(raw), rate, 1)
	}
	faucet := make(map[common.Address]*big.Int, len(cfg.Sim.Faucet))
	for raw, amount := range cfg.Sim.Faucet {
		if !common.IsHexAddress(raw) {
			return fluidpay.Deps{}, fmt.Errorf("invalid sim faucet token %q", raw)
		}
		faucet[common.HexToAddress(raw)] = big.NewInt(amount)
	}
	logger.WithField("custody", custody.Hex()).Warn("running against the in-memory chain")

	return fluidpay.Deps{
		Tokens:       sim.NewFaucet(env.Chain, faucet),
		Router:       env.Router,
		Pool:         env.Pool,
		Custody:      custody,
		Logger:       logger,
		SwapDeadline: deadline,
	}, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
