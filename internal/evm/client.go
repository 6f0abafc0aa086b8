// Package evm drives the ERC-20 tokens, swap router and lending pool on an
// EVM chain, signing as the custody account.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/fluidpay/plugin/fluidpay"
)

// Backend is what the adapters need from a node connection.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Client signs and mines custody transactions. Callers serialize access; the
// module lock does so for every settlement and sweep.
type Client struct {
	backend Backend
	key     *ecdsa.PrivateKey
	chainID *big.Int
	custody common.Address
	logger  *logrus.Entry
}

// Dial connects to rpcURL and loads the custody key from its hex encoding.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, chainID int64, logger *logrus.Logger) (*Client, error) {
	rpcClient, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("fail to dial rpc: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid custody private key: %w", err)
	}
	id := big.NewInt(chainID)
	if chainID == 0 {
		if id, err = rpcClient.ChainID(ctx); err != nil {
			return nil, fmt.Errorf("fail to read chain id: %w", err)
		}
	}
	return NewClient(rpcClient, key, id, logger), nil
}

func NewClient(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, logger *logrus.Logger) *Client {
	custody := crypto.PubkeyToAddress(key.PublicKey)
	return &Client{
		backend: backend,
		key:     key,
		chainID: chainID,
		custody: custody,
		logger:  logger.WithFields(logrus.Fields{"service": "evm", "custody": custody.Hex()}),
	}
}

func (c *Client) Custody() common.Address { return c.custody }

func (c *Client) contract(address common.Address, parsed abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(address, parsed, c.backend, c.backend, c.backend)
}

func (c *Client) call(ctx context.Context, address common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	var out []any
	opts := &bind.CallOpts{Context: ctx, From: c.custody}
	if err := c.contract(address, parsed).Call(opts, &out, method, args...); err != nil {
		return nil, mapRevert(method, err)
	}
	return out, nil
}

// transact sends method and waits until it is mined with a successful status.
func (c *Client) transact(ctx context.Context, address common.Address, parsed abi.ABI, method string, args ...any) (*types.Receipt, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("fail to create transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := c.contract(address, parsed).Transact(opts, method, args...)
	if err != nil {
		return nil, mapRevert(method, err)
	}
	logger := c.logger.WithFields(logrus.Fields{
		"method":   method,
		"contract": address.Hex(),
		"tx_hash":  tx.Hash().Hex(),
	})
	logger.Debug("transaction sent")

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("fail to wait for %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		err := c.revertReason(ctx, method, tx, receipt)
		logger.WithError(err).Warn("transaction reverted")
		return nil, err
	}
	logger.WithField("block", receipt.BlockNumber).Debug("transaction mined")
	return receipt, nil
}

// revertReason replays a reverted transaction at its block so the node reports
// the revert message, which a failed receipt does not carry.
func (c *Client) revertReason(ctx context.Context, method string, tx *types.Transaction, receipt *types.Receipt) error {
	reverted := fmt.Errorf("reverted in tx %s", tx.Hash().Hex())
	_, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From:  c.custody,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}, receipt.BlockNumber)
	if err == nil {
		return fmt.Errorf("%s: %w", method, reverted)
	}
	return mapRevert(method, fmt.Errorf("%w: %w", reverted, err))
}

// mapRevert marks router amountOutMin reverts as slippage.
func mapRevert(method string, err error) error {
	if strings.Contains(err.Error(), "INSUFFICIENT_OUTPUT_AMOUNT") {
		return fmt.Errorf("%s: %w: %w", method, fluidpay.ErrSlippageExceeded, err)
	}
	return fmt.Errorf("%s: %w", method, err)
}

func firstBigInt(out []any, method string) (*big.Int, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected result type %T", method, out[0])
	}
	return v, nil
}

var errNoAmounts = errors.New("getAmountsOut: empty result")
