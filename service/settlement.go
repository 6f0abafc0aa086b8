package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/fluidpay/common"
	"github.com/vultisig/fluidpay/internal/types"
	"github.com/vultisig/fluidpay/plugin/fluidpay"
	"github.com/vultisig/fluidpay/storage"
)

const (
	claimTTL        = 24 * time.Hour
	defaultPageSize = 20
	maxPageSize     = 100
	// DefaultStablecoinDecimals matches USDC.
	DefaultStablecoinDecimals = 6
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrRequestInProgress = errors.New("request is already in progress")
)

type Settlement interface {
	Settle(ctx context.Context, caller ecommon.Address, req types.SettleRequest) (*types.SettlementView, error)
	Sweep(ctx context.Context, caller ecommon.Address) (*fluidpay.SweepResult, error)
	Get(ctx context.Context, id uuid.UUID) (*types.SettlementView, error)
	History(ctx context.Context, caller string, sort string, take, skip int) ([]types.SettlementView, error)
	ConfigEvents(ctx context.Context, take int) ([]types.ConfigEvent, error)
	Describe() types.ModuleResponse
	IsAccepted(token ecommon.Address) bool

	SetOwner(ctx context.Context, caller, owner ecommon.Address) error
	SetUpkeep(ctx context.Context, caller, upkeep ecommon.Address) error
	AddToken(ctx context.Context, caller, token ecommon.Address) error
	RemoveToken(ctx context.Context, caller, token ecommon.Address) error
	SetFee(ctx context.Context, caller ecommon.Address, bps uint64) error
	SetSlippage(ctx context.Context, caller ecommon.Address, bps uint64) error
	SetSweepThreshold(ctx context.Context, caller ecommon.Address, threshold *big.Int) error
}

var _ Settlement = (*SettlementService)(nil)

type SettlementService struct {
	module   *fluidpay.Module
	db       storage.DatabaseStorage
	claims   storage.Claimer
	archive  storage.Archiver
	sdClient statsd.ClientInterface
	logger   *logrus.Entry
	now      func() time.Time
	decimals int32
}

// NewSettlementService wires the module to history storage. archive may be nil.
func NewSettlementService(
	module *fluidpay.Module,
	db storage.DatabaseStorage,
	claims storage.Claimer,
	archive storage.Archiver,
	sdClient statsd.ClientInterface,
	logger *logrus.Logger,
) (*SettlementService, error) {
	if module == nil {
		return nil, fmt.Errorf("module cannot be nil")
	}
	if db == nil {
		return nil, fmt.Errorf("database storage cannot be nil")
	}
	if claims == nil {
		return nil, fmt.Errorf("claimer cannot be nil")
	}
	if sdClient == nil {
		sdClient = &statsd.NoOpClient{}
	}
	return &SettlementService{
		module:   module,
		db:       db,
		claims:   claims,
		archive:  archive,
		sdClient: sdClient,
		logger:   logger.WithField("service", "settlement"),
		now:      time.Now,
		decimals: DefaultStablecoinDecimals,
	}, nil
}

func (s *SettlementService) incCounter(name string, tags []string) {
	if err := s.sdClient.Count(name, 1, tags, 1); err != nil {
		s.logger.Errorf("fail to count metric, err: %v", err)
	}
}

func (s *SettlementService) measureTime(name string, start time.Time, tags []string) {
	if err := s.sdClient.Timing(name, time.Since(start), tags, 1); err != nil {
		s.logger.Errorf("fail to measure time metric, err: %v", err)
	}
}

// Settle runs one settlement and records its outcome. A request id that was
// already used returns the stored record instead of settling twice.
func (s *SettlementService) Settle(ctx context.Context, caller ecommon.Address, req types.SettleRequest) (*types.SettlementView, error) {
	defer s.measureTime("settlement.settle.latency", time.Now(), nil)

	token, err := common.ParseAddress(req.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	amount, err := common.ParseAmount(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	minOut, err := common.ParseAmount(req.MinOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	claimKey := "settle:" + req.RequestID
	claimed, err := s.claims.Claim(ctx, claimKey, claimTTL)
	if err != nil {
		return nil, fmt.Errorf("fail to claim request: %w", err)
	}
	if !claimed {
		return s.existing(ctx, caller, req.RequestID)
	}

	now := s.now().UTC()
	record := types.Settlement{
		ID:        uuid.New(),
		RequestID: req.RequestID,
		Caller:    caller.Hex(),
		Token:     token.Hex(),
		AmountIn:  amount.String(),
		MinOut:    minOut.String(),
		Status:    types.SettlementPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.InsertSettlement(ctx, record); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return s.existing(ctx, caller, req.RequestID)
		}
		if rerr := s.claims.Release(ctx, claimKey); rerr != nil {
			s.logger.WithError(rerr).Warn("fail to release claim")
		}
		return nil, fmt.Errorf("fail to insert settlement: %w", err)
	}

	tags := []string{"token:" + record.Token}
	s.incCounter("settlement.settle", tags)
	logger := s.logger.WithFields(logrus.Fields{
		"settlement_id": record.ID,
		"request_id":    record.RequestID,
		"caller":        record.Caller,
	})

	receipt, settleErr := s.module.Settle(ctx, caller, fluidpay.SettlementRequest{
		Token:  token,
		Amount: amount,
		MinOut: minOut,
	})
	record.UpdatedAt = s.now().UTC()
	if settleErr != nil {
		code := fluidpay.ErrorCode(settleErr)
		record.Status = types.SettlementFailed
		record.ErrorCode = code
		record.ErrorMessage = settleErr.Error()
		s.incCounter("settlement.settle.error", append(tags, "code:"+code))
		entry := logger.WithError(settleErr).WithField("code", code)
		if code == fluidpay.CodeRollbackFailed {
			entry.Error("settlement rollback failed, custody needs reconciliation")
		} else {
			entry.Warn("settlement failed")
		}
	} else {
		record.Status = types.SettlementSettled
		record.AmountOut = common.AmountString(receipt.AmountOut)
		record.Fee = common.AmountString(receipt.Fee)
		record.Deposited = common.AmountString(receipt.Deposited)
	}

	// The chain state is final at this point, so history errors are logged, not returned.
	if err := s.db.UpdateSettlement(context.WithoutCancel(ctx), record); err != nil {
		logger.WithError(err).Error("fail to update settlement")
	}
	s.archiveRecord(ctx, record)

	view := s.view(record)
	return &view, settleErr
}

func (s *SettlementService) existing(ctx context.Context, caller ecommon.Address, requestID string) (*types.SettlementView, error) {
	record, err := s.db.GetSettlementByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRequestInProgress
		}
		return nil, fmt.Errorf("fail to get settlement: %w", err)
	}
	if record.Caller != caller.Hex() {
		return nil, fmt.Errorf("%w: request id %q is already used", ErrInvalidRequest, requestID)
	}
	if record.Status == types.SettlementPending {
		return nil, ErrRequestInProgress
	}
	view := s.view(*record)
	return &view, nil
}

func (s *SettlementService) archiveRecord(ctx context.Context, record types.Settlement) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Archive(context.WithoutCancel(ctx), record); err != nil {
		s.incCounter("settlement.archive.error", nil)
		s.logger.WithError(err).WithField("settlement_id", record.ID).Warn("fail to archive settlement")
	}
}

func (s *SettlementService) Sweep(ctx context.Context, caller ecommon.Address) (*fluidpay.SweepResult, error) {
	defer s.measureTime("upkeep.sweep.latency", time.Now(), nil)
	s.incCounter("upkeep.sweep", nil)
	result, err := s.module.Sweep(ctx, caller)
	if err != nil {
		s.incCounter("upkeep.sweep.error", []string{"code:" + fluidpay.ErrorCode(err)})
	}
	return result, err
}

func (s *SettlementService) Get(ctx context.Context, id uuid.UUID) (*types.SettlementView, error) {
	record, err := s.db.GetSettlement(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.view(*record)
	return &view, nil
}

func (s *SettlementService) History(ctx context.Context, caller string, sort string, take, skip int) ([]types.SettlementView, error) {
	if caller != "" {
		addr, err := common.ParseAddress(caller)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		caller = addr.Hex()
	}
	if take <= 0 {
		take = defaultPageSize
	}
	if take > maxPageSize {
		take = maxPageSize
	}
	if skip < 0 {
		skip = 0
	}
	records, err := s.db.ListSettlements(ctx, caller, sort, take, skip)
	if err != nil {
		return nil, fmt.Errorf("fail to list settlements: %w", err)
	}
	views := make([]types.SettlementView, 0, len(records))
	for _, r := range records {
		views = append(views, s.view(r))
	}
	return views, nil
}

// ConfigEvents returns the most recent owner configuration changes, newest first.
func (s *SettlementService) ConfigEvents(ctx context.Context, take int) ([]types.ConfigEvent, error) {
	if take <= 0 {
		take = defaultPageSize
	}
	if take > maxPageSize {
		take = maxPageSize
	}
	events, err := s.db.ListConfigEvents(ctx, take)
	if err != nil {
		return nil, fmt.Errorf("fail to list config events: %w", err)
	}
	return events, nil
}

func (s *SettlementService) view(record types.Settlement) types.SettlementView {
	return types.SettlementView{
		Settlement:       record,
		AmountOutDisplay: s.display(record.AmountOut),
		FeeDisplay:       s.display(record.Fee),
		DepositedDisplay: s.display(record.Deposited),
	}
}

// display renders a stablecoin amount in whole units.
func (s *SettlementService) display(amount string) string {
	if amount == "" {
		return ""
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return ""
	}
	return d.Shift(-s.decimals).String()
}

func (s *SettlementService) Describe() types.ModuleResponse {
	p := s.module.Params()
	tokens := make([]string, 0, len(p.AcceptedTokens))
	for _, t := range p.AcceptedTokens {
		tokens = append(tokens, t.Hex())
	}
	return types.ModuleResponse{
		Owner:             p.Owner.Hex(),
		Upkeep:            p.Upkeep.Hex(),
		UsdcAddress:       p.Stablecoin.Hex(),
		UsdcAavePool:      p.LendingPool.Hex(),
		PancakeSwapRouter: p.SwapRouter.Hex(),
		AcceptedTokens:    tokens,
		FeeBps:            p.FeeBps,
		SlippageBps:       p.SlippageBps,
		SweepThreshold:    p.SweepThreshold.String(),
		Custody:           s.module.Custody().Hex(),
	}
}

func (s *SettlementService) IsAccepted(token ecommon.Address) bool {
	return s.module.IsAccepted(token)
}

func (s *SettlementService) SetOwner(ctx context.Context, caller, owner ecommon.Address) error {
	return s.module.SetOwner(ctx, caller, owner)
}

func (s *SettlementService) SetUpkeep(ctx context.Context, caller, upkeep ecommon.Address) error {
	return s.module.SetUpkeep(ctx, caller, upkeep)
}

func (s *SettlementService) AddToken(ctx context.Context, caller, token ecommon.Address) error {
	return s.module.AddAcceptedToken(ctx, caller, token)
}

func (s *SettlementService) RemoveToken(ctx context.Context, caller, token ecommon.Address) error {
	return s.module.RemoveAcceptedToken(ctx, caller, token)
}

func (s *SettlementService) SetFee(ctx context.Context, caller ecommon.Address, bps uint64) error {
	return s.module.SetFeeBps(ctx, caller, bps)
}

func (s *SettlementService) SetSlippage(ctx context.Context, caller ecommon.Address, bps uint64) error {
	return s.module.SetSlippageBps(ctx, caller, bps)
}

func (s *SettlementService) SetSweepThreshold(ctx context.Context, caller ecommon.Address, threshold *big.Int) error {
	return s.module.SetSweepThreshold(ctx, caller, threshold)
}
