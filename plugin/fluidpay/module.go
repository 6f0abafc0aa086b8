package fluidpay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

const defaultSwapDeadline = 20 * time.Minute

// Deps are the collaborators a Module drives. Custody is the account holding
// the module's funds and lending-pool receipts.
type Deps struct {
	Tokens       TokenService
	Router       SwapRouter
	Pool         LendingPool
	Custody      common.Address
	Events       EventSink
	Config       ConfigStore
	Logger       logrus.FieldLogger
	SwapDeadline time.Duration
	Now          func() time.Time
}

// Module is the settlement singleton. Every entry point runs under one lock, so
// configuration changes never interleave with a settlement or a sweep.
type Module struct {
	mu       sync.RWMutex
	params   Params
	accepted map[common.Address]struct{}

	tokens   TokenService
	router   SwapRouter
	pool     LendingPool
	custody  common.Address
	events   EventSink
	config   ConfigStore
	logger   logrus.FieldLogger
	deadline time.Duration
	now      func() time.Time
}

func New(params Params, deps Deps) (*Module, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if deps.Tokens == nil || deps.Router == nil || deps.Pool == nil {
		return nil, errors.New("token service, swap router and lending pool are required")
	}
	if deps.Custody == (common.Address{}) {
		return nil, errors.New("custody address is required")
	}
	if deps.Events == nil {
		deps.Events = nopSink{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.SwapDeadline <= 0 {
		deps.SwapDeadline = defaultSwapDeadline
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	m := &Module{
		tokens:   deps.Tokens,
		router:   deps.Router,
		pool:     deps.Pool,
		custody:  deps.Custody,
		events:   deps.Events,
		config:   deps.Config,
		logger:   deps.Logger.WithField("service", "fluidpay"),
		deadline: deps.SwapDeadline,
		now:      deps.Now,
	}
	m.commit(params.Clone())
	return m, nil
}

func (m *Module) commit(p Params) {
	m.params = p
	m.accepted = make(map[common.Address]struct{}, len(p.AcceptedTokens))
	for _, token := range p.AcceptedTokens {
		m.accepted[token] = struct{}{}
	}
}

func (m *Module) Owner() common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.Owner
}

func (m *Module) Upkeep() common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.Upkeep
}

// StablecoinAddress is the settlement target (USDC).
func (m *Module) StablecoinAddress() common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.Stablecoin
}

// LendingPoolAddress is the pool receiving stablecoin deposits (the USDC Aave pool).
func (m *Module) LendingPoolAddress() common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.LendingPool
}

// SwapRouterAddress is the PancakeSwap router used for token -> stablecoin swaps.
func (m *Module) SwapRouterAddress() common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.SwapRouter
}

func (m *Module) Custody() common.Address {
	return m.custody
}

func (m *Module) IsAccepted(token common.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accepted[token]
	return ok
}

// Params returns a snapshot of the current configuration.
func (m *Module) Params() Params {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.Clone()
}

// update applies mutate to a copy of the configuration, validates it and commits.
func (m *Module) update(ctx context.Context, caller common.Address, action string, mutate func(p *Params) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.authorize(caller, RoleOwner); err != nil {
		return err
	}
	next := m.params.Clone()
	if err := mutate(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next = next.Clone()
	now := m.now()
	if m.config != nil {
		err := m.config.SaveConfig(ctx, ConfigChange{
			Action:    action,
			Actor:     caller,
			Params:    next.Clone(),
			Timestamp: now,
		})
		if err != nil {
			return fmt.Errorf("fail to persist %s: %w", action, err)
		}
	}
	m.commit(next)

	m.logger.WithFields(logrus.Fields{
		"action": action,
		"actor":  caller.Hex(),
	}).Info("configuration changed")

	snapshot := next.Clone()
	m.events.Publish(ctx, Event{
		Type:      EventConfigChanged,
		Action:    action,
		Actor:     caller,
		Params:    &snapshot,
		Timestamp: now,
	})
	return nil
}

func (m *Module) SetOwner(ctx context.Context, caller, owner common.Address) error {
	return m.update(ctx, caller, "set_owner", func(p *Params) error {
		p.Owner = owner
		return nil
	})
}

func (m *Module) SetUpkeep(ctx context.Context, caller, upkeep common.Address) error {
	return m.update(ctx, caller, "set_upkeep", func(p *Params) error {
		p.Upkeep = upkeep
		return nil
	})
}

func (m *Module) AddAcceptedToken(ctx context.Context, caller, token common.Address) error {
	return m.update(ctx, caller, "add_accepted_token", func(p *Params) error {
		for _, t := range p.AcceptedTokens {
			if t == token {
				return fmt.Errorf("%w: token %s is already accepted", ErrConfiguration, token.Hex())
			}
		}
		p.AcceptedTokens = append(p.AcceptedTokens, token)
		return nil
	})
}

func (m *Module) RemoveAcceptedToken(ctx context.Context, caller, token common.Address) error {
	return m.update(ctx, caller, "remove_accepted_token", func(p *Params) error {
		kept := p.AcceptedTokens[:0]
		for _, t := range p.AcceptedTokens {
			if t != token {
				kept = append(kept, t)
			}
		}
		if len(kept) == len(p.AcceptedTokens) {
			return fmt.Errorf("%w: token %s is not accepted", ErrConfiguration, token.Hex())
		}
		p.AcceptedTokens = kept
		return nil
	})
}

func (m *Module) SetFeeBps(ctx context.Context, caller common.Address, bps uint64) error {
	return m.update(ctx, caller, "set_fee", func(p *Params) error {
		p.FeeBps = bps
		return nil
	})
}

func (m *Module) SetSlippageBps(ctx context.Context, caller common.Address, bps uint64) error {
	return m.update(ctx, caller, "set_slippage", func(p *Params) error {
		p.SlippageBps = bps
		return nil
	})
}

func (m *Module) SetSweepThreshold(ctx context.Context, caller common.Address, threshold *big.Int) error {
	return m.update(ctx, caller, "set_sweep_threshold", func(p *Params) error {
		if threshold == nil {
			return fmt.Errorf("%w: sweep threshold is required", ErrConfiguration)
		}
		p.SweepThreshold = new(big.Int).Set(threshold)
		return nil
	})
}
