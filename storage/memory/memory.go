// Package memory keeps settlement history and claims in process memory. It
// backs the sim server mode and service tests.
package memory

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vultisig/fluidpay/common"
	"github.com/vultisig/fluidpay/internal/types"
	"github.com/vultisig/fluidpay/storage"
)

type Store struct {
	mu          sync.RWMutex
	settlements map[uuid.UUID]types.Settlement
	byRequest   map[string]uuid.UUID
	events      []types.ConfigEvent
	state       json.RawMessage
}

var _ storage.DatabaseStorage = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		settlements: make(map[uuid.UUID]types.Settlement),
		byRequest:   make(map[string]uuid.UUID),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) InsertSettlement(_ context.Context, st types.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byRequest[st.RequestID]; ok {
		return storage.ErrDuplicateKey
	}
	if _, ok := s.settlements[st.ID]; ok {
		return storage.ErrDuplicateKey
	}
	s.settlements[st.ID] = st
	s.byRequest[st.RequestID] = st.ID
	return nil
}

func (s *Store) UpdateSettlement(_ context.Context, st types.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settlements[st.ID]; !ok {
		return storage.ErrNotFound
	}
	s.settlements[st.ID] = st
	return nil
}

func (s *Store) GetSettlement(_ context.Context, id uuid.UUID) (*types.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settlements[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &st, nil
}

func (s *Store) GetSettlementByRequestID(ctx context.Context, requestID string) (*types.Settlement, error) {
	s.mu.RLock()
	id, ok := s.byRequest[requestID]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.GetSettlement(ctx, id)
}

func (s *Store) ListSettlements(_ context.Context, caller string, sort string, take int, skip int) ([]types.Settlement, error) {
	orderBy, direction := common.GetSortingCondition(sort)
	s.mu.RLock()
	out := make([]types.Settlement, 0, len(s.settlements))
	for _, st := range s.settlements {
		if caller != "" && st.Caller != caller {
			continue
		}
		out = append(out, st)
	}
	s.mu.RUnlock()

	key := func(st types.Settlement) time.Time {
		if orderBy == "updated_at" {
			return st.UpdatedAt
		}
		return st.CreatedAt
	}
	desc := direction == "DESC"
	slices.SortStableFunc(out, func(x, y types.Settlement) int {
		c := key(x).Compare(key(y))
		if desc {
			c = -c
		}
		if c == 0 {
			return strings.Compare(x.ID.String(), y.ID.String())
		}
		return c
	})

	if skip >= len(out) {
		return []types.Settlement{}, nil
	}
	out = out[skip:]
	if take > 0 && take < len(out) {
		out = out[:take]
	}
	return out, nil
}

func (s *Store) RecordConfigChange(_ context.Context, event types.ConfigEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = int64(len(s.events) + 1)
	s.events = append(s.events, event)
	s.state = append(json.RawMessage(nil), event.Params...)
	return nil
}

func (s *Store) ListConfigEvents(_ context.Context, take int) ([]types.ConfigEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ConfigEvent, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		if take > 0 && len(out) == take {
			break
		}
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *Store) LoadModuleState(_ context.Context) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, storage.ErrNotFound
	}
	return append(json.RawMessage(nil), s.state...), nil
}

// Claims is an in-memory storage.Claimer.
type Claims struct {
	mu   sync.Mutex
	now  func() time.Time
	keys map[string]time.Time
}

var _ storage.Claimer = (*Claims)(nil)

func NewClaims() *Claims {
	return &Claims{now: time.Now, keys: make(map[string]time.Time)}
}

func (c *Claims) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if exp, ok := c.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	c.keys[key] = now.Add(ttl)
	return true, nil
}

func (c *Claims) Release(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
	return nil
}
