package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vultisig/fluidpay/internal/types"
)

type DatabaseStorage interface {
	Close() error

	// InsertSettlement returns ErrDuplicateKey when the request id is taken.
	InsertSettlement(ctx context.Context, s types.Settlement) error
	UpdateSettlement(ctx context.Context, s types.Settlement) error
	GetSettlement(ctx context.Context, id uuid.UUID) (*types.Settlement, error)
	GetSettlementByRequestID(ctx context.Context, requestID string) (*types.Settlement, error)
	// ListSettlements filters by caller when it is non-empty. sort is a column
	// name, prefixed with "-" for descending order.
	ListSettlements(ctx context.Context, caller string, sort string, take int, skip int) ([]types.Settlement, error)

	// RecordConfigChange appends the event and replaces the module snapshot atomically.
	RecordConfigChange(ctx context.Context, event types.ConfigEvent) error
	ListConfigEvents(ctx context.Context, take int) ([]types.ConfigEvent, error)
	// LoadModuleState returns the latest snapshot or ErrNotFound.
	LoadModuleState(ctx context.Context) (json.RawMessage, error)
}

// Claimer grants a key to exactly one caller until it expires.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Archiver stores a copy of a finished settlement outside the database.
type Archiver interface {
	Archive(ctx context.Context, s types.Settlement) error
}
