package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSettled SettlementStatus = "settled"
	SettlementFailed  SettlementStatus = "failed"
)

// Settlement is the stored history of one settle request. Amounts are base-10
// integers in the token's smallest unit; empty means not known yet.
type Settlement struct {
	ID           uuid.UUID        `json:"id"`
	RequestID    string           `json:"request_id"`
	Caller       string           `json:"caller"`
	Token        string           `json:"token"`
	AmountIn     string           `json:"amount_in"`
	MinOut       string           `json:"min_out"`
	AmountOut    string           `json:"amount_out,omitempty"`
	Fee          string           `json:"fee,omitempty"`
	Deposited    string           `json:"deposited,omitempty"`
	Status       SettlementStatus `json:"status"`
	ErrorCode    string           `json:"error_code,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ConfigEvent is an audit entry for an owner configuration change.
type ConfigEvent struct {
	ID        int64           `json:"id"`
	Action    string          `json:"action"`
	Actor     string          `json:"actor"`
	Params    json.RawMessage `json:"params"`
	CreatedAt time.Time       `json:"created_at"`
}
