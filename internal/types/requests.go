package types

// Signed request bodies carry a unix timestamp so the signature expires.

type SettleRequest struct {
	RequestID string `json:"request_id" validate:"required,max=128"`
	Token     string `json:"token" validate:"required,eth_addr"`
	Amount    string `json:"amount" validate:"required,number"`
	MinOut    string `json:"min_out" validate:"omitempty,number"`
	Timestamp int64  `json:"timestamp" validate:"required"`
}

type AddressRequest struct {
	Address   string `json:"address" validate:"required,eth_addr"`
	Timestamp int64  `json:"timestamp" validate:"required"`
}

type BpsRequest struct {
	Bps       *uint64 `json:"bps" validate:"required"`
	Timestamp int64   `json:"timestamp" validate:"required"`
}

type ThresholdRequest struct {
	Threshold string `json:"threshold" validate:"required,number"`
	Timestamp int64  `json:"timestamp" validate:"required"`
}

type SweepRequest struct {
	Timestamp int64 `json:"timestamp" validate:"required"`
}

type SweepTaskResponse struct {
	TaskID string `json:"task_id"`
}

type ModuleResponse struct {
	Owner             string   `json:"owner"`
	Upkeep            string   `json:"upkeep"`
	UsdcAddress       string   `json:"usdc_address"`
	UsdcAavePool      string   `json:"usdc_aave_pool"`
	PancakeSwapRouter string   `json:"pancake_swap_router"`
	AcceptedTokens    []string `json:"accepted_tokens"`
	FeeBps            uint64   `json:"fee_bps"`
	SlippageBps       uint64   `json:"slippage_bps"`
	SweepThreshold    string   `json:"sweep_threshold"`
	Custody           string   `json:"custody"`
}

type TokenAcceptedResponse struct {
	Token    string `json:"token"`
	Accepted bool   `json:"accepted"`
}

// SettlementView adds human-readable stablecoin amounts to a stored settlement.
type SettlementView struct {
	Settlement
	AmountOutDisplay string `json:"amount_out_display,omitempty"`
	FeeDisplay       string `json:"fee_display,omitempty"`
	DepositedDisplay string `json:"deposited_display,omitempty"`
}

type SettlementListResponse struct {
	Settlements []SettlementView `json:"settlements"`
	// Count is the number of settlements in this page.
	Count       int              `json:"count"`
}
