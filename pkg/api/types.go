package api

// RegisterParamsRequest hands the keeper a plaintext cache entry for one
// ghost-order record. The order parameters never touch the ledger here;
// they are verified against the on-record commitment and cached in memory.
type RegisterParamsRequest struct {
	MarketIndex     uint16 `json:"market_index"`
	Side            string `json:"side"` // "long" | "short"
	BaseAssetAmount uint64 `json:"base_asset_amount"`
	ReduceOnly      bool   `json:"reduce_only"`
	Nonce           uint64 `json:"nonce"`
}

// RegisterParamsResponse acknowledges a cache insert.
type RegisterParamsResponse struct {
	Status string `json:"status"`
	Record string `json:"record"`
}

// OrderView is the public read model of a ghost-order record. The hidden
// trio (side, size, reduce-only) appears only post-reveal; before that the
// commitment hex is all an observer gets.
type OrderView struct {
	Address          string `json:"address"`
	Layer            string `json:"layer"` // "base" | "exec"
	Owner            string `json:"owner"`
	OrderID          uint64 `json:"order_id"`
	MarketIndex      uint16 `json:"market_index"`
	Status           string `json:"status"`
	TriggerPrice     uint64 `json:"trigger_price"`
	TriggerCondition string `json:"trigger_condition"`
	Expiry           int64  `json:"expiry"`
	CreatedAt        int64  `json:"created_at"`
	TriggeredAt      int64  `json:"triggered_at,omitempty"`
	ReadyExpiresAt   int64  `json:"ready_expires_at,omitempty"`
	ExecutedAt       int64  `json:"executed_at,omitempty"`
	ExecutionPrice   uint64 `json:"execution_price,omitempty"`
	ParamsCommitment string `json:"params_commitment"`

	// Post-reveal only.
	Side            string `json:"side,omitempty"`
	BaseAssetAmount uint64 `json:"base_asset_amount,omitempty"`
	ReduceOnly      bool   `json:"reduce_only,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is the client -> hub control message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" | "unsubscribe"
	Channels []string `json:"channels"`
}
