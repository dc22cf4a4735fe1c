package types

// DepositRequest represents a user's deposit command
type DepositRequest struct {
	Amount   string
	Token    string
	Kind     string
	Duration string
}

// DepositSummary holds formatted deposit information for display before
// the user confirms
type DepositSummary struct {
	Strategy     string `json:"strategy"`
	Network      string `json:"network"`
	Amount       string `json:"amount"`
	Token        string `json:"token"`
	BaseUnits    string `json:"base_units"`
	TokenAddress string `json:"token_address"`
	VaultAddress string `json:"vault_address"`
	Owner        string `json:"owner"`
	Balance      string `json:"balance,omitempty"`
}

// DepositResult is the outcome of a deposit flow as shown to the user
type DepositResult struct {
	FlowID      string `json:"flow_id"`
	Phase       string `json:"phase"`
	Reason      string `json:"reason,omitempty"`
	Message     string `json:"message,omitempty"`
	ApprovalTx  string `json:"approval_tx,omitempty"`
	DepositTx   string `json:"deposit_tx,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
	Uncertain   bool   `json:"outcome_uncertain,omitempty"`
}

// BalanceInfo is a token balance for one strategy's token
type BalanceInfo struct {
	Strategy  string `json:"strategy"`
	Network   string `json:"network"`
	Token     string `json:"token"`
	Address   string `json:"address"`
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}
