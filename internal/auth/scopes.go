package auth

// Known OAuth scopes used by the reward backend.
const (
	ScopeStepsWrite   = "steps:write"
	ScopeStepsRead    = "steps:read"
	ScopeWalletRedeem = "wallet:redeem"
)
