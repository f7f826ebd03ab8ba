package ledger

import "fmt"

// AccountScope is the top-level account namespace.
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType identifies the purpose of an account.
type AccountSubType uint8

const (
	// User sub-types
	SubTypeDeposited AccountSubType = iota // collateral on deposit, free or locked
	SubTypeLocked                          // collateral pledged to an active loan
	SubTypeDebt                            // outstanding borrow principal

	// System sub-types
	SubTypeSystemLiquidity // protocol-held borrowable liquidity
	SubTypeSystemSurplus   // liquidation surplus retained by the protocol
	SubTypeSystemInterest  // interest collected on repayment

	// External sub-types
	SubTypeExternalIn  // inbound transfer boundary
	SubTypeExternalOut // outbound transfer boundary
)

// AccountKey identifies a journal account: an owner (empty for system and
// external scopes), a sub-type, and an asset.
type AccountKey struct {
	Scope   AccountScope
	Owner   string
	SubType AccountSubType
	Asset   string
}

func NewUserAccountKey(owner string, subType AccountSubType, asset string) AccountKey {
	return AccountKey{Scope: AccountScopeUser, Owner: owner, SubType: subType, Asset: asset}
}

func NewSystemAccountKey(subType AccountSubType, asset string) AccountKey {
	return AccountKey{Scope: AccountScopeSystem, SubType: subType, Asset: asset}
}

func NewExternalAccountKey(subType AccountSubType, asset string) AccountKey {
	return AccountKey{Scope: AccountScopeExternal, SubType: subType, Asset: asset}
}

// AccountPath returns the string representation used for storage and logs.
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopeUser:
		return fmt.Sprintf("user:%s:%s:%s", k.Owner, k.subTypeName(), k.Asset)
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), k.Asset)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), k.Asset)
	}
	return "unknown"
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeDeposited:
		return "deposited"
	case SubTypeLocked:
		return "locked"
	case SubTypeDebt:
		return "debt"
	case SubTypeSystemLiquidity:
		return "liquidity"
	case SubTypeSystemSurplus:
		return "surplus"
	case SubTypeSystemInterest:
		return "interest"
	case SubTypeExternalIn:
		return "inflow"
	case SubTypeExternalOut:
		return "outflow"
	default:
		return "unknown"
	}
}
