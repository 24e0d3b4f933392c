// Package types holds the wire-shared data model: Permission records, the
// 53-bit Nonce identity, and the canonical element digest every service
// must compute identically.
package types

// Action identifies a single grantable operation, e.g. "sign-in".
type Action = string

// Permission is a versioned collection of actions bound to a stable nonce.
//
// It is created by the Authority (which assigns the nonce) and mutated only
// by issuing a new record with the same nonce, a strictly higher version,
// and any set of actions.
type Permission struct {
	Nonce   Nonce    `json:"nonce"`
	Actions []Action `json:"actions"`
	Version uint64   `json:"version"`
}

// Clone returns a deep copy so callers may mutate Actions independently.
func (p Permission) Clone() Permission {
	actions := make([]Action, len(p.Actions))
	copy(actions, p.Actions)
	return Permission{Nonce: p.Nonce, Actions: actions, Version: p.Version}
}

// HasAction reports whether the permission grants the given action.
func (p Permission) HasAction(action Action) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}
