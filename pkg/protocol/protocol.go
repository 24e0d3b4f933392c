// Package protocol defines the wire structs exchanged between the
// Authority, Worker, and Synchronizer, plus the shared error-kind
// vocabulary and its HTTP status mapping.
package protocol

import (
	"math/big"

	"github.com/cuemby/warden/pkg/accumulator"
	"github.com/cuemby/warden/pkg/types"
)

// ActionRequest asks the Authority to verify that perm, attested to by
// witness, grants action.
type ActionRequest struct {
	Perm    types.Permission    `json:"perm"`
	Witness accumulator.Witness `json:"witness"`
	Action  types.Action        `json:"action"`
}

// UpdateRequest asks the Authority to replace perm with update, proving
// perm's current membership with witness.
type UpdateRequest struct {
	Perm    types.Permission    `json:"perm"`
	Witness accumulator.Witness `json:"witness"`
	Update  types.Permission    `json:"update"`
}

// UpdateResponse is the Authority's reply to an UpdateRequest: the original
// request, plus the accumulation value after the update was applied.
type UpdateResponse struct {
	Req   UpdateRequest `json:"req"`
	Value *big.Int      `json:"value"`
}
