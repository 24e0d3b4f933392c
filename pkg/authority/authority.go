// Package authority implements the trapdoor-holding side of the
// authorization protocol: the sole writer of accumulator membership and the
// verifier of actions.
package authority

import (
	"sync"

	"github.com/cuemby/warden/pkg/accumulator"
	"github.com/cuemby/warden/pkg/protocol"
	"github.com/cuemby/warden/pkg/types"
)

// Authority holds the accumulator's trapdoor and its three snapshots:
// staging (sole writer of membership), updating (frozen while the Worker
// refreshes witnesses), and verifying (what action checks against). All
// operations run under a single mutex that totally orders them.
type Authority struct {
	mu sync.Mutex

	key       accumulator.PublicKey
	staging   *accumulator.Accumulator
	updating  *accumulator.Accumulator
	verifying *accumulator.Accumulator
}

// New creates an Authority with a freshly generated trapdoor.
func New() (*Authority, error) {
	acc, pub, _, err := accumulator.NewWithRandomKey()
	if err != nil {
		return nil, err
	}
	return &Authority{
		key:       pub,
		staging:   acc,
		updating:  acc.Clone(),
		verifying: acc.Clone(),
	}, nil
}

// GetKey returns the accumulator's public key. Never fails.
func (a *Authority) GetKey() accumulator.PublicKey {
	return a.key
}

// AddPermission assigns perm a random 53-bit nonce and inserts its digest
// into the staging accumulator, returning the finalized record.
func (a *Authority) AddPermission(perm types.Permission) (types.Permission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	nonce, err := randomNonce()
	if err != nil {
		return types.Permission{}, protocol.NewError(protocol.ErrBadRequest, "nonce generation failed: "+err.Error())
	}
	perm.Nonce = nonce
	a.staging.Add(types.ElementDigest(perm))
	return perm, nil
}

// UpdatePermission replaces req.Perm with req.Update in the staging
// accumulator, proving req.Perm's current membership with req.Witness.
func (a *Authority) UpdatePermission(req protocol.UpdateRequest) (protocol.UpdateResponse, error) {
	if req.Update.Nonce != req.Perm.Nonce {
		return protocol.UpdateResponse{}, protocol.NewError(protocol.ErrNonceMismatch, "update nonce does not match existing permission")
	}
	if req.Update.Version <= req.Perm.Version {
		return protocol.UpdateResponse{}, protocol.NewError(protocol.ErrStaleVersion, "update version must exceed existing version")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.staging.Del(types.ElementDigest(req.Perm), req.Witness); err != nil {
		return protocol.UpdateResponse{}, protocol.NewError(protocol.ErrNotMember, "witness does not verify against staging")
	}
	a.staging.Add(types.ElementDigest(req.Update))

	return protocol.UpdateResponse{
		Req:   req,
		Value: a.staging.GetValue(),
	}, nil
}

// Action verifies req.Perm's membership against the verifying accumulator
// and checks that req.Action is granted.
func (a *Authority) Action(req protocol.ActionRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.verifying.Verify(types.ElementDigest(req.Perm), req.Witness); err != nil {
		return protocol.NewError(protocol.ErrNotMember, "witness does not verify against verifying snapshot")
	}
	if !req.Perm.HasAction(req.Action) {
		return protocol.NewError(protocol.ErrActionNotGranted, "permission does not grant "+req.Action)
	}
	return nil
}

// AdvanceStaging copies staging into updating, freezing the working set for
// the Worker's next batch of witness updates.
func (a *Authority) AdvanceStaging() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updating = a.staging.Clone()
}

// PromoteUpdating copies updating into verifying, making the freshly
// updated element set the one action now verifies against.
func (a *Authority) PromoteUpdating() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verifying = a.updating.Clone()
}
