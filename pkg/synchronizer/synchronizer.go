// Package synchronizer implements the client-facing coordinator: it serves
// add/update/action requests against the Authority and Worker, and drives
// the windowed phase protocol that keeps witnesses converging.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cuemby/warden/pkg/accumulator"
	"github.com/cuemby/warden/pkg/protocol"
	"github.com/cuemby/warden/pkg/rpc"
	"github.com/cuemby/warden/pkg/types"
)

// Synchronizer is stateless w.r.t. accumulator data: it holds clients to the
// Authority and Worker plus the two mutexes that order client writes against
// the windowing loop.
type Synchronizer struct {
	authority *rpc.Client
	worker    *rpc.Client

	// accMu serializes client-initiated writes against the windowing loop's
	// advance/begin and promote/commit critical sections.
	accMu sync.Mutex
	// windowMu ensures only one windowing loop runs at a time.
	windowMu sync.Mutex
}

// New fetches the Authority's public key and submits it to the Worker,
// then returns a ready-to-use Synchronizer.
func New(ctx context.Context, authorityAddr, workerAddr string) (*Synchronizer, error) {
	authority := rpc.New(authorityAddr)
	worker := rpc.New(workerAddr)

	var pub accumulator.PublicKey
	if _, err := authority.Get(ctx, "/key", &pub); err != nil {
		return nil, fmt.Errorf("synchronizer: fetch authority key: %w", err)
	}
	if _, err := worker.Post(ctx, "/key", pub, nil); err != nil {
		return nil, fmt.Errorf("synchronizer: submit key to worker: %w", err)
	}

	return &Synchronizer{authority: authority, worker: worker}, nil
}

// AddPermission asks the Authority to mint a nonce for actions, then has the
// Worker absorb the finalized record.
func (s *Synchronizer) AddPermission(ctx context.Context, actions []types.Action) (types.Permission, error) {
	s.accMu.Lock()
	defer s.accMu.Unlock()

	req := types.Permission{Actions: actions, Version: 0}
	var finalized types.Permission
	if _, err := s.authority.Post(ctx, "/permission", req, &finalized); err != nil {
		return types.Permission{}, wrapUpstream(err)
	}
	if _, err := s.worker.Post(ctx, "/permission", finalized, nil); err != nil {
		return types.Permission{}, wrapUpstream(err)
	}
	return finalized, nil
}

// UpdatePermission fetches perm's current witness from the Worker, submits
// the update to the Authority, and forwards the Authority's response to the
// Worker so it can absorb the deletion and re-addition.
func (s *Synchronizer) UpdatePermission(ctx context.Context, perm types.Permission, newActions []types.Action) (types.Permission, error) {
	s.accMu.Lock()
	defer s.accMu.Unlock()

	witness, err := s.fetchWitness(ctx, perm.Nonce)
	if err != nil {
		return types.Permission{}, err
	}

	update := types.Permission{
		Nonce:   perm.Nonce,
		Actions: newActions,
		Version: perm.Version + 1,
	}
	req := protocol.UpdateRequest{Perm: perm, Witness: witness, Update: update}

	var res protocol.UpdateResponse
	if _, err := s.authority.Put(ctx, "/permission", req, &res); err != nil {
		return types.Permission{}, wrapUpstream(err)
	}
	if _, err := s.worker.Put(ctx, "/permission", res, nil); err != nil {
		return types.Permission{}, wrapUpstream(err)
	}
	return update, nil
}

// Action fetches perm's current witness from the Worker and asks the
// Authority to verify that it grants action.
func (s *Synchronizer) Action(ctx context.Context, perm types.Permission, action types.Action) error {
	s.accMu.Lock()
	defer s.accMu.Unlock()

	witness, err := s.fetchWitness(ctx, perm.Nonce)
	if err != nil {
		return err
	}

	req := protocol.ActionRequest{Perm: perm, Witness: witness, Action: action}
	if _, err := s.authority.Post(ctx, "/action", req, nil); err != nil {
		return wrapUpstream(err)
	}
	return nil
}

func (s *Synchronizer) fetchWitness(ctx context.Context, nonce types.Nonce) (accumulator.Witness, error) {
	var witness accumulator.Witness
	path := fmt.Sprintf("/witness/%d", nonce.Uint64())
	if _, err := s.worker.Get(ctx, path, &witness); err != nil {
		return accumulator.Witness{}, wrapUpstream(err)
	}
	return witness, nil
}

// wrapUpstream preserves a service-reported failure as-is so its status and
// kind can be relayed to the client; anything else (transport failure,
// decode failure) becomes an upstream_error.
func wrapUpstream(err error) error {
	var rerr *rpc.Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return protocol.NewError(protocol.ErrUpstream, err.Error())
}
