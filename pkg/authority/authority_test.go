package authority

import (
	"math/big"
	"testing"

	"github.com/cuemby/warden/pkg/accumulator"
	"github.com/cuemby/warden/pkg/protocol"
	"github.com/cuemby/warden/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPermissionAssignsNonce(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	perm, err := a.AddPermission(types.Permission{Actions: []string{"read"}, Version: 0})
	require.NoError(t, err)
	assert.NotZero(t, perm.Nonce.Uint64())
	assert.Equal(t, []string{"read"}, perm.Actions)
}

func TestUpdatePermissionRejectsNonceMismatch(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	perm, err := a.AddPermission(types.Permission{Actions: []string{"read"}, Version: 0})
	require.NoError(t, err)

	_, err = a.UpdatePermission(protocol.UpdateRequest{
		Perm:   perm,
		Update: types.Permission{Nonce: types.NewNonce(perm.Nonce.Uint64() + 1), Actions: []string{"write"}, Version: 1},
	})
	require.Error(t, err)
	perr, ok := err.(*protocol.Error)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrNonceMismatch, perr.Kind)
}

func TestUpdatePermissionRejectsStaleVersion(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	perm, err := a.AddPermission(types.Permission{Actions: []string{"read"}, Version: 0})
	require.NoError(t, err)

	_, err = a.UpdatePermission(protocol.UpdateRequest{
		Perm:   perm,
		Update: types.Permission{Nonce: perm.Nonce, Actions: []string{"write"}, Version: 0},
	})
	require.Error(t, err)
	perr, ok := err.(*protocol.Error)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrStaleVersion, perr.Kind)
}

// TestQuiescentWindowConvergesSnapshots checks that a full window with no
// writes leaves staging, updating, and verifying holding the same
// accumulation value.
func TestQuiescentWindowConvergesSnapshots(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	_, err = a.AddPermission(types.Permission{Actions: []string{"read"}, Version: 0})
	require.NoError(t, err)

	a.AdvanceStaging()
	a.PromoteUpdating()

	assert.Equal(t, 0, a.staging.GetValue().Cmp(a.updating.GetValue()))
	assert.Equal(t, 0, a.updating.GetValue().Cmp(a.verifying.GetValue()))
}

// TestActionEndToEnd exercises the full staging → updating → verifying
// pipeline: a permission added to staging only becomes actionable once
// AdvanceStaging and PromoteUpdating have both run. The witness is the
// accumulator's pre-add value (2, the fixed starting generator), matching
// what a Worker mirroring the same public-key add would compute.
func TestActionEndToEnd(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	perm, err := a.AddPermission(types.Permission{Actions: []string{"sign-in"}, Version: 0})
	require.NoError(t, err)

	a.AdvanceStaging()
	a.PromoteUpdating()

	err = a.Action(protocol.ActionRequest{
		Perm:    perm,
		Witness: accumulator.Witness{Value: big.NewInt(2)},
		Action:  "sign-in",
	})
	require.NoError(t, err)

	err = a.Action(protocol.ActionRequest{
		Perm:    perm,
		Witness: accumulator.Witness{Value: big.NewInt(2)},
		Action:  "send-message",
	})
	require.Error(t, err)
	perr, ok := err.(*protocol.Error)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrActionNotGranted, perr.Kind)
}
