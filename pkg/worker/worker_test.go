package worker

import (
	"math/big"
	"testing"

	"github.com/cuemby/warden/pkg/accumulator"
	"github.com/cuemby/warden/pkg/protocol"
	"github.com/cuemby/warden/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPermission(nonce uint64, actions ...string) types.Permission {
	return types.Permission{
		Nonce:   types.NewNonce(nonce),
		Actions: actions,
		Version: 1,
	}
}

func TestSetKeyRejectsSecondCall(t *testing.T) {
	_, pub, _, err := accumulator.NewWithRandomKey()
	require.NoError(t, err)

	w := New()
	require.NoError(t, w.SetKey(pub))

	err = w.SetKey(pub)
	require.Error(t, err)
	perr, ok := err.(*protocol.Error)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrAlreadyKeyed, perr.Kind)
}

func TestAddPermissionRequiresKey(t *testing.T) {
	w := New()
	err := w.AddPermission(testPermission(1, "read"))
	require.Error(t, err)
	perr, ok := err.(*protocol.Error)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrNoKey, perr.Kind)
}

func TestWitnessRequiresKey(t *testing.T) {
	w := New()
	_, _, err := w.Witness(types.NewNonce(1))
	require.Error(t, err)
}

func TestWitnessMissingNonceReturnsNotFound(t *testing.T) {
	_, pub, _, err := accumulator.NewWithRandomKey()
	require.NoError(t, err)

	w := New()
	require.NoError(t, w.SetKey(pub))

	_, ok, err := w.Witness(types.NewNonce(99))
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestUpdateSyncCycleProducesValidWitness exercises the full window: the
// Authority adds a permission, the Worker absorbs it, Update runs the
// parallel refresh, Sync publishes the serving map, and the resulting
// witness verifies against the Authority's accumulator.
func TestUpdateSyncCycleProducesValidWitness(t *testing.T) {
	acc, pub, _, err := accumulator.NewWithRandomKey()
	require.NoError(t, err)

	w := New()
	require.NoError(t, w.SetKey(pub))

	perm := testPermission(7, "read", "write")
	element := types.ElementDigest(perm)
	acc.Add(element)
	require.NoError(t, w.AddPermission(perm))

	require.NoError(t, w.Update())
	require.NoError(t, w.Sync())

	witness, ok, err := w.Witness(perm.Nonce)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, acc.Verify(element, witness))
}

// TestUpdateSyncCycleWithMultiplePermissions checks that the parallel batch
// refresh correctly advances every outstanding witness, not just the one
// most recently added.
func TestUpdateSyncCycleWithMultiplePermissions(t *testing.T) {
	acc, pub, _, err := accumulator.NewWithRandomKey()
	require.NoError(t, err)

	w := New()
	require.NoError(t, w.SetKey(pub))

	perms := []types.Permission{
		testPermission(1, "read"),
		testPermission(2, "write"),
		testPermission(3, "admin"),
	}
	for _, p := range perms {
		acc.Add(types.ElementDigest(p))
		require.NoError(t, w.AddPermission(p))
	}

	require.NoError(t, w.Update())
	require.NoError(t, w.Sync())

	for _, p := range perms {
		witness, ok, err := w.Witness(p.Nonce)
		require.NoError(t, err)
		require.True(t, ok)
		assert.NoError(t, acc.Verify(types.ElementDigest(p), witness))
	}
}

// TestUpdatedPermissionWitnessVerifies walks the full update path: a
// permission is granted and served, then replaced by a higher version; after
// the next window the new version's witness must verify against the
// accumulation value the trapdoor holder arrived at, and the old version's
// witness must not.
func TestUpdatedPermissionWitnessVerifies(t *testing.T) {
	acc, pub, _, err := accumulator.NewWithRandomKey()
	require.NoError(t, err)

	w := New()
	require.NoError(t, w.SetKey(pub))

	old := testPermission(5, "read")
	oldElement := types.ElementDigest(old)
	acc.Add(oldElement)
	require.NoError(t, w.AddPermission(old))
	require.NoError(t, w.Update())
	require.NoError(t, w.Sync())

	oldWitness, ok, err := w.Witness(old.Nonce)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, acc.Verify(oldElement, oldWitness))

	updated := testPermission(5, "read", "write")
	updated.Version = 2
	updatedElement := types.ElementDigest(updated)
	require.NoError(t, acc.Del(oldElement, oldWitness))
	acc.Add(updatedElement)

	res := protocol.UpdateResponse{
		Req: protocol.UpdateRequest{
			Perm:    old,
			Witness: oldWitness,
			Update:  updated,
		},
		Value: acc.GetValue(),
	}
	require.NoError(t, w.UpdatePermission(res))
	require.NoError(t, w.Update())
	require.NoError(t, w.Sync())

	newWitness, ok, err := w.Witness(updated.Nonce)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, acc.Verify(updatedElement, newWitness))
	require.Error(t, acc.Verify(oldElement, oldWitness))
}

// TestUpdatePermissionAdoptsAuthorityValue checks that UpdatePermission
// overwrites the mirrored accumulation value with the value the Authority
// reports after the update, since the Worker cannot compute it without the
// trapdoor.
func TestUpdatePermissionAdoptsAuthorityValue(t *testing.T) {
	_, pub, _, err := accumulator.NewWithRandomKey()
	require.NoError(t, err)

	w := New()
	require.NoError(t, w.SetKey(pub))

	old := testPermission(5, "read")
	require.NoError(t, w.AddPermission(old))
	require.NoError(t, w.Update())
	require.NoError(t, w.Sync())

	oldWitness, ok, err := w.Witness(old.Nonce)
	require.NoError(t, err)
	require.True(t, ok)

	updated := testPermission(5, "read", "write")
	updated.Version = 2
	res := protocol.UpdateResponse{
		Req: protocol.UpdateRequest{
			Perm:    old,
			Witness: oldWitness,
			Update:  updated,
		},
		Value: big.NewInt(42),
	}
	require.NoError(t, w.UpdatePermission(res))

	w.accMu.Lock()
	got := w.acc.GetValue()
	w.accMu.Unlock()
	assert.Equal(t, big.NewInt(42), got)
}
