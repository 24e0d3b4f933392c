package accumulator

import (
	"math/big"
	"testing"
)

func TestAddVerifyRoundtrip(t *testing.T) {
	acc, pub, _, err := NewWithRandomKey()
	if err != nil {
		t.Fatalf("NewWithRandomKey() error = %v", err)
	}

	e1 := big.NewInt(101)
	e2 := big.NewInt(103)

	w1 := acc.Add(e1)
	w2 := acc.Add(e2)
	// w1 predates e2's add; raising it to e2 brings it current.
	w1 = Witness{Value: new(big.Int).Exp(w1.Value, e2, pub.N)}

	verifier := WithPublicKey(pub)
	verifier.SetValue(acc.GetValue())

	if err := verifier.Verify(e1, w1); err != nil {
		t.Errorf("Verify(e1) after both adds = %v, want nil", err)
	}
	if err := verifier.Verify(e2, w2); err != nil {
		t.Errorf("Verify(e2) after both adds = %v, want nil", err)
	}

	wrong := Witness{Value: big.NewInt(2)}
	if err := verifier.Verify(e1, wrong); err == nil {
		t.Error("Verify(e1, wrong witness) = nil, want error")
	}
}

func TestDelRequiresTrapdoor(t *testing.T) {
	_, pub, _, err := NewWithRandomKey()
	if err != nil {
		t.Fatalf("NewWithRandomKey() error = %v", err)
	}
	keyOnly := WithPublicKey(pub)
	err = keyOnly.Del(big.NewInt(7), Witness{Value: big.NewInt(2)})
	if err != ErrNoTrapdoor {
		t.Errorf("Del() on public-key-only instance = %v, want ErrNoTrapdoor", err)
	}
}

func TestDelThenVerifyFails(t *testing.T) {
	acc, pub, _, err := NewWithRandomKey()
	if err != nil {
		t.Fatalf("NewWithRandomKey() error = %v", err)
	}

	e1 := big.NewInt(101)
	w := acc.Add(e1)
	if err := acc.Del(e1, w); err != nil {
		t.Fatalf("Del(e1) = %v, want nil", err)
	}

	verifier := WithPublicKey(pub)
	verifier.SetValue(acc.GetValue())
	if err := verifier.Verify(e1, w); err == nil {
		t.Error("Verify(e1) after Del(e1) = nil, want error")
	}
}

func TestBatchUpdateWitnesses(t *testing.T) {
	acc, pub, _, err := NewWithRandomKey()
	if err != nil {
		t.Fatalf("NewWithRandomKey() error = %v", err)
	}

	eKeep := big.NewInt(89)
	eAdd := big.NewInt(97)

	wKeep := acc.Add(eKeep)

	u := NewUpdate()
	u.Add(eAdd, acc.GetValue())
	acc.Add(eAdd)

	ref := &WitnessRef{Element: eKeep, Witness: new(big.Int).Set(wKeep.Value)}
	u.UpdateWitnesses(pub, nil, []*WitnessRef{ref})

	verifier := WithPublicKey(pub)
	verifier.SetValue(acc.GetValue())
	if err := verifier.Verify(eKeep, Witness{Value: ref.Witness}); err != nil {
		t.Errorf("Verify(eKeep) after batched add refresh = %v, want nil", err)
	}
}

// TestBatchUpdateAdditionWitness refreshes a witness issued mid-window: the
// element's witness is the accumulation value at its own add time, and only
// the ops logged after its add may be replayed onto it.
func TestBatchUpdateAdditionWitness(t *testing.T) {
	acc, pub, _, err := NewWithRandomKey()
	if err != nil {
		t.Fatalf("NewWithRandomKey() error = %v", err)
	}

	ePre := big.NewInt(89)
	eNew := big.NewInt(97)
	eLater := big.NewInt(101)

	acc.Add(ePre)

	u := NewUpdate()
	wNew := acc.GetValue()
	pos := u.Add(eNew, wNew)
	acc.Add(eNew)
	u.Add(eLater, acc.GetValue())
	acc.Add(eLater)

	ref := &WitnessRef{Element: eNew, Witness: new(big.Int).Set(wNew), AddedAt: pos}
	u.UpdateWitnesses(pub, []*WitnessRef{ref}, nil)

	verifier := WithPublicKey(pub)
	verifier.SetValue(acc.GetValue())
	if err := verifier.Verify(eNew, Witness{Value: ref.Witness}); err != nil {
		t.Errorf("Verify(eNew) after mid-window addition refresh = %v, want nil", err)
	}
}

// TestBatchUpdateAdditionAfterDelete covers the update path shape: a delete
// followed by an addition whose witness is the post-delete value (the
// deleted element's presented witness).
func TestBatchUpdateAdditionAfterDelete(t *testing.T) {
	acc, pub, _, err := NewWithRandomKey()
	if err != nil {
		t.Fatalf("NewWithRandomKey() error = %v", err)
	}

	eOld := big.NewInt(103)
	eNew := big.NewInt(107)

	wOld := acc.Add(eOld)

	u := NewUpdate()
	u.Del(eOld, wOld.Value)
	if err := acc.Del(eOld, wOld); err != nil {
		t.Fatalf("Del(eOld) = %v, want nil", err)
	}
	base := acc.GetValue()
	pos := u.Add(eNew, base)
	acc.Add(eNew)

	ref := &WitnessRef{Element: eNew, Witness: new(big.Int).Set(base), AddedAt: pos}
	u.UpdateWitnesses(pub, []*WitnessRef{ref}, nil)

	verifier := WithPublicKey(pub)
	verifier.SetValue(acc.GetValue())
	if err := verifier.Verify(eNew, Witness{Value: ref.Witness}); err != nil {
		t.Errorf("Verify(eNew) after delete-then-add refresh = %v, want nil", err)
	}
}

func TestBatchUpdateWitnessesAcrossDelete(t *testing.T) {
	acc, pub, _, err := NewWithRandomKey()
	if err != nil {
		t.Fatalf("NewWithRandomKey() error = %v", err)
	}

	eKeep := big.NewInt(113)
	eDel := big.NewInt(127)

	wKeep := acc.Add(eKeep)
	wDel := acc.Add(eDel)
	// eDel's add predates the window, so eKeep's window-start witness is its
	// add-time witness raised to eDel.
	wKeep.Value = new(big.Int).Exp(wKeep.Value, eDel, pub.N)

	u := NewUpdate()
	u.Del(eDel, wDel.Value)
	if err := acc.Del(eDel, wDel); err != nil {
		t.Fatalf("Del(eDel) = %v, want nil", err)
	}

	ref := &WitnessRef{Element: eKeep, Witness: new(big.Int).Set(wKeep.Value)}
	u.UpdateWitnesses(pub, nil, []*WitnessRef{ref})

	verifier := WithPublicKey(pub)
	verifier.SetValue(acc.GetValue())
	if err := verifier.Verify(eKeep, Witness{Value: ref.Witness}); err != nil {
		t.Errorf("Verify(eKeep) after batched delete refresh = %v, want nil", err)
	}
}
