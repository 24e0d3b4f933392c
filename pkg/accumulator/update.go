package accumulator

import (
	"math/big"
)

type opKind int

const (
	opAdd opKind = iota
	opDel
)

type op struct {
	kind    opKind
	element *big.Int
	witness *big.Int // witness presented at the time of the op
}

// Update is an append-only log of additions and deletions observed during
// one window, consumed once by a batched witness refresh.
type Update struct {
	ops []op
}

// NewUpdate returns an empty batch log.
func NewUpdate() *Update {
	return &Update{}
}

// Add records an addition of element, witnessed at add time by the
// accumulation value just before the add. It returns the op's position in
// the log, which the element's WitnessRef carries as AddedAt.
func (u *Update) Add(element, witnessAtAdd *big.Int) int {
	u.ops = append(u.ops, op{kind: opAdd, element: element, witness: witnessAtAdd})
	return len(u.ops) - 1
}

// Del records a deletion of element, witnessed by the value presented to
// authorize the deletion.
func (u *Update) Del(element, witnessAtDel *big.Int) {
	u.ops = append(u.ops, op{kind: opDel, element: element, witness: witnessAtDel})
}

// Clone returns an independent copy of the batch log.
func (u *Update) Clone() *Update {
	out := &Update{ops: make([]op, len(u.ops))}
	copy(out.ops, u.ops)
	return out
}

// Len reports the number of recorded operations.
func (u *Update) Len() int {
	return len(u.ops)
}

// WitnessRef is one (element, witness) pair targeted for refresh. Witness is
// rewritten in place as the batch log is replayed. For an element added
// during the window, AddedAt is the log position returned by Add, and the
// witness must be the accumulation value captured at that moment.
type WitnessRef struct {
	Element *big.Int
	Witness *big.Int
	AddedAt int
}

// UpdateWitnesses replays the batch log against two distinct sets of
// witnesses: additions, whose witnesses were issued mid-window and advance
// only through the ops after their own add, and existing, whose witnesses
// were current at window start and advance through the full log. Additions
// and pre-existing elements obey different update formulas — a mid-window
// witness is not on the same accumulation chain as the window-start ops —
// so the two sets must not be merged. Safe to call concurrently for
// disjoint refs sharing the same Update and public key, since each call
// only mutates its own refs.
func (u *Update) UpdateWitnesses(pub PublicKey, additions, existing []*WitnessRef) {
	for _, ref := range additions {
		u.replay(pub, ref, ref.AddedAt+1)
	}
	for _, ref := range existing {
		u.replay(pub, ref, 0)
	}
}

// replay advances ref's witness through the ops in u starting at position
// from, skipping ops on ref's own element.
func (u *Update) replay(pub PublicKey, ref *WitnessRef, from int) {
	if from > len(u.ops) {
		return
	}
	for _, o := range u.ops[from:] {
		if o.element.Cmp(ref.Element) == 0 {
			continue
		}
		switch o.kind {
		case opAdd:
			ref.Witness = new(big.Int).Exp(ref.Witness, o.element, pub.N)
		case opDel:
			ref.Witness = rotateWitnessOnDelete(pub.N, o.element, o.witness, ref.Element, ref.Witness)
		}
	}
}

// rotateWitnessOnDelete computes the refreshed witness for element x (with
// prior witness wx) after y was deleted from the accumulation using
// presented witness uy (the new accumulation value). Standard dynamic-
// accumulator deletion identity: find a, b with a*x + b*y = 1 via the
// extended Euclidean algorithm, then wx' = uy^a * wx^b mod N.
func rotateWitnessOnDelete(n, y, uy, x, wx *big.Int) *big.Int {
	a := new(big.Int)
	b := new(big.Int)
	gcd := new(big.Int).GCD(a, b, x, y)
	if gcd.Cmp(big.NewInt(1)) != 0 {
		// Elements are prime representatives, so distinct elements are
		// always coprime; equal elements are skipped by the caller.
		return new(big.Int).Set(wx)
	}
	left := modExpSigned(uy, a, n)
	right := modExpSigned(wx, b, n)
	return new(big.Int).Mod(new(big.Int).Mul(left, right), n)
}

// modExpSigned computes base^exp mod n, supporting a negative exponent via
// modular inverse (big.Int.Exp only accepts exp >= 0 directly).
func modExpSigned(base, exp, n *big.Int) *big.Int {
	if exp.Sign() >= 0 {
		return new(big.Int).Exp(base, exp, n)
	}
	inv := new(big.Int).ModInverse(base, n)
	if inv == nil {
		// base shares a factor with n; should not happen for elements of
		// Z_N^*, treated as identity rather than panicking.
		return big.NewInt(1)
	}
	posExp := new(big.Int).Neg(exp)
	return new(big.Int).Exp(inv, posExp, n)
}
