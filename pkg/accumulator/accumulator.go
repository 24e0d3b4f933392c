// Package accumulator implements an RSA-style universal accumulator over a
// hidden-order group (Z_N^*), supporting add, delete, verify, and a batched
// parallel witness refresh. The contract is the standard one for dynamic
// accumulators; security proofs live in the literature, not here.
package accumulator

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// keyBits is the RSA modulus size used by NewWithRandomKey. Production use
// would want 3072+ bits; a smaller size keeps the demonstration's prime
// generation fast.
const keyBits = 1024

// ErrNotMember is returned by Del and Verify when a witness does not verify
// against the current accumulation value.
var ErrNotMember = errors.New("accumulator: element is not a member")

// ErrNoTrapdoor is returned by Del on an instance constructed from a public
// key only.
var ErrNoTrapdoor = errors.New("accumulator: operation requires the trapdoor")

// PublicKey is the public parameters of an accumulator instance: the hidden-
// order group modulus. The generator is fixed at 2.
type PublicKey struct {
	N *big.Int
}

// Clone returns an independent copy of the public key.
func (k PublicKey) Clone() PublicKey {
	return PublicKey{N: new(big.Int).Set(k.N)}
}

// Witness is an opaque proof that a specific element is a member of the set
// committed by a given accumulation value.
type Witness struct {
	Value *big.Int
}

// Clone returns an independent copy of the witness.
func (w Witness) Clone() Witness {
	return Witness{Value: new(big.Int).Set(w.Value)}
}

// Accumulator is one generation of an accumulation value over a hidden-order
// group. An instance constructed with NewWithRandomKey holds the trapdoor
// (Carmichael totient of N) and may call Del; one constructed with
// WithPublicKey may only Add and Verify.
type Accumulator struct {
	pub     PublicKey
	value   *big.Int
	lambda  *big.Int // trapdoor; nil unless this instance holds the private key
	trapped bool
}

// NewWithRandomKey generates a fresh RSA-style hidden-order group and
// returns an Accumulator holding its trapdoor, the group's public key, and
// the trapdoor value itself (exposed for callers that need it directly
// rather than through accumulator methods).
func NewWithRandomKey() (*Accumulator, PublicKey, *big.Int, error) {
	p, err := randPrime(keyBits / 2)
	if err != nil {
		return nil, PublicKey{}, nil, fmt.Errorf("accumulator: generate p: %w", err)
	}
	q, err := randPrime(keyBits / 2)
	if err != nil {
		return nil, PublicKey{}, nil, fmt.Errorf("accumulator: generate q: %w", err)
	}
	n := new(big.Int).Mul(p, q)

	pMinus1 := new(big.Int).Sub(p, big.NewInt(1))
	qMinus1 := new(big.Int).Sub(q, big.NewInt(1))
	gcd := new(big.Int).GCD(nil, nil, pMinus1, qMinus1)
	lambda := new(big.Int).Div(new(big.Int).Mul(pMinus1, qMinus1), gcd)

	pub := PublicKey{N: n}
	acc := &Accumulator{
		pub:     pub,
		value:   big.NewInt(2),
		lambda:  lambda,
		trapped: true,
	}
	return acc, pub.Clone(), new(big.Int).Set(lambda), nil
}

// WithPublicKey constructs a trapdoor-less Accumulator, the form a Worker
// uses to mirror the Authority's accumulation value.
func WithPublicKey(pub PublicKey) *Accumulator {
	return &Accumulator{
		pub:   pub.Clone(),
		value: big.NewInt(2),
	}
}

// GetPublicKey returns the accumulator's public key.
func (a *Accumulator) GetPublicKey() PublicKey {
	return a.pub.Clone()
}

// GetValue returns the current accumulation value.
func (a *Accumulator) GetValue() *big.Int {
	return new(big.Int).Set(a.value)
}

// SetValue overwrites the accumulation value directly; used by a Worker to
// adopt the value the Authority reports after an update (delete then add).
func (a *Accumulator) SetValue(v *big.Int) {
	a.value = new(big.Int).Set(v)
}

// Clone returns an independent copy of the accumulator, including the
// trapdoor if this instance holds one.
func (a *Accumulator) Clone() *Accumulator {
	clone := &Accumulator{
		pub:     a.pub.Clone(),
		value:   new(big.Int).Set(a.value),
		trapped: a.trapped,
	}
	if a.lambda != nil {
		clone.lambda = new(big.Int).Set(a.lambda)
	}
	return clone
}

// Add accumulates element into the accumulator and returns its witness: the
// accumulation value just before the add, which verifies element against the
// new value. Raising the accumulation value to an element's power
// is a public operation and needs no trapdoor.
func (a *Accumulator) Add(element *big.Int) Witness {
	w := Witness{Value: new(big.Int).Set(a.value)}
	a.value = new(big.Int).Exp(a.value, element, a.pub.N)
	return w
}

// Del removes element from the accumulator given a witness to its current
// membership. Deletion is reserved to the trapdoor holder: only the
// Authority is authorized to shrink the accumulated set. It verifies
// the witness, then adopts the witness's value as the new accumulation
// value (the standard RSA-accumulator deletion identity: the witness to an
// element already equals the accumulation of every other member).
func (a *Accumulator) Del(element *big.Int, witness Witness) error {
	if !a.trapped {
		return ErrNoTrapdoor
	}
	if err := a.Verify(element, witness); err != nil {
		return err
	}
	a.value = new(big.Int).Set(witness.Value)
	return nil
}

// Verify reports whether witness proves element's membership against the
// current accumulation value. Key-only; needs no trapdoor.
func (a *Accumulator) Verify(element *big.Int, witness Witness) error {
	check := new(big.Int).Exp(witness.Value, element, a.pub.N)
	if check.Cmp(a.value) != 0 {
		return ErrNotMember
	}
	return nil
}

// randPrime generates a probable prime of the given bit length using the
// standard library's Miller-Rabin-backed prime search.
func randPrime(bits int) (*big.Int, error) {
	return rand.Prime(rand.Reader, bits)
}
