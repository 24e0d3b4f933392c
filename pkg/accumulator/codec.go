package accumulator

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// wire big.Int values as hex strings; JSON numbers cannot carry arbitrary
// precision integers without loss.

func marshalBigInt(v *big.Int) ([]byte, error) {
	return json.Marshal(v.Text(16))
}

func unmarshalBigInt(data []byte) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("accumulator: invalid hex integer %q", s)
	}
	return v, nil
}

// MarshalJSON encodes the public key's modulus as a hex string.
func (k PublicKey) MarshalJSON() ([]byte, error) {
	return marshalBigInt(k.N)
}

// UnmarshalJSON decodes the public key's modulus from a hex string.
func (k *PublicKey) UnmarshalJSON(data []byte) error {
	n, err := unmarshalBigInt(data)
	if err != nil {
		return err
	}
	k.N = n
	return nil
}

// MarshalJSON encodes the witness value as a hex string.
func (w Witness) MarshalJSON() ([]byte, error) {
	return marshalBigInt(w.Value)
}

// UnmarshalJSON decodes the witness value from a hex string.
func (w *Witness) UnmarshalJSON(data []byte) error {
	v, err := unmarshalBigInt(data)
	if err != nil {
		return err
	}
	w.Value = v
	return nil
}
