package authority

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/cuemby/warden/pkg/types"
)

// randomNonce draws a uniform random 64-bit value and masks it to 53 bits.
// Collision probability with an existing nonce is negligible and not
// checked.
func randomNonce() (types.Nonce, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return types.NewNonce(binary.BigEndian.Uint64(buf[:])), nil
}
